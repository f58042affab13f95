package chromedp_driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36`

// Options configures the Chrome process.
type Options struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	PageLoadTimeout time.Duration
}

// Browser owns one Chrome process. Tabs are opened with NewPage.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger

	closeOnce sync.Once
}

// NewBrowser starts Chrome. The process lives until Close; ctx only carries
// values to the allocator.
func NewBrowser(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "cs-CZ"),
		chromedp.UserAgent(ua),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	sugar := logger.Named("chromedp").Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(sugar.Debugf), chromedp.WithErrorf(sugar.Debugf))

	// The first Run must use the context from NewContext itself: cancelling a
	// derived one would take the browser down with it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	timeout := opts.PageLoadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.Info("Chrome started", zap.Bool("headless", opts.Headless))
	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// NewPage opens a new tab.
func (b *Browser) NewPage() (*Driver, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return newDriver(tabCtx, tabCancel, b.timeout, b.logger), nil
}

// Close shuts the browser down together with every tab.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.browserCancel()
		b.allocCancel()
		b.logger.Info("Chrome stopped")
	})
}
