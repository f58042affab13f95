package rod_driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/xpzouying/headless_browser"
	"go.uber.org/zap"
)

// Options configures the stealth browser.
type Options struct {
	Headless        bool
	BinPath         string
	PageLoadTimeout time.Duration
}

// Browser wraps a stealth-patched rod browser.
type Browser struct {
	browser *headless_browser.Browser
	timeout time.Duration
	logger  *zap.Logger

	closeOnce sync.Once
}

func NewBrowser(opts Options, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	hbOpts := []headless_browser.Option{headless_browser.WithHeadless(opts.Headless)}
	if opts.BinPath != "" {
		hbOpts = append(hbOpts, headless_browser.WithChromeBinPath(opts.BinPath))
	}
	timeout := opts.PageLoadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger.Info("Rod browser started", zap.Bool("headless", opts.Headless))
	return &Browser{
		browser: headless_browser.New(hbOpts...),
		timeout: timeout,
		logger:  logger,
	}
}

// NewPage opens a stealth tab.
func (b *Browser) NewPage() *Driver {
	return &Driver{
		page:    b.browser.NewPage(),
		timeout: b.timeout,
		logger:  b.logger.Named("tab"),
	}
}

func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.browser.Close()
		b.logger.Info("Rod browser stopped")
	})
}

// Driver implements repository.PageDriver on a rod page.
type Driver struct {
	page    *rod.Page
	timeout time.Duration
	logger  *zap.Logger
	closed  atomic.Bool
}

var _ repository.PageDriver = (*Driver)(nil)

func (d *Driver) on(ctx context.Context) (*rod.Page, error) {
	if d.Closed() {
		return nil, repository.ErrPageClosed
	}
	return d.page.Context(ctx), nil
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	p, err := d.on(ctx)
	if err != nil {
		return "", err
	}
	info, err := p.Info()
	if err != nil {
		return "", d.wrap(err)
	}
	return info.URL, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	p, err := d.on(ctx)
	if err != nil {
		return "", err
	}
	info, err := p.Info()
	if err != nil {
		return "", d.wrap(err)
	}
	return info.Title, nil
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	p, err := d.on(ctx)
	if err != nil {
		return "", err
	}
	html, err := p.HTML()
	return html, d.wrap(err)
}

// Evaluate wraps expression in an arrow function, which is the form rod
// expects.
func (d *Driver) Evaluate(ctx context.Context, expression string, out any) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	res, err := p.Eval("() => (" + expression + ")")
	if err != nil {
		return d.wrap(err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), out); err != nil {
		return fmt.Errorf("decode evaluation result: %w", err)
	}
	return nil
}

func (d *Driver) Exists(ctx context.Context, selector string) (bool, error) {
	p, err := d.on(ctx)
	if err != nil {
		return false, err
	}
	ok, _, err := p.Has(selector)
	return ok, d.wrap(err)
}

func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	el, err := p.Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wait for %q: %w", selector, repository.ErrElementNotFound)
		}
		return d.wrap(err)
	}
	return d.wrap(el.Timeout(timeout).WaitVisible())
}

func (d *Driver) ClickSelector(ctx context.Context, selector string) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	ok, el, err := p.Has(selector)
	if err != nil {
		return d.wrap(err)
	}
	if !ok {
		return fmt.Errorf("click %q: %w", selector, repository.ErrElementNotFound)
	}
	return d.click(el)
}

func (d *Driver) ClickXPath(ctx context.Context, xpath string) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	ok, el, err := p.HasX(xpath)
	if err != nil {
		return d.wrap(err)
	}
	if !ok {
		return fmt.Errorf("click %s: %w", xpath, repository.ErrElementNotFound)
	}
	return d.click(el)
}

func (d *Driver) click(el *rod.Element) error {
	if err := el.ScrollIntoView(); err != nil {
		return d.wrap(err)
	}
	return d.wrap(el.Click(proto.InputMouseButtonLeft, 1))
}

func (d *Driver) PressKey(ctx context.Context, key string) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	switch key {
	case repository.KeyEscape:
		return d.wrap(p.Keyboard.Press(input.Escape))
	case repository.KeyEnter:
		return d.wrap(p.Keyboard.Press(input.Enter))
	case repository.KeyTab:
		return d.wrap(p.Keyboard.Press(input.Tab))
	}
	return d.wrap(p.InsertText(key))
}

func (d *Driver) MouseClick(ctx context.Context, x, y float64) error {
	p, err := d.on(ctx)
	if err != nil {
		return err
	}
	if err := p.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return d.wrap(err)
	}
	return d.wrap(p.Mouse.Click(proto.InputMouseButtonLeft, 1))
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	p, err := d.on(ctx)
	if err != nil {
		return nil, err
	}
	buf, err := p.Screenshot(false, nil)
	return buf, d.wrap(err)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	p, err := d.on(navCtx)
	if err != nil {
		return err
	}
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}
	return nil
}

// OnLoad subscribes to Page.loadEventFired until cancel is called.
func (d *Driver) OnLoad(fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	wait := d.page.Context(ctx).EachEvent(func(*proto.PageLoadEventFired) {
		go fn()
	})
	go wait()
	return cancel
}

func (d *Driver) Closed() bool {
	return d.closed.Load()
}

// Close closes the tab.
func (d *Driver) Close() {
	if d.closed.Swap(true) {
		return
	}
	if err := d.page.Close(); err != nil {
		d.logger.Debug("Closing tab failed", zap.Error(err))
	}
}

// wrap maps rod's element lookup failures onto ErrElementNotFound.
func (d *Driver) wrap(err error) error {
	if err == nil {
		return nil
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", repository.ErrElementNotFound, err)
	}
	return err
}
