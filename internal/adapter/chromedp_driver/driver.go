package chromedp_driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/user/pagestate-service/internal/repository"
	"go.uber.org/zap"
)

// Driver implements repository.PageDriver for one chromedp tab.
type Driver struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
	closed  atomic.Bool
}

var _ repository.PageDriver = (*Driver)(nil)

func newDriver(tabCtx context.Context, cancel context.CancelFunc, timeout time.Duration, logger *zap.Logger) *Driver {
	return &Driver{ctx: tabCtx, cancel: cancel, timeout: timeout, logger: logger.Named("tab")}
}

// run executes actions on the tab, bounded by both the tab lifetime and the
// caller's ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if d.Closed() {
		return repository.ErrPageClosed
	}
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && d.ctx.Err() != nil {
		d.closed.Store(true)
		return repository.ErrPageClosed
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, chromedp.Location(&url))
	return url, err
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *Driver) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		return d.run(ctx, chromedp.Evaluate(expression, nil))
	}
	var raw json.RawMessage
	if err := d.run(ctx, chromedp.Evaluate(expression, &raw)); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode evaluation result: %w", err)
	}
	return nil
}

func (d *Driver) Exists(ctx context.Context, selector string) (bool, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var found bool
	err = d.Evaluate(ctx, fmt.Sprintf(`document.querySelector(%s) !== null`, sel), &found)
	return found, err
}

func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wait for %q: %w", selector, repository.ErrElementNotFound)
		}
		return err
	}
	return nil
}

// ClickSelector fails fast when nothing matches instead of waiting for the
// node to appear.
func (d *Driver) ClickSelector(ctx context.Context, selector string) error {
	ok, err := d.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("click %q: %w", selector, repository.ErrElementNotFound)
	}
	return d.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (d *Driver) ClickXPath(ctx context.Context, xpath string) error {
	expr, err := json.Marshal(xpath)
	if err != nil {
		return err
	}
	var found bool
	probe := fmt.Sprintf(`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue !== null`, expr)
	if err := d.Evaluate(ctx, probe, &found); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("click %s: %w", xpath, repository.ErrElementNotFound)
	}
	return d.run(ctx,
		chromedp.ScrollIntoView(xpath, chromedp.BySearch),
		chromedp.Click(xpath, chromedp.BySearch, chromedp.NodeVisible),
	)
}

func (d *Driver) PressKey(ctx context.Context, key string) error {
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.KeyEvent(k))
}

func keyFor(key string) (string, error) {
	switch key {
	case repository.KeyEscape:
		return kb.Escape, nil
	case repository.KeyEnter:
		return kb.Enter, nil
	case repository.KeyTab:
		return kb.Tab, nil
	}
	if len([]rune(key)) == 1 {
		return key, nil
	}
	return "", fmt.Errorf("unsupported key %q", key)
}

func (d *Driver) MouseClick(ctx context.Context, x, y float64) error {
	return d.run(ctx, chromedp.MouseClickXY(x, y))
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, repository.ErrPageClosed) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}
	return nil
}

// OnLoad calls fn on its own goroutine for every load event. chromedp
// listeners must not block, and a scan issues CDP calls of its own.
func (d *Driver) OnLoad(fn func()) func() {
	listenCtx, cancel := context.WithCancel(d.ctx)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			go fn()
		}
	})
	return cancel
}

func (d *Driver) Closed() bool {
	if d.closed.Load() {
		return true
	}
	if d.ctx.Err() != nil {
		d.closed.Store(true)
		return true
	}
	return false
}

// Close closes the tab.
func (d *Driver) Close() {
	if d.closed.Swap(true) {
		return
	}
	d.cancel()
	d.logger.Debug("Tab closed")
}
