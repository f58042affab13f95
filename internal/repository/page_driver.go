package repository

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPageClosed is returned by a driver whose tab has been closed.
	ErrPageClosed = errors.New("page is closed")
	// ErrElementNotFound is returned when a selector or XPath matches nothing.
	ErrElementNotFound = errors.New("element not found")
	// ErrNavigationFailed wraps navigation failures of the underlying browser.
	ErrNavigationFailed = errors.New("navigation failed")
)

// Keys accepted by PageDriver.PressKey.
const (
	KeyEscape = "Escape"
	KeyEnter  = "Enter"
	KeyTab    = "Tab"
)

// PageDriver defines the contract for driving one browser tab.
type PageDriver interface {
	// URL returns the current location of the tab.
	URL(ctx context.Context) (string, error)
	// Title returns the document title.
	Title(ctx context.Context) (string, error)
	// HTML returns the serialized document element.
	HTML(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression and decodes its JSON-serializable
	// result into out. out may be nil.
	Evaluate(ctx context.Context, expression string, out any) error
	// Exists reports whether a CSS selector matches at least one element.
	Exists(ctx context.Context, selector string) (bool, error)
	// WaitVisible blocks until selector is visible or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// ClickSelector clicks the first element matching a CSS selector.
	ClickSelector(ctx context.Context, selector string) error
	// ClickXPath clicks the first element matching an XPath expression.
	ClickXPath(ctx context.Context, xpath string) error
	// PressKey dispatches a single key press to the focused element.
	PressKey(ctx context.Context, key string) error
	// MouseClick clicks at viewport coordinates.
	MouseClick(ctx context.Context, x, y float64) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// OnLoad registers fn for page load completion events until the returned
	// cancel function is called.
	OnLoad(fn func()) (cancel func())
	// Closed reports whether the tab is gone.
	Closed() bool
}
