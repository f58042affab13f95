package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
)

// fakeDriver is an in-memory PageDriver. Scripts are recognised by content.
type fakeDriver struct {
	mu sync.Mutex

	url        string
	title      string
	html       string
	bodyText   string
	readyState string
	elements   []rawElement
	exists     map[string]bool
	closed     bool

	htmlErr          error
	clickSelectorErr error
	clickXPathErr    error
	textScanClicks   bool

	clicks     []string
	scans      int
	htmlCalls  int
	navigateTo map[string]string // requested url -> landing url

	nextLoadID int
	loadFns    map[int]func()
}

func newFakeDriver(url string) *fakeDriver {
	return &fakeDriver{
		url:        url,
		readyState: "complete",
		exists:     map[string]bool{},
		loadFns:    map[int]func(){},
	}
}

func assignJSON(out any, v any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *fakeDriver) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *fakeDriver) setURL(url string) {
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
}

func (d *fakeDriver) setElements(els ...rawElement) {
	d.mu.Lock()
	d.elements = els
	d.mu.Unlock()
}

func (d *fakeDriver) Title(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *fakeDriver) HTML(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.htmlCalls++
	return d.html, d.htmlErr
}

func (d *fakeDriver) Evaluate(_ context.Context, expression string, out any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case expression == elementScanScript:
		d.scans++
		return assignJSON(out, d.elements)
	case expression == readyStateScript:
		return assignJSON(out, d.readyState)
	case expression == bodyTextScript:
		return assignJSON(out, d.bodyText)
	case strings.Contains(expression, "querySelectorAll('body *')"):
		d.clicks = append(d.clicks, "text_scan")
		return assignJSON(out, d.textScanClicks)
	}
	return errors.New("unexpected script")
}

func (d *fakeDriver) Exists(_ context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exists[selector], nil
}

func (d *fakeDriver) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (d *fakeDriver) ClickSelector(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clickSelectorErr != nil {
		return d.clickSelectorErr
	}
	d.clicks = append(d.clicks, "css:"+selector)
	return nil
}

func (d *fakeDriver) ClickXPath(_ context.Context, xpath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clickXPathErr != nil {
		return d.clickXPathErr
	}
	d.clicks = append(d.clicks, "xpath:"+xpath)
	return nil
}

func (d *fakeDriver) PressKey(context.Context, string) error             { return nil }
func (d *fakeDriver) MouseClick(context.Context, float64, float64) error { return nil }
func (d *fakeDriver) Screenshot(context.Context) ([]byte, error)         { return nil, nil }

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if landing, ok := d.navigateTo[url]; ok {
		url = landing
	}
	d.url = url
	return nil
}

func (d *fakeDriver) OnLoad(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextLoadID
	d.nextLoadID++
	d.loadFns[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.loadFns, id)
		d.mu.Unlock()
	}
}

// fireLoad runs the registered load callbacks synchronously.
func (d *fakeDriver) fireLoad() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.loadFns))
	for _, fn := range d.loadFns {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (d *fakeDriver) listenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.loadFns)
}

func (d *fakeDriver) scanCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scans
}

func (d *fakeDriver) clickLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

func (d *fakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

var _ repository.PageDriver = (*fakeDriver)(nil)

func visible(text, tag, id, xpath string) rawElement {
	return rawElement{
		Text:       text,
		TagName:    tag,
		ID:         id,
		XPath:      xpath,
		Rect:       entity.Rect{X: 10, Y: 10, Width: 80, Height: 20},
		Visible:    true,
		InViewport: true,
	}
}

type memBlocks struct {
	mu     sync.Mutex
	blocks map[string]*entity.HostnameBlock
	err    error
}

func newMemBlocks() *memBlocks {
	return &memBlocks{blocks: map[string]*entity.HostnameBlock{}}
}

func (m *memBlocks) FindActive(_ context.Context, hostname string, now time.Time) (*entity.HostnameBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.blocks[hostname]
	if !ok || b.Expired(now) {
		return nil, nil
	}
	return b, nil
}

func (m *memBlocks) Block(_ context.Context, block *entity.HostnameBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blocks[block.Hostname] = block
	return nil
}

func (m *memBlocks) Unblock(_ context.Context, hostname string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blocks[hostname]
	delete(m.blocks, hostname)
	return ok, m.err
}

func (m *memBlocks) ListActive(_ context.Context, now time.Time) ([]*entity.HostnameBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.HostnameBlock
	for _, b := range m.blocks {
		if !b.Expired(now) {
			out = append(out, b)
		}
	}
	return out, m.err
}

type memAccounts struct {
	mu     sync.Mutex
	events []*entity.AccountBlockEvent
	err    error
}

func (m *memAccounts) Save(_ context.Context, e *entity.AccountBlockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memAccounts) ListByUser(_ context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AccountBlockEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			out = append(out, m.events[i])
		}
	}
	return out, m.err
}

type memEvents struct {
	mu      sync.Mutex
	system  []*entity.SystemEvent
	actions []*entity.ActionLog
}

func (m *memEvents) LogSystemEvent(_ context.Context, e *entity.SystemEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = append(m.system, e)
	return nil
}

func (m *memEvents) LogAction(_ context.Context, a *entity.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
