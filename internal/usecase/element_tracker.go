package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/pkg/metrics"
	"github.com/user/pagestate-service/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultUpdateInterval  = 3 * time.Second
	defaultURLPollInterval = 5 * time.Second
	defaultSettleDelay     = time.Second
	defaultMaxWords        = 5
)

// Scan triggers, also used as metric labels.
const (
	triggerInitial   = "initial"
	triggerTimer     = "timer"
	triggerLoad      = "load"
	triggerURLChange = "url_change"
	triggerForced    = "forced"
)

// TrackingOptions configures StartElementTracking.
type TrackingOptions struct {
	UpdateInterval time.Duration
	MaxWords       int
	OnlyVisible    bool
	// AutoTrack rescans on load events and on SPA URL changes.
	AutoTrack       bool
	URLPollInterval time.Duration
	SettleDelay     time.Duration
}

// DefaultTrackingOptions tracks visible elements of up to five words with
// auto-tracking on.
func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{
		UpdateInterval:  defaultUpdateInterval,
		MaxWords:        defaultMaxWords,
		OnlyVisible:     true,
		AutoTrack:       true,
		URLPollInterval: defaultURLPollInterval,
		SettleDelay:     defaultSettleDelay,
	}
}

func (o TrackingOptions) withDefaults() TrackingOptions {
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = defaultUpdateInterval
	}
	if o.MaxWords <= 0 {
		o.MaxWords = defaultMaxWords
	}
	if o.URLPollInterval <= 0 {
		o.URLPollInterval = defaultURLPollInterval
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	return o
}

// rawElement is the shape returned by elementScanScript.
type rawElement struct {
	Text       string      `json:"text"`
	TagName    string      `json:"tagName"`
	ClassName  string      `json:"className"`
	ID         string      `json:"id"`
	Role       string      `json:"role"`
	XPath      string      `json:"xpath"`
	Rect       entity.Rect `json:"rect"`
	Visible    bool        `json:"visible"`
	InViewport bool        `json:"inViewport"`
}

// elementScanScript enumerates allow-listed elements and reports their direct
// text (or placeholder / aria-label / title / value for form controls and
// buttons), a positional XPath, geometry and visibility.
const elementScanScript = `(() => {
	const selector = 'a,button,input,textarea,select,label,span,div,li,p,h1,h2,h3,h4,h5,h6,' +
		'[role="button"],[role="link"],[role="menuitem"],[role="tab"],[role="option"],[role="checkbox"],[role="radio"]';
	const vw = window.innerWidth || document.documentElement.clientWidth;
	const vh = window.innerHeight || document.documentElement.clientHeight;
	const xpathOf = (el) => {
		const parts = [];
		for (let node = el; node && node.nodeType === 1; node = node.parentElement) {
			let idx = 1;
			for (let s = node.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.tagName === node.tagName) idx++;
			}
			parts.unshift(node.tagName.toLowerCase() + '[' + idx + ']');
		}
		return '/' + parts.join('/');
	};
	const directText = (el) => {
		let t = '';
		for (const n of el.childNodes) {
			if (n.nodeType === 3) t += n.textContent;
		}
		return t.replace(/\s+/g, ' ').trim();
	};
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		const tag = el.tagName.toLowerCase();
		const role = el.getAttribute('role') || '';
		let text = directText(el);
		if (!text && (tag === 'input' || tag === 'textarea' || tag === 'button' || role === 'button')) {
			text = (el.getAttribute('placeholder') || el.getAttribute('aria-label') ||
				el.getAttribute('title') || (tag === 'input' ? el.value : '') || '').trim();
		}
		if (!text) continue;
		const r = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = r.width > 0 && r.height > 0 && style.visibility !== 'hidden' &&
			style.display !== 'none' && parseFloat(style.opacity || '1') > 0;
		const inViewport = r.bottom > 0 && r.right > 0 && r.top < vh && r.left < vw;
		out.push({
			text: text, tagName: tag,
			className: typeof el.className === 'string' ? el.className : '',
			id: el.id || '', role: role, xpath: xpathOf(el),
			rect: {x: r.x, y: r.y, width: r.width, height: r.height},
			visible: visible, inViewport: inViewport
		});
	}
	return out;
})()`

// ElementTracker maintains a refreshed list of short-text interactive
// elements per URL for one tab. Its background jobs belong to the tracker and
// end with StopElementTracking.
type ElementTracker struct {
	driver  repository.PageDriver
	cache   *ElementCache
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	opts       TrackingOptions
	lastURL    string
	running    bool
	scheduler  *cron.Cron
	runCancel  context.CancelFunc
	cancelLoad func()
	loadScans  sync.WaitGroup
}

// NewElementTracker creates a tracker for driver backed by cache. A nil cache
// gets a fresh one with the default limit.
func NewElementTracker(driver repository.PageDriver, cache *ElementCache, logger *zap.Logger, m *metrics.Metrics) *ElementTracker {
	if cache == nil {
		cache = NewElementCache(DefaultElementCacheLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElementTracker{
		driver:  driver,
		cache:   cache,
		logger:  logger.Named("element_tracker"),
		metrics: m,
		now:     time.Now,
		opts:    DefaultTrackingOptions(),
	}
}

// StartElementTracking runs one scan immediately and then keeps rescanning
// until StopElementTracking. Starting an already running tracker restarts it
// with the new options.
func (t *ElementTracker) StartElementTracking(ctx context.Context, opts TrackingOptions) error {
	if t.driver == nil || t.driver.Closed() {
		return fmt.Errorf("start element tracking: %w", repository.ErrPageClosed)
	}
	t.StopElementTracking()

	opts = opts.withDefaults()
	runCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.opts = opts
	t.runCancel = cancel
	t.running = true
	t.mu.Unlock()

	if _, err := t.scan(runCtx, triggerInitial); err != nil {
		t.logger.Warn("Initial element scan failed", zap.Error(err))
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(t.logger))
	scheduler := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	// cron.Every has one-second resolution; shorter intervals round up.
	scheduler.Schedule(cron.Every(opts.UpdateInterval), cron.FuncJob(func() {
		t.scanLogged(runCtx, triggerTimer)
	}))

	var cancelLoad func()
	if opts.AutoTrack {
		scheduler.Schedule(cron.Every(opts.URLPollInterval), cron.FuncJob(func() {
			t.pollURL(runCtx)
		}))
		cancelLoad = t.driver.OnLoad(func() {
			t.mu.Lock()
			if !t.running {
				t.mu.Unlock()
				return
			}
			t.loadScans.Add(1)
			t.mu.Unlock()
			defer t.loadScans.Done()
			t.scanLogged(runCtx, triggerLoad)
		})
	}

	t.mu.Lock()
	t.scheduler = scheduler
	t.cancelLoad = cancelLoad
	t.mu.Unlock()

	scheduler.Start()
	t.logger.Info("Element tracking started",
		zap.Duration("update_interval", opts.UpdateInterval),
		zap.Int("max_words", opts.MaxWords),
		zap.Bool("only_visible", opts.OnlyVisible),
		zap.Bool("auto_track", opts.AutoTrack),
	)
	return nil
}

// StopElementTracking cancels the repeating scan, the URL poller and the
// load listener and waits for in-flight scans to return. It is safe to call
// on a stopped tracker.
func (t *ElementTracker) StopElementTracking() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	scheduler, cancelLoad, runCancel := t.scheduler, t.cancelLoad, t.runCancel
	t.scheduler, t.cancelLoad, t.runCancel = nil, nil, nil
	t.mu.Unlock()

	if cancelLoad != nil {
		cancelLoad()
	}
	if runCancel != nil {
		runCancel()
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	t.loadScans.Wait()
	t.logger.Info("Element tracking stopped")
}

// IsTracking reports whether background scans are active.
func (t *ElementTracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Refresh forces a scan of the current URL.
func (t *ElementTracker) Refresh(ctx context.Context) (*entity.ElementCacheEntry, error) {
	return t.scan(ctx, triggerForced)
}

// Current returns the cached entry for the tab's current URL without
// scanning.
func (t *ElementTracker) Current(ctx context.Context) (*entity.ElementCacheEntry, bool, error) {
	if t.driver == nil || t.driver.Closed() {
		return nil, false, repository.ErrPageClosed
	}
	url, err := t.driver.URL(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("read current url: %w", err)
	}
	entry, ok := t.cache.Get(url)
	return entry, ok, nil
}

// Entry returns the cached entry of url.
func (t *ElementTracker) Entry(url string) (*entity.ElementCacheEntry, bool) {
	return t.cache.Get(url)
}

// TrackedURLs lists cached URLs from oldest to newest write.
func (t *ElementTracker) TrackedURLs() []string {
	return t.cache.URLs()
}

func (t *ElementTracker) scanLogged(ctx context.Context, trigger string) {
	if _, err := t.scan(ctx, trigger); err != nil && ctx.Err() == nil {
		t.logger.Debug("Element scan failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

func (t *ElementTracker) scan(ctx context.Context, trigger string) (*entity.ElementCacheEntry, error) {
	if t.driver == nil || t.driver.Closed() {
		return nil, repository.ErrPageClosed
	}
	url, err := t.driver.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current url: %w", err)
	}

	var raw []rawElement
	if err := t.driver.Evaluate(ctx, elementScanScript, &raw); err != nil {
		return nil, fmt.Errorf("evaluate element scan: %w", err)
	}

	t.mu.Lock()
	opts := t.opts
	t.mu.Unlock()

	domain := utils.Domain(url)
	entry := &entity.ElementCacheEntry{
		URL:       url,
		Elements:  filterElements(raw, opts, domain),
		Timestamp: t.now(),
		Domain:    domain,
	}
	if evicted := t.cache.Put(entry); evicted != "" {
		t.logger.Debug("Evicted oldest tracked URL", zap.String("url", evicted))
	}

	t.mu.Lock()
	t.lastURL = url
	t.mu.Unlock()

	t.metrics.IncElementScan(trigger)
	t.metrics.SetTrackedURLs(t.cache.Len())
	t.logger.Debug("Element scan complete",
		zap.String("trigger", trigger),
		zap.String("url", url),
		zap.Int("elements", len(entry.Elements)),
	)
	return entry, nil
}

// pollURL catches single-page-app navigations that fire no load event.
func (t *ElementTracker) pollURL(ctx context.Context) {
	if t.driver.Closed() {
		return
	}
	url, err := t.driver.URL(ctx)
	if err != nil {
		return
	}

	t.mu.Lock()
	changed := url != t.lastURL
	settle := t.opts.SettleDelay
	t.mu.Unlock()
	if !changed {
		return
	}

	t.logger.Debug("URL change detected", zap.String("url", url))
	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	t.scanLogged(ctx, triggerURLChange)
}

func filterElements(raw []rawElement, opts TrackingOptions, domain string) []entity.TrackedElement {
	elements := make([]entity.TrackedElement, 0, len(raw))
	for _, r := range raw {
		text := utils.CollapseSpace(r.Text)
		if text == "" || utils.WordCount(text) > opts.MaxWords {
			continue
		}
		if opts.OnlyVisible && !(r.Visible && r.InViewport) {
			continue
		}
		elements = append(elements, entity.TrackedElement{
			Text:         text,
			TagName:      r.TagName,
			ClassName:    r.ClassName,
			ID:           r.ID,
			Role:         r.Role,
			XPath:        r.XPath,
			BoundingRect: r.Rect,
			Domain:       domain,
		})
	}
	return elements
}
