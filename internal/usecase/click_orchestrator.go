package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultClickTimeout   = 5 * time.Second
	defaultPostClickDelay = time.Second
	defaultWaitTimeout    = 10 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Click strategies, also used as metric labels.
const (
	strategyID       = "id"
	strategyXPath    = "xpath"
	strategyTextScan = "text_scan"
	strategyNone     = "none"
)

var (
	errNoCacheEntry = errors.New("no tracked elements for current url")
	plainIDPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// LookupStatus is the outcome class of ResolveElement.
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	// LookupFailed means the lookup itself could not run: a bad query, a
	// missing cache entry or an unreadable page.
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Lookup is the result of resolving a text query against tracked elements.
type Lookup struct {
	Status  LookupStatus
	Element entity.TrackedElement
	Err     error
}

// ClickOptions configures ClickElementWithText and ResolveElement.
type ClickOptions struct {
	MatchType   entity.MatchType // defaults to exact
	ElementType string
	Role        string
	// Timeout bounds each click attempt.
	Timeout        time.Duration
	WaitAfterClick bool
}

// WaitOptions configures WaitForElement.
type WaitOptions struct {
	MatchType    entity.MatchType
	ElementType  string
	Timeout      time.Duration
	PollInterval time.Duration
}

// ClickOrchestrator clicks tracked elements by their visible text.
type ClickOrchestrator struct {
	driver         repository.PageDriver
	tracker        *ElementTracker
	locator        ElementLocator
	limiter        *rate.Limiter
	logger         *zap.Logger
	metrics        *metrics.Metrics
	postClickDelay time.Duration
}

// NewClickOrchestrator paces clicks to clicksPerSecond; a non-positive rate
// disables pacing.
func NewClickOrchestrator(driver repository.PageDriver, tracker *ElementTracker, logger *zap.Logger, m *metrics.Metrics, clicksPerSecond float64) *ClickOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if clicksPerSecond > 0 {
		limit = rate.Limit(clicksPerSecond)
	}
	return &ClickOrchestrator{
		driver:         driver,
		tracker:        tracker,
		locator:        TextLocator{},
		limiter:        rate.NewLimiter(limit, 1),
		logger:         logger.Named("clicker"),
		metrics:        m,
		postClickDelay: defaultPostClickDelay,
	}
}

// WithLocator swaps the matching strategy.
func (c *ClickOrchestrator) WithLocator(l ElementLocator) *ClickOrchestrator {
	if l != nil {
		c.locator = l
	}
	return c
}

// ResolveElement looks text up in the cache entry of the current URL only.
// It never scans the page.
func (c *ClickOrchestrator) ResolveElement(ctx context.Context, text string, opts ClickOptions) Lookup {
	q := Query{Text: text, MatchType: opts.MatchType, ElementType: opts.ElementType, Role: opts.Role}
	if q.MatchType == "" {
		q.MatchType = entity.MatchExact
	}
	if strings.TrimSpace(q.Text) == "" || !validMatchType(q.MatchType) {
		err := fmt.Errorf("%w: text=%q match_type=%q", ErrInvalidQuery, q.Text, q.MatchType)
		c.logger.Error("Rejected element query", zap.Error(err))
		return Lookup{Status: LookupFailed, Err: err}
	}

	entry, ok, err := c.tracker.Current(ctx)
	if err != nil {
		return Lookup{Status: LookupFailed, Err: err}
	}
	if !ok {
		return Lookup{Status: LookupFailed, Err: errNoCacheEntry}
	}

	locator := c.locator
	if _, plain := locator.(TextLocator); plain && q.Role != "" {
		locator = RoleLocator{}
	}
	el, found := locator.Locate(entry.Elements, q)
	if !found {
		return Lookup{Status: LookupNotFound}
	}
	return Lookup{Status: LookupFound, Element: el}
}

// ClickElementWithText clicks the tracked element matching text. It reports
// failure as false and logs the reason.
func (c *ClickOrchestrator) ClickElementWithText(ctx context.Context, text string, opts ClickOptions) bool {
	lookup := c.ResolveElement(ctx, text, opts)
	if lookup.Status != LookupFound {
		c.metrics.IncClick(lookup.Status.String(), strategyNone)
		c.logger.Warn("Click target not resolved",
			zap.String("text", text),
			zap.String("lookup", lookup.Status.String()),
			zap.Error(lookup.Err),
		)
		return false
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("Click pacing interrupted", zap.String("text", text), zap.Error(err))
		return false
	}

	matchType := opts.MatchType
	if matchType == "" {
		matchType = entity.MatchExact
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultClickTimeout
	}

	el := lookup.Element
	attempts := []struct {
		strategy string
		skip     bool
		click    func(context.Context) error
	}{
		{strategyID, el.ID == "", func(ctx context.Context) error {
			return c.driver.ClickSelector(ctx, idSelector(el.ID))
		}},
		{strategyXPath, el.XPath == "", func(ctx context.Context) error {
			return c.driver.ClickXPath(ctx, el.XPath)
		}},
		{strategyTextScan, false, func(ctx context.Context) error {
			return c.clickByTextScan(ctx, el.Text, matchType)
		}},
	}

	for _, attempt := range attempts {
		if attempt.skip {
			continue
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := attempt.click(attemptCtx)
		cancel()
		if err != nil {
			c.logger.Debug("Click attempt failed",
				zap.String("text", el.Text),
				zap.String("strategy", attempt.strategy),
				zap.Error(err),
			)
			continue
		}

		c.metrics.IncClick("success", attempt.strategy)
		c.logger.Info("Clicked element",
			zap.String("text", el.Text),
			zap.String("tag", el.TagName),
			zap.String("strategy", attempt.strategy),
		)
		if opts.WaitAfterClick {
			c.settleAndRefresh(ctx)
		}
		return true
	}

	c.metrics.IncClick("failed", strategyNone)
	c.logger.Warn("All click strategies failed", zap.String("text", el.Text), zap.String("xpath", el.XPath))
	return false
}

// ElementExists reports whether text resolves in the current cache entry.
func (c *ClickOrchestrator) ElementExists(ctx context.Context, text string, opts ClickOptions) bool {
	return c.ResolveElement(ctx, text, opts).Status == LookupFound
}

// WaitForElement rescans the page until text resolves, the timeout passes or
// ctl is interrupted. A timeout is reported as false with a nil error.
func (c *ClickOrchestrator) WaitForElement(ctx context.Context, ctl *SessionControl, text string, opts WaitOptions) (bool, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	clickOpts := ClickOptions{MatchType: opts.MatchType, ElementType: opts.ElementType}
	deadline := time.Now().Add(timeout)

	for {
		if _, err := c.tracker.Refresh(ctx); err != nil {
			c.logger.Debug("Rescan while waiting failed", zap.String("text", text), zap.Error(err))
		}
		lookup := c.ResolveElement(ctx, text, clickOpts)
		switch {
		case lookup.Status == LookupFound:
			return true, nil
		case errors.Is(lookup.Err, ErrInvalidQuery):
			return false, lookup.Err
		}

		left := time.Until(deadline)
		if left <= 0 {
			c.logger.Info("Element did not appear", zap.String("text", text), zap.Duration("timeout", timeout))
			return false, nil
		}
		if err := ctl.Sleep(ctx, min(poll, left)); err != nil {
			return false, err
		}
	}
}

// GetAvailableTexts lists the distinct element texts of the current URL in
// document order.
func (c *ClickOrchestrator) GetAvailableTexts(ctx context.Context) []string {
	entry, ok, err := c.tracker.Current(ctx)
	if err != nil || !ok {
		return []string{}
	}
	seen := make(map[string]struct{}, len(entry.Elements))
	texts := make([]string, 0, len(entry.Elements))
	for _, el := range entry.Elements {
		if _, dup := seen[el.Text]; dup {
			continue
		}
		seen[el.Text] = struct{}{}
		texts = append(texts, el.Text)
	}
	return texts
}

func (c *ClickOrchestrator) settleAndRefresh(ctx context.Context) {
	if c.postClickDelay > 0 {
		t := time.NewTimer(c.postClickDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	if _, err := c.tracker.Refresh(ctx); err != nil {
		c.logger.Warn("Rescan after click failed", zap.Error(err))
	}
}

func (c *ClickOrchestrator) clickByTextScan(ctx context.Context, text string, matchType entity.MatchType) error {
	script, err := textScanClickScript(text, matchType)
	if err != nil {
		return err
	}
	var clicked bool
	if err := c.driver.Evaluate(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return repository.ErrElementNotFound
	}
	return nil
}

// textScanClickScript walks the whole DOM, not just tracked elements, and
// clicks the first element whose direct text or aria-label matches.
func textScanClickScript(text string, matchType entity.MatchType) (string, error) {
	q, err := json.Marshal(strings.TrimSpace(text))
	if err != nil {
		return "", err
	}
	mode, err := json.Marshal(string(matchType))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
	const q = %s, mode = %s;
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
	const lq = q.toLowerCase();
	const match = (t) => mode === 'exact' ? t === q :
		mode === 'contains' ? t.toLowerCase().includes(lq) : t.toLowerCase().startsWith(lq);
	for (const el of document.querySelectorAll('body *')) {
		let direct = '';
		for (const n of el.childNodes) {
			if (n.nodeType === 3) direct += n.textContent;
		}
		const t = norm(direct) || norm(el.getAttribute('aria-label'));
		if (t && match(t)) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
	}
	return false;
})()`, q, mode), nil
}

func idSelector(id string) string {
	if plainIDPattern.MatchString(id) {
		return "#" + id
	}
	return `[id="` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id) + `"]`
}
