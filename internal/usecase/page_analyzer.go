package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/pkg/metrics"
	"github.com/user/pagestate-service/pkg/utils"
	"go.uber.org/zap"
)

// Complexity thresholds. A normal page exceeds every lower bound; a page
// under every upper bound is suspiciously simple.
const (
	normalMinNodes   = 1500
	normalMinImages  = 10
	normalMinScripts = 20
	normalMinLinks   = 5

	simpleMaxNodes  = 100
	simpleMaxImages = 5
	simpleMaxText   = 1000
)

const (
	readyStateScript = `document.readyState`
	bodyTextScript   = `document.body ? document.body.innerText : ""`
)

// AnalyzeOptions controls a single AnalyzeFullPage call.
type AnalyzeOptions struct {
	ForceRefresh bool
}

// PageStateAnalyzer classifies the page of one tab and caches the result per
// URL for a short TTL.
type PageStateAnalyzer struct {
	driver  repository.PageDriver
	matcher *ErrorPatternMatcher
	profile SiteProfile
	cache   *analysisCache
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPageStateAnalyzer builds an analyzer. A nil matcher uses the default
// catalog and a non-positive ttl uses DefaultAnalysisTTL.
func NewPageStateAnalyzer(driver repository.PageDriver, matcher *ErrorPatternMatcher, logger *zap.Logger, m *metrics.Metrics, ttl time.Duration) *PageStateAnalyzer {
	if matcher == nil {
		matcher = NewErrorPatternMatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageStateAnalyzer{
		driver:  driver,
		matcher: matcher,
		profile: DefaultSiteProfile(),
		cache:   newAnalysisCache(ttl),
		logger:  logger.Named("analyzer"),
		metrics: m,
		now:     time.Now,
	}
}

// WithProfile replaces the site profile. It must be called before the
// analyzer is shared.
func (a *PageStateAnalyzer) WithProfile(p SiteProfile) *PageStateAnalyzer {
	a.profile = p
	return a
}

// pageSnapshot is one parse of the document shared by every stage.
type pageSnapshot struct {
	doc      *goquery.Document
	bodyText string
}

// AnalyzeFullPage returns the classification of the current page. Within the
// TTL and without ForceRefresh the cached result object is returned as is.
func (a *PageStateAnalyzer) AnalyzeFullPage(ctx context.Context, opts AnalyzeOptions) (*entity.AnalysisResult, error) {
	if err := a.checkPage(); err != nil {
		return nil, fmt.Errorf("analyze page: %w", err)
	}
	url, err := a.driver.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyze page: read url: %w: %v", ErrPageError, err)
	}

	if !opts.ForceRefresh {
		if cached, ok := a.cache.get(url, a.now()); ok {
			a.metrics.IncAnalysisCacheHit()
			a.logger.Debug("Analysis cache hit", zap.String("url", url))
			return cached, nil
		}
	}

	started := a.now()
	result := &entity.AnalysisResult{
		Timestamp:       started,
		URL:             url,
		Recommendations: []string{},
		Details:         []string{},
	}
	degraded := false

	title, err := a.driver.Title(ctx)
	if err != nil {
		a.logger.Warn("Failed to read page title", zap.String("url", url), zap.Error(err))
		result.Details = append(result.Details, "title unavailable")
	}
	result.Basic = entity.BasicInfo{URL: url, Title: title, PageType: ClassifyPageType(url)}

	snap, err := a.snapshot(ctx)
	if err != nil {
		a.logger.Warn("Failed to read page document", zap.String("url", url), zap.Error(err))
		result.Details = append(result.Details, "document unavailable: "+err.Error())
		degraded = true
	}

	result.Complexity = a.analyzeComplexity(snap)
	result.Navigation = a.analyzeNavigation(snap)
	result.Posting = a.analyzePosting(snap)
	result.Group = a.analyzeGroup(snap, result.Basic.PageType, result.Posting)
	result.Basic.IsLoggedIn = a.loggedIn(snap)

	if result.Complexity.IsNormal && result.Navigation.HasStandardNavigation {
		result.Errors = entity.ErrorInfo{Severity: entity.SeverityNone, Skipped: true}
	} else {
		result.Errors = a.analyzeErrors(snap, result)
	}

	result.Status = determineStatus(result)
	result.Recommendations = append(result.Recommendations, recommendationsFor(result)...)

	elapsed := a.now().Sub(started)
	a.metrics.ObserveAnalysis(string(result.Status), elapsed.Seconds())
	a.logger.Info("Page analyzed",
		zap.String("url", url),
		zap.String("status", string(result.Status)),
		zap.String("page_type", string(result.Basic.PageType)),
		zap.Bool("logged_in", result.Basic.IsLoggedIn),
		zap.Duration("elapsed", elapsed),
	)

	if !degraded {
		a.cache.put(url, result, started)
	}
	return result, nil
}

// QuickStatusCheck is a cheap uncached readiness probe.
func (a *PageStateAnalyzer) QuickStatusCheck(ctx context.Context) (entity.StatusSummary, error) {
	if err := a.checkPage(); err != nil {
		return entity.StatusSummary{}, fmt.Errorf("quick status check: %w", err)
	}

	var summary entity.StatusSummary

	var readyState string
	if err := a.driver.Evaluate(ctx, readyStateScript, &readyState); err != nil {
		a.logger.Warn("Ready state probe failed", zap.Error(err))
	}
	summary.IsResponsive = readyState == "complete" || readyState == "interactive"

	loggedIn, err := a.anySelector(ctx, a.profile.LoggedInSelectors)
	if err != nil {
		a.logger.Warn("Logged-in probe failed", zap.Error(err))
	}
	loginForm, err := a.anySelector(ctx, a.profile.LoginFormSelectors)
	if err != nil {
		a.logger.Warn("Login form probe failed", zap.Error(err))
	}
	summary.IsLoggedIn = loggedIn && !loginForm

	var bodyText string
	if err := a.driver.Evaluate(ctx, bodyTextScript, &bodyText); err != nil {
		a.logger.Warn("Body text probe failed", zap.Error(err))
		summary.HasErrors = true
	} else {
		summary.HasErrors = a.matcher.Detect(bodyText).Detected
	}

	summary.IsReady = summary.IsLoggedIn && !summary.HasErrors && summary.IsResponsive
	return summary, nil
}

// VerifyPostingCapability reports whether the current page accepts a new
// post. Groups need membership and a composer, profiles and pages need a
// composer, anything else cannot be posted to.
func (a *PageStateAnalyzer) VerifyPostingCapability(ctx context.Context) (entity.PostingCheck, error) {
	if err := a.checkPage(); err != nil {
		return entity.PostingCheck{}, fmt.Errorf("verify posting capability: %w", err)
	}
	url, err := a.driver.URL(ctx)
	if err != nil {
		return entity.PostingCheck{}, fmt.Errorf("verify posting capability: read url: %w: %v", ErrPageError, err)
	}

	check := entity.PostingCheck{PageType: ClassifyPageType(url)}
	switch check.PageType {
	case entity.PageTypeGroup, entity.PageTypeProfile, entity.PageTypePage:
	default:
		check.Reason = fmt.Sprintf("page type %q does not support posting", check.PageType)
		return check, nil
	}

	snap, err := a.snapshot(ctx)
	if err != nil {
		a.logger.Warn("Posting probe could not read document", zap.String("url", url), zap.Error(err))
		check.Reason = "page document unavailable"
		return check, nil
	}
	posting := a.analyzePosting(snap)

	if check.PageType == entity.PageTypeGroup {
		group := a.analyzeGroup(snap, check.PageType, posting)
		switch {
		case group.MembershipStatus == entity.MembershipPending:
			check.Reason = "group membership request is pending"
		case group.MembershipStatus != entity.MembershipMember:
			check.Reason = "not a member of the group"
		case !posting.CanInteract:
			check.Reason = "group composer not found"
		default:
			check.CanPost = true
			check.Reason = "group member with composer"
		}
		return check, nil
	}

	if posting.CanInteract {
		check.CanPost = true
		check.Reason = "composer available"
	} else {
		check.Reason = "composer not found"
	}
	return check, nil
}

// InvalidateCache drops the cached analysis of url.
func (a *PageStateAnalyzer) InvalidateCache(url string) {
	a.cache.invalidate(url)
}

// ClearCache drops every cached analysis.
func (a *PageStateAnalyzer) ClearCache() {
	a.cache.clear()
}

func (a *PageStateAnalyzer) checkPage() error {
	if a.driver == nil || a.driver.Closed() {
		return ErrPageError
	}
	return nil
}

func (a *PageStateAnalyzer) snapshot(ctx context.Context) (*pageSnapshot, error) {
	html, err := a.driver.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return &pageSnapshot{doc: doc, bodyText: utils.CollapseSpace(body.Text())}, nil
}

func (a *PageStateAnalyzer) anySelector(ctx context.Context, selectors []string) (bool, error) {
	for _, sel := range selectors {
		ok, err := a.driver.Exists(ctx, sel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (a *PageStateAnalyzer) analyzeComplexity(snap *pageSnapshot) entity.ComplexityInfo {
	if snap == nil {
		return entity.ComplexityInfo{}
	}
	m := entity.ComplexityMetrics{
		NodeCount:   snap.doc.Find("*").Length(),
		ImageCount:  snap.doc.Find("img").Length(),
		ScriptCount: snap.doc.Find("script").Length(),
		LinkCount:   snap.doc.Find("a[href]").Length(),
		TextLength:  utf8.RuneCountInString(snap.bodyText),
	}
	return classifyComplexity(m)
}

func classifyComplexity(m entity.ComplexityMetrics) entity.ComplexityInfo {
	return entity.ComplexityInfo{
		Metrics: m,
		IsNormal: m.NodeCount > normalMinNodes &&
			m.ImageCount > normalMinImages &&
			m.ScriptCount > normalMinScripts &&
			m.LinkCount > normalMinLinks,
		SuspiciouslySimple: m.NodeCount < simpleMaxNodes &&
			m.ImageCount < simpleMaxImages &&
			m.TextLength < simpleMaxText,
	}
}

func (a *PageStateAnalyzer) analyzeNavigation(snap *pageSnapshot) entity.NavigationInfo {
	if snap == nil {
		return entity.NavigationInfo{}
	}
	matched := matchSelectors(snap.doc, a.profile.NavigationSelectors)
	return entity.NavigationInfo{
		HasStandardNavigation: len(matched) >= max(a.profile.MinNavigationMatches, 1),
		MatchedSelectors:      matched,
	}
}

func (a *PageStateAnalyzer) analyzePosting(snap *pageSnapshot) entity.PostingInfo {
	if snap == nil {
		return entity.PostingInfo{}
	}
	if matched := matchSelectors(snap.doc, a.profile.ComposerSelectors); len(matched) > 0 {
		return entity.PostingInfo{CanInteract: true, Marker: matched[0]}
	}
	if text, ok := findText(snap.doc, `[role="button"], span`, a.profile.ComposerTexts, true); ok {
		return entity.PostingInfo{CanInteract: true, Marker: text}
	}
	return entity.PostingInfo{}
}

func (a *PageStateAnalyzer) analyzeGroup(snap *pageSnapshot, pageType entity.PageType, posting entity.PostingInfo) entity.GroupInfo {
	info := entity.GroupInfo{IsGroup: pageType == entity.PageTypeGroup}
	if !info.IsGroup {
		return info
	}
	info.MembershipStatus = entity.MembershipUnknown
	if snap == nil {
		return info
	}

	const buttons = `[role="button"], button, a, span`
	_, info.HasJoinButton = findText(snap.doc, buttons, a.profile.GroupJoinTexts, false)
	switch {
	case hasText(snap.doc, buttons, a.profile.GroupPendingTexts):
		info.MembershipStatus = entity.MembershipPending
	case hasText(snap.doc, buttons, a.profile.GroupMemberTexts):
		info.MembershipStatus = entity.MembershipMember
	case info.HasJoinButton:
		info.MembershipStatus = entity.MembershipNotMember
	case posting.CanInteract:
		// Only members see the group composer.
		info.MembershipStatus = entity.MembershipMember
	}
	return info
}

func hasText(doc *goquery.Document, sel string, texts []string) bool {
	_, ok := findText(doc, sel, texts, false)
	return ok
}

func (a *PageStateAnalyzer) loggedIn(snap *pageSnapshot) bool {
	if snap == nil {
		return false
	}
	return len(matchSelectors(snap.doc, a.profile.LoggedInSelectors)) > 0 &&
		len(matchSelectors(snap.doc, a.profile.LoginFormSelectors)) == 0
}

// analyzeErrors runs the phrase catalog over the body text. It only runs for
// pages whose structure already looks off, and uses the earlier stages to
// fill in what the text alone cannot tell.
func (a *PageStateAnalyzer) analyzeErrors(snap *pageSnapshot, result *entity.AnalysisResult) entity.ErrorInfo {
	if snap == nil {
		return entity.ErrorInfo{
			HasErrors:   true,
			Severity:    entity.SeverityWarning,
			PatternType: entity.ErrorTypeAnalysisError,
			Reason:      "page content could not be analyzed",
		}
	}

	det := a.matcher.Detect(snap.bodyText)
	info := entity.ErrorInfo{Severity: entity.SeverityNone}
	for _, t := range det.Matches {
		setErrorFlag(&info, t)
	}
	if det.Detected {
		info.HasErrors = true
		info.Severity = det.Severity
		info.PatternType = det.Type
		info.Reason = det.Reason
	}

	switch {
	case !info.HasErrors && result.Basic.PageType == entity.PageTypeCheckpoint:
		info.HasErrors = true
		info.Checkpoint = true
		info.Severity = a.matcher.Severity(entity.ErrorTypeCheckpoint)
		info.PatternType = entity.ErrorTypeCheckpoint
		info.Reason = "checkpoint URL"
	case !info.HasErrors && result.Basic.PageType == entity.PageTypeLogin:
		info.HasErrors = true
		info.UnexpectedLogin = true
		info.Severity = a.matcher.Severity(entity.ErrorTypeUnexpectedLoginPage)
		info.PatternType = entity.ErrorTypeUnexpectedLoginPage
		info.Reason = "login URL"
	}
	if !info.HasErrors && result.Complexity.SuspiciouslySimple {
		result.Details = append(result.Details, "page is suspiciously simple but matched no error pattern")
	}
	return info
}

func setErrorFlag(info *entity.ErrorInfo, t entity.ErrorType) {
	switch t {
	case entity.ErrorTypeAccountLocked:
		info.AccountLocked = true
	case entity.ErrorTypeIdentityVerification:
		info.IdentityVerification = true
	case entity.ErrorTypeVideoSelfie:
		info.VideoSelfie = true
	case entity.ErrorTypeCheckpoint, entity.ErrorTypeSecurityCheckpoint:
		info.Checkpoint = true
	case entity.ErrorTypeUnexpectedLoginPage:
		info.UnexpectedLogin = true
	case entity.ErrorTypeAdConsentRequired:
		info.AdConsent = true
	case entity.ErrorTypeCookieConsentRequired:
		info.CookieConsent = true
	case entity.ErrorTypeSuspiciousActivity:
		info.SuspiciousActivity = true
	case entity.ErrorTypeAccessDenied:
		info.AccessDenied = true
	}
}

// determineStatus applies the fixed precedence: unexpected login, consent
// screens, critical errors, other errors, logged out, suspicious, ok. Only
// the winning pattern decides; the per-type flags are for reporting.
func determineStatus(r *entity.AnalysisResult) entity.PageStatus {
	e := r.Errors
	switch {
	case e.HasErrors && e.PatternType == entity.ErrorTypeUnexpectedLoginPage:
		return entity.StatusLoginRequired
	case e.HasErrors && e.Severity == entity.SeverityActionRequired && e.PatternType == entity.ErrorTypeAdConsentRequired:
		return entity.StatusAdConsentRequired
	case e.HasErrors && e.Severity == entity.SeverityActionRequired && e.PatternType == entity.ErrorTypeCookieConsentRequired:
		return entity.StatusCookieConsentRequired
	case e.HasErrors && e.Severity == entity.SeverityCritical:
		return entity.StatusBlocked
	case e.HasErrors:
		return entity.StatusWarning
	case !r.Basic.IsLoggedIn:
		return entity.StatusNotLoggedIn
	case r.Complexity.SuspiciouslySimple:
		return entity.StatusSuspicious
	}
	return entity.StatusOK
}

func recommendationsFor(r *entity.AnalysisResult) []string {
	switch r.Status {
	case entity.StatusLoginRequired:
		return []string{"restore the account session before continuing"}
	case entity.StatusAdConsentRequired:
		return []string{"resolve the ad consent choice"}
	case entity.StatusCookieConsentRequired:
		return []string{"accept or decline cookies"}
	case entity.StatusBlocked:
		return []string{"stop using this account", "block this hostname"}
	case entity.StatusWarning:
		return []string{"slow down and re-check the page"}
	case entity.StatusNotLoggedIn:
		return []string{"log in"}
	case entity.StatusSuspicious:
		return []string{"reload the page and analyze again"}
	}
	if !r.Posting.CanInteract {
		return []string{"navigate to a page with a composer before posting"}
	}
	return nil
}
