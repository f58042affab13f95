package entity

import "time"

// PageStatus is the single overall classification of a page.
type PageStatus string

const (
	StatusOK                    PageStatus = "ok"
	StatusWarning               PageStatus = "warning"
	StatusBlocked               PageStatus = "blocked"
	StatusSuspicious            PageStatus = "suspicious"
	StatusNotLoggedIn           PageStatus = "not_logged_in"
	StatusLoginRequired         PageStatus = "login_required"
	StatusAdConsentRequired     PageStatus = "ad_consent_required"
	StatusCookieConsentRequired PageStatus = "cookie_consent_required"
)

// PageType is derived from the URL of the current page.
type PageType string

const (
	PageTypeFeed       PageType = "feed"
	PageTypeGroup      PageType = "group"
	PageTypeProfile    PageType = "profile"
	PageTypePage       PageType = "page"
	PageTypeLogin      PageType = "login"
	PageTypeCheckpoint PageType = "checkpoint"
	PageTypeUnknown    PageType = "unknown"
)

// Membership states reported by the group probe.
const (
	MembershipMember    = "member"
	MembershipPending   = "pending"
	MembershipNotMember = "not_member"
	MembershipUnknown   = "unknown"
)

type BasicInfo struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	PageType   PageType `json:"page_type"`
	IsLoggedIn bool     `json:"is_logged_in"`
}

// ErrorInfo summarises the error-pattern stage. The per-type flags report
// every condition seen, Severity and PatternType the most severe one.
type ErrorInfo struct {
	HasErrors   bool      `json:"has_errors"`
	Severity    Severity  `json:"severity"`
	PatternType ErrorType `json:"pattern_type,omitempty"`
	Reason      string    `json:"reason,omitempty"`

	AccountLocked        bool `json:"account_locked"`
	IdentityVerification bool `json:"identity_verification"`
	VideoSelfie          bool `json:"video_selfie"`
	Checkpoint           bool `json:"checkpoint"`
	UnexpectedLogin      bool `json:"unexpected_login"`
	AdConsent            bool `json:"ad_consent"`
	CookieConsent        bool `json:"cookie_consent"`
	SuspiciousActivity   bool `json:"suspicious_activity"`
	AccessDenied         bool `json:"access_denied"`

	// Skipped is set when the page looked normal and no error pass ran.
	Skipped bool `json:"skipped"`
}

type ComplexityMetrics struct {
	NodeCount   int `json:"node_count"`
	ImageCount  int `json:"image_count"`
	ScriptCount int `json:"script_count"`
	LinkCount   int `json:"link_count"`
	TextLength  int `json:"text_length"`
}

type ComplexityInfo struct {
	Metrics            ComplexityMetrics `json:"metrics"`
	IsNormal           bool              `json:"is_normal"`
	SuspiciouslySimple bool              `json:"suspiciously_simple"`
}

type NavigationInfo struct {
	HasStandardNavigation bool     `json:"has_standard_navigation"`
	MatchedSelectors      []string `json:"matched_selectors,omitempty"`
}

type PostingInfo struct {
	CanInteract bool   `json:"can_interact"`
	Marker      string `json:"marker,omitempty"`
}

type GroupInfo struct {
	IsGroup          bool   `json:"is_group"`
	MembershipStatus string `json:"membership_status,omitempty"`
	HasJoinButton    bool   `json:"has_join_button"`
}

// AnalysisResult is one full classification of a page. It is never mutated
// after it leaves the analyzer; a newer analysis supersedes it.
type AnalysisResult struct {
	Timestamp       time.Time      `json:"timestamp"`
	URL             string         `json:"url"`
	Status          PageStatus     `json:"status"`
	Basic           BasicInfo      `json:"basic"`
	Errors          ErrorInfo      `json:"errors"`
	Complexity      ComplexityInfo `json:"complexity"`
	Navigation      NavigationInfo `json:"navigation"`
	Posting         PostingInfo    `json:"posting"`
	Group           GroupInfo      `json:"group"`
	Recommendations []string       `json:"recommendations"`
	Details         []string       `json:"details"`
}

// IsCritical reports whether the result carries a critical error pattern.
func (r *AnalysisResult) IsCritical() bool {
	return r != nil && r.Errors.HasErrors && r.Errors.Severity == SeverityCritical
}

// StatusSummary is the cheap, uncached readiness gate.
type StatusSummary struct {
	IsLoggedIn   bool `json:"is_logged_in"`
	HasErrors    bool `json:"has_errors"`
	IsResponsive bool `json:"is_responsive"`
	IsReady      bool `json:"is_ready"`
}

// PostingCheck answers whether the current page accepts a new post.
type PostingCheck struct {
	CanPost  bool     `json:"can_post"`
	Reason   string   `json:"reason"`
	PageType PageType `json:"page_type"`
}
