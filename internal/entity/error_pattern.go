package entity

// ErrorType names a classification outcome. These are returned as data from
// classification calls, never raised as Go errors.
type ErrorType string

const (
	ErrorTypePageError             ErrorType = "PAGE_ERROR"
	ErrorTypeNavigationError       ErrorType = "NAVIGATION_ERROR"
	ErrorTypeAnalysisError         ErrorType = "ANALYSIS_ERROR"
	ErrorTypeAccountLocked         ErrorType = "ACCOUNT_LOCKED"
	ErrorTypeCheckpoint            ErrorType = "CHECKPOINT"
	ErrorTypeSecurityCheckpoint    ErrorType = "SECURITY_CHECKPOINT"
	ErrorTypeVideoSelfie           ErrorType = "VIDEOSELFIE"
	ErrorTypeIdentityVerification  ErrorType = "IDENTITY_VERIFICATION"
	ErrorTypeSuspiciousActivity    ErrorType = "SUSPICIOUS_ACTIVITY"
	ErrorTypeAccessDenied          ErrorType = "ACCESS_DENIED"
	ErrorTypeAdConsentRequired     ErrorType = "AD_CONSENT_REQUIRED"
	ErrorTypeCookieConsentRequired ErrorType = "COOKIE_CONSENT_REQUIRED"
	ErrorTypeUnexpectedLoginPage   ErrorType = "UNEXPECTED_LOGIN_PAGE"
)

// Valid reports whether t is one of the known classification outcomes.
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorTypePageError, ErrorTypeNavigationError, ErrorTypeAnalysisError,
		ErrorTypeAccountLocked, ErrorTypeCheckpoint, ErrorTypeSecurityCheckpoint,
		ErrorTypeVideoSelfie, ErrorTypeIdentityVerification, ErrorTypeSuspiciousActivity,
		ErrorTypeAccessDenied, ErrorTypeAdConsentRequired, ErrorTypeCookieConsentRequired,
		ErrorTypeUnexpectedLoginPage:
		return true
	}
	return false
}

// Severity orders error patterns. Higher values win.
type Severity string

const (
	SeverityNone           Severity = "none"
	SeverityWarning        Severity = "warning"
	SeverityActionRequired Severity = "action_required"
	SeverityCritical       Severity = "critical"
)

// Rank returns the ordinal of s so severities can be compared.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityActionRequired:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// ErrorPattern is one entry of the static phrase catalog.
type ErrorPattern struct {
	MatchTexts      []string
	Reason          string
	Type            ErrorType
	PrecedenceClass Severity
}

// Detection is the outcome of scanning page text against the catalog.
type Detection struct {
	Detected    bool      `json:"detected"`
	Type        ErrorType `json:"type,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Severity    Severity  `json:"severity"`
	MatchedText string    `json:"matched_text,omitempty"`
	// Matches lists every pattern type that matched, in catalog order.
	Matches []ErrorType `json:"matches,omitempty"`
}
