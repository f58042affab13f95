package usecase

import (
	"strings"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/pkg/utils"
)

// DefaultErrorPatterns is the phrase catalog for the target site in Czech and
// English. Order matters only between patterns of the same severity.
var DefaultErrorPatterns = []entity.ErrorPattern{
	{
		MatchTexts: []string{
			"váš účet je uzamčený", "váš účet byl uzamčen", "účet byl uzamčen",
			"your account has been locked", "your account is locked",
			"pozastavili jsme váš účet", "we suspended your account",
			"váš účet byl deaktivován", "your account has been disabled",
		},
		Reason:          "Account is locked or suspended",
		Type:            entity.ErrorTypeAccountLocked,
		PrecedenceClass: entity.SeverityCritical,
	},
	{
		MatchTexts: []string{
			"video selfie", "videoselfie", "natočte video", "take a video selfie",
		},
		Reason:          "Video selfie verification requested",
		Type:            entity.ErrorTypeVideoSelfie,
		PrecedenceClass: entity.SeverityCritical,
	},
	{
		MatchTexts: []string{
			"potvrďte svou totožnost", "ověřte svou totožnost", "ověřte svou identitu",
			"confirm your identity", "verify your identity",
			"nahrajte fotku", "upload a photo of yourself",
		},
		Reason:          "Identity verification requested",
		Type:            entity.ErrorTypeIdentityVerification,
		PrecedenceClass: entity.SeverityCritical,
	},
	{
		MatchTexts: []string{
			"bezpečnostní kontrola", "security check",
			"zadejte kód z ověřovací", "enter the code from your",
			"potvrďte, že jste to vy", "confirm it's you",
		},
		Reason:          "Security checkpoint interstitial",
		Type:            entity.ErrorTypeCheckpoint,
		PrecedenceClass: entity.SeverityCritical,
	},
	{
		MatchTexts: []string{
			"přihlaste se k facebooku", "přihlásit se k facebooku",
			"log in to facebook", "log into facebook",
			"pro pokračování se musíte přihlásit", "you must log in to continue",
			"zapomenutý účet?", "forgot account?",
		},
		Reason:          "Login form shown to a session that should be logged in",
		Type:            entity.ErrorTypeUnexpectedLoginPage,
		PrecedenceClass: entity.SeverityCritical,
	},
	{
		MatchTexts: []string{
			"používejte zdarma s reklamami", "použít zdarma s reklamami",
			"use for free with ads", "use facebook free of charge with ads",
			"předplatné bez reklam", "subscribe to use without ads",
		},
		Reason:          "Ad consent choice must be made",
		Type:            entity.ErrorTypeAdConsentRequired,
		PrecedenceClass: entity.SeverityActionRequired,
	},
	{
		MatchTexts: []string{
			"povolit všechny soubory cookie", "povolit používání souborů cookie",
			"allow all cookies", "allow the use of cookies",
			"odmítnout volitelné soubory cookie", "decline optional cookies",
		},
		Reason:          "Cookie consent dialog is open",
		Type:            entity.ErrorTypeCookieConsentRequired,
		PrecedenceClass: entity.SeverityActionRequired,
	},
	{
		MatchTexts: []string{
			"podezřelou aktivitu", "podezřelá aktivita", "suspicious activity",
			"neobvyklou aktivitu", "unusual activity",
		},
		Reason:          "Site reports suspicious activity",
		Type:            entity.ErrorTypeSuspiciousActivity,
		PrecedenceClass: entity.SeverityWarning,
	},
	{
		MatchTexts: []string{
			"tento obsah teď není dostupný", "this content isn't available",
			"tuto funkci teď nemůžete používat", "you can't use this feature right now",
			"přístup odepřen", "access denied",
		},
		Reason:          "Content or feature is not accessible",
		Type:            entity.ErrorTypeAccessDenied,
		PrecedenceClass: entity.SeverityWarning,
	},
}

type compiledPattern struct {
	pattern entity.ErrorPattern
	needles []string
}

// ErrorPatternMatcher scans page text against an ordered, read-only catalog.
type ErrorPatternMatcher struct {
	patterns []compiledPattern
}

// NewErrorPatternMatcher normalises the catalog once. A nil catalog selects
// DefaultErrorPatterns.
func NewErrorPatternMatcher(catalog []entity.ErrorPattern) *ErrorPatternMatcher {
	if catalog == nil {
		catalog = DefaultErrorPatterns
	}
	m := &ErrorPatternMatcher{patterns: make([]compiledPattern, 0, len(catalog))}
	for _, p := range catalog {
		cp := compiledPattern{pattern: p}
		for _, text := range p.MatchTexts {
			if n := utils.NormalizeText(text); n != "" {
				cp.needles = append(cp.needles, n)
			}
		}
		m.patterns = append(m.patterns, cp)
	}
	return m
}

// Detect returns the most severe matching pattern. Among equally severe
// matches the earliest catalog entry wins.
func (m *ErrorPatternMatcher) Detect(pageText string) entity.Detection {
	haystack := utils.NormalizeText(pageText)
	if haystack == "" {
		return entity.Detection{Severity: entity.SeverityNone}
	}

	result := entity.Detection{Severity: entity.SeverityNone}
	var best *compiledPattern
	for i := range m.patterns {
		cp := &m.patterns[i]
		needle, ok := cp.match(haystack)
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, cp.pattern.Type)
		if best == nil || cp.pattern.PrecedenceClass.Rank() > best.pattern.PrecedenceClass.Rank() {
			best = cp
			result.MatchedText = needle
		}
	}
	if best == nil {
		return result
	}

	result.Detected = true
	result.Type = best.pattern.Type
	result.Reason = best.pattern.Reason
	result.Severity = best.pattern.PrecedenceClass
	return result
}

// Severity returns the catalog severity of an error type, SeverityNone if
// the type is not in the catalog.
func (m *ErrorPatternMatcher) Severity(t entity.ErrorType) entity.Severity {
	for _, cp := range m.patterns {
		if cp.pattern.Type == t {
			return cp.pattern.PrecedenceClass
		}
	}
	return entity.SeverityNone
}

func (cp *compiledPattern) match(haystack string) (string, bool) {
	for _, n := range cp.needles {
		if strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

// DetectAll returns every matching error type in catalog order.
func (m *ErrorPatternMatcher) DetectAll(pageText string) []entity.ErrorType {
	return m.Detect(pageText).Matches
}
