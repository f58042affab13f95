package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/user/pagestate-service/internal/entity"
)

func TestErrorPatternMatcherDetect(t *testing.T) {
	m := NewErrorPatternMatcher(nil)

	tests := []struct {
		name     string
		text     string
		detected bool
		want     entity.ErrorType
		severity entity.Severity
	}{
		{"no match", "Vítejte zpět, máte 3 nová oznámení", false, "", entity.SeverityNone},
		{"empty", "   ", false, "", entity.SeverityNone},
		{"account locked", "Váš účet je uzamčený. Další informace", true, entity.ErrorTypeAccountLocked, entity.SeverityCritical},
		{"without diacritics", "vas ucet je uzamceny", true, entity.ErrorTypeAccountLocked, entity.SeverityCritical},
		{"english checkpoint", "Security Check required", true, entity.ErrorTypeCheckpoint, entity.SeverityCritical},
		{"cookie consent", "Povolit všechny soubory cookie", true, entity.ErrorTypeCookieConsentRequired, entity.SeverityActionRequired},
		{"warning only", "We noticed unusual activity", true, entity.ErrorTypeSuspiciousActivity, entity.SeverityWarning},
		{"consent beats warning", "suspicious activity ... Allow all cookies", true, entity.ErrorTypeCookieConsentRequired, entity.SeverityActionRequired},
		{"critical beats consent", "Allow all cookies. Your account has been locked", true, entity.ErrorTypeAccountLocked, entity.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.Detect(tt.text)
			assert.Equal(t, tt.detected, d.Detected)
			assert.Equal(t, tt.want, d.Type)
			assert.Equal(t, tt.severity, d.Severity)
		})
	}
}

func TestErrorPatternMatcherCatalogOrderBreaksTies(t *testing.T) {
	m := NewErrorPatternMatcher(nil)
	d := m.Detect("Log in to Facebook. Your account has been locked.")
	assert.Equal(t, entity.ErrorTypeAccountLocked, d.Type)
	assert.Equal(t, []entity.ErrorType{entity.ErrorTypeAccountLocked, entity.ErrorTypeUnexpectedLoginPage}, d.Matches)
	assert.Equal(t, d.Matches, m.DetectAll("Log in to Facebook. Your account has been locked."))
}

func TestErrorPatternMatcherCustomCatalog(t *testing.T) {
	m := NewErrorPatternMatcher([]entity.ErrorPattern{{
		MatchTexts:      []string{"Zkuste to později"},
		Reason:          "rate limited",
		Type:            entity.ErrorTypeAccessDenied,
		PrecedenceClass: entity.SeverityWarning,
	}})

	d := m.Detect("Něco se pokazilo. Zkuste to později.")
	assert.True(t, d.Detected)
	assert.Equal(t, "rate limited", d.Reason)
	assert.Equal(t, entity.SeverityWarning, m.Severity(entity.ErrorTypeAccessDenied))
	assert.Equal(t, entity.SeverityNone, m.Severity(entity.ErrorTypeAccountLocked))
	assert.False(t, m.Detect("Váš účet je uzamčený").Detected)
}
