package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/pagestate-service/internal/entity"
)

// busyPage renders a document that passes every "normal" complexity bound
// and carries the standard navigation chrome.
func busyPage(body string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Facebook</title>`)
	b.WriteString(strings.Repeat(`<script>var x = 1;</script>`, 25))
	b.WriteString(`</head><body><div role="banner"></div><div role="navigation"></div><div role="main">`)
	b.WriteString(`<div aria-label="Váš profil"></div>`)
	b.WriteString(strings.Repeat(`<img src="a.png">`, 15))
	b.WriteString(strings.Repeat(`<a href="/x">odkaz</a>`, 10))
	b.WriteString(strings.Repeat(`<div><span>položka</span></div>`, 800))
	b.WriteString(body)
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func newTestAnalyzer(d *fakeDriver, clock *fakeClock) *PageStateAnalyzer {
	a := NewPageStateAnalyzer(d, nil, nil, nil, DefaultAnalysisTTL)
	a.now = clock.Now
	return a
}

func TestAnalyzeFullPageIsIdempotentWithinTTL(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.html = busyPage("")
	clock := newFakeClock()
	a := newTestAnalyzer(d, clock)
	ctx := context.Background()

	first, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOK, first.Status)
	assert.True(t, first.Errors.Skipped)

	clock.Advance(4 * time.Second)
	second, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, 1, d.htmlCalls)

	forced, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.NotSame(t, first, forced)

	clock.Advance(5 * time.Second)
	expired, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)
	assert.NotSame(t, forced, expired)
	assert.Equal(t, clock.Now(), expired.Timestamp)
}

func TestAnalyzeFullPageCacheInvalidation(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.html = busyPage("")
	a := newTestAnalyzer(d, newFakeClock())
	ctx := context.Background()

	first, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)

	a.InvalidateCache("https://www.facebook.com/")
	second, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	a.ClearCache()
	third, err := a.AnalyzeFullPage(ctx, AnalyzeOptions{})
	require.NoError(t, err)
	assert.NotSame(t, second, third)
}

func TestAnalyzeFullPageUnexpectedLoginIsLoginRequired(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/groups/123")
	d.html = `<html><body>
		<form action="/login/device-based"><input name="pass"></form>
		<div>Přihlaste se k Facebooku</div>
		<a href="/recover">Zapomenutý účet?</a>
	</body></html>`
	a := newTestAnalyzer(d, newFakeClock())

	r, err := a.AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusLoginRequired, r.Status)
	assert.Equal(t, entity.ErrorTypeUnexpectedLoginPage, r.Errors.PatternType)
	assert.True(t, r.Errors.UnexpectedLogin)
	assert.False(t, r.Basic.IsLoggedIn)
}

func TestAnalyzeFullPageAccountLockedBeatsConcurrentPatterns(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		flags func(entity.ErrorInfo) bool
	}{
		{
			name:  "cookie banner",
			body:  `<p>Váš účet byl uzamčen</p><div>Allow all cookies</div>`,
			flags: func(e entity.ErrorInfo) bool { return e.CookieConsent },
		},
		{
			name:  "login link",
			body:  `<p>Your account has been locked</p><a href="/recover">Forgot account?</a>`,
			flags: func(e entity.ErrorInfo) bool { return e.UnexpectedLogin },
		},
		{
			name:  "ad consent",
			body:  `<p>Váš účet je uzamčený</p><p>Používejte zdarma s reklamami</p>`,
			flags: func(e entity.ErrorInfo) bool { return e.AdConsent },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver("https://www.facebook.com/")
			d.html = `<html><body>` + tt.body + `</body></html>`
			a := newTestAnalyzer(d, newFakeClock())

			r, err := a.AnalyzeFullPage(context.Background(), AnalyzeOptions{})
			require.NoError(t, err)
			assert.Equal(t, entity.StatusBlocked, r.Status)
			assert.Equal(t, entity.SeverityCritical, r.Errors.Severity)
			assert.Equal(t, entity.ErrorTypeAccountLocked, r.Errors.PatternType)
			assert.True(t, r.Errors.AccountLocked)
			assert.True(t, tt.flags(r.Errors), "concurrent match is still reported")

			banType, ok := BanTypeOf(r)
			assert.True(t, ok)
			assert.Equal(t, entity.ErrorTypeAccountLocked, banType)
		})
	}
}

func TestAnalyzeFullPageAccountLockedIsCritical(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.html = `<html><body><div aria-label="Váš profil"></div><p>Váš účet byl uzamčen</p></body></html>`
	a := newTestAnalyzer(d, newFakeClock())

	r, err := a.AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusBlocked, r.Status)
	assert.True(t, r.Errors.HasErrors)
	assert.True(t, r.Errors.AccountLocked)
	assert.Equal(t, entity.SeverityCritical, r.Errors.Severity)
	assert.Equal(t, entity.ErrorTypeAccountLocked, r.Errors.PatternType)
	assert.True(t, r.IsCritical())
	assert.Contains(t, r.Recommendations, "block this hostname")
}

func TestAnalyzeFullPageStatusPrecedence(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
		want entity.PageStatus
	}{
		{
			name: "ad consent",
			url:  "https://www.facebook.com/",
			html: `<body><div aria-label="Váš profil"></div><p>Používejte zdarma s reklamami</p><p>unusual activity</p></body>`,
			want: entity.StatusAdConsentRequired,
		},
		{
			name: "cookie consent",
			url:  "https://www.facebook.com/",
			html: `<body><div aria-label="Váš profil"></div><p>Allow all cookies</p><p>access denied</p></body>`,
			want: entity.StatusCookieConsentRequired,
		},
		{
			name: "consent with critical",
			url:  "https://www.facebook.com/",
			html: `<body><div aria-label="Váš profil"></div><p>Allow all cookies</p><p>Verify your identity</p></body>`,
			want: entity.StatusBlocked,
		},
		{
			name: "login text with video selfie",
			url:  "https://www.facebook.com/",
			html: `<body><p>Log in to Facebook</p><p>Take a video selfie</p></body>`,
			want: entity.StatusBlocked,
		},
		{
			name: "warning",
			url:  "https://www.facebook.com/",
			html: `<body><div aria-label="Váš profil"></div><p>Tento obsah teď není dostupný</p></body>`,
			want: entity.StatusWarning,
		},
		{
			name: "not logged in",
			url:  "https://www.facebook.com/",
			html: `<body><p>Ahoj</p></body>`,
			want: entity.StatusNotLoggedIn,
		},
		{
			name: "suspicious",
			url:  "https://www.facebook.com/",
			html: `<body><div aria-label="Your profile"></div><p>` + strings.Repeat("a", 400) + `</p></body>`,
			want: entity.StatusSuspicious,
		},
		{
			name: "checkpoint url",
			url:  "https://www.facebook.com/checkpoint/828281030927956",
			html: `<body><div aria-label="Váš profil"></div><p>Pokračovat</p></body>`,
			want: entity.StatusBlocked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(tt.url)
			d.html = `<html>` + tt.html + `</html>`
			r, err := newTestAnalyzer(d, newFakeClock()).AnalyzeFullPage(context.Background(), AnalyzeOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Status)
		})
	}
}

func TestAnalyzeFullPageClosedDriver(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.closed = true
	_, err := newTestAnalyzer(d, newFakeClock()).AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	assert.ErrorIs(t, err, ErrPageError)

	_, err = NewPageStateAnalyzer(nil, nil, nil, nil, 0).AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	assert.ErrorIs(t, err, ErrPageError)
}

func TestAnalyzeFullPageDegradesWhenDocumentUnreadable(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.htmlErr = errors.New("target crashed")
	a := newTestAnalyzer(d, newFakeClock())

	r, err := a.AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	require.NoError(t, err)
	assert.False(t, r.Complexity.IsNormal)
	assert.False(t, r.Navigation.HasStandardNavigation)
	assert.False(t, r.Posting.CanInteract)
	assert.True(t, r.Errors.HasErrors)
	assert.Equal(t, entity.ErrorTypeAnalysisError, r.Errors.PatternType)
	assert.Equal(t, entity.StatusWarning, r.Status)

	again, err := a.AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	require.NoError(t, err)
	assert.NotSame(t, r, again, "degraded results are not cached")
}

func TestClassifyComplexity(t *testing.T) {
	normal := classifyComplexity(entity.ComplexityMetrics{NodeCount: 2000, ImageCount: 15, ScriptCount: 25, LinkCount: 10, TextLength: 5000})
	assert.True(t, normal.IsNormal)
	assert.False(t, normal.SuspiciouslySimple)

	simple := classifyComplexity(entity.ComplexityMetrics{NodeCount: 50, ImageCount: 2, TextLength: 400})
	assert.False(t, simple.IsNormal)
	assert.True(t, simple.SuspiciouslySimple)

	edge := classifyComplexity(entity.ComplexityMetrics{NodeCount: 1500, ImageCount: 15, ScriptCount: 25, LinkCount: 10})
	assert.False(t, edge.IsNormal)
}

func TestAnalyzeComplexityCountsDocument(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.html = busyPage("")
	r, err := newTestAnalyzer(d, newFakeClock()).AnalyzeFullPage(context.Background(), AnalyzeOptions{})
	require.NoError(t, err)

	m := r.Complexity.Metrics
	assert.Equal(t, 15, m.ImageCount)
	assert.Equal(t, 25, m.ScriptCount)
	assert.Equal(t, 10, m.LinkCount)
	assert.Greater(t, m.NodeCount, 1500)
	assert.True(t, r.Complexity.IsNormal)
	assert.True(t, r.Navigation.HasStandardNavigation)
	assert.Less(t, m.TextLength, 10000)
}

func TestQuickStatusCheck(t *testing.T) {
	d := newFakeDriver("https://www.facebook.com/")
	d.exists[`[aria-label="Váš profil"]`] = true
	d.bodyText = "Co se vám honí hlavou?"
	a := newTestAnalyzer(d, newFakeClock())
	ctx := context.Background()

	s, err := a.QuickStatusCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSummary{IsLoggedIn: true, IsResponsive: true, IsReady: true}, s)

	d.readyState = "loading"
	s, err = a.QuickStatusCheck(ctx)
	require.NoError(t, err)
	assert.False(t, s.IsResponsive)
	assert.False(t, s.IsReady)

	d.readyState = "interactive"
	d.bodyText = "Potvrďte svou totožnost"
	s, err = a.QuickStatusCheck(ctx)
	require.NoError(t, err)
	assert.True(t, s.HasErrors)
	assert.False(t, s.IsReady)

	d.exists[`input[name="pass"]`] = true
	s, err = a.QuickStatusCheck(ctx)
	require.NoError(t, err)
	assert.False(t, s.IsLoggedIn)

	d.closed = true
	_, err = a.QuickStatusCheck(ctx)
	assert.ErrorIs(t, err, ErrPageError)
}

func TestVerifyPostingCapability(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		body    string
		canPost bool
		reason  string
	}{
		{"group member", "https://www.facebook.com/groups/42", `<div role="button">Jste členem</div><div role="button"><span>Napište něco...</span></div>`, true, "group member with composer"},
		{"group composer implies member", "https://www.facebook.com/groups/42", `<div aria-label="Vytvořit příspěvek"></div>`, true, "group member with composer"},
		{"group not member", "https://www.facebook.com/groups/42", `<div role="button"><span>Přidat se ke skupině</span></div>`, false, "not a member of the group"},
		{"group pending", "https://www.facebook.com/groups/42", `<div role="button">Zrušit žádost</div>`, false, "group membership request is pending"},
		{"group member without composer", "https://www.facebook.com/groups/42", `<div role="button">Joined</div>`, false, "group composer not found"},
		{"profile with composer", "https://www.facebook.com/jan.novak", `<span>What's on your mind, Jan?</span>`, true, "composer available"},
		{"page without composer", "https://www.facebook.com/pages/Kavarna/1", `<p>Kavárna</p>`, false, "composer not found"},
		{"feed", "https://www.facebook.com/", `<span>Co se vám honí hlavou?</span>`, false, `page type "feed" does not support posting`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(tt.url)
			d.html = `<html><body>` + tt.body + `</body></html>`
			check, err := newTestAnalyzer(d, newFakeClock()).VerifyPostingCapability(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.canPost, check.CanPost)
			assert.Equal(t, tt.reason, check.Reason)
		})
	}
}

func TestClassifyPageType(t *testing.T) {
	tests := map[string]entity.PageType{
		"https://www.facebook.com/":                    entity.PageTypeFeed,
		"https://www.facebook.com/groups/123/":         entity.PageTypeGroup,
		"https://www.facebook.com/profile.php?id=1":    entity.PageTypeProfile,
		"https://www.facebook.com/people/Jan/1":        entity.PageTypeProfile,
		"https://www.facebook.com/jan.novak":           entity.PageTypeProfile,
		"https://www.facebook.com/pages/Kavarna/1":     entity.PageTypePage,
		"https://www.facebook.com/login/":              entity.PageTypeLogin,
		"https://www.facebook.com/checkpoint/15010928": entity.PageTypeCheckpoint,
		"https://www.facebook.com/marketplace/item/1":  entity.PageTypeUnknown,
		"not a url": entity.PageTypeUnknown,
	}
	for url, want := range tests {
		assert.Equal(t, want, ClassifyPageType(url), url)
	}
}
