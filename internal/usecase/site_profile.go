package usecase

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/pkg/utils"
)

// SiteProfile holds the selectors and UI texts the analyzer probes for. The
// defaults target the Czech and English variants of one social network.
type SiteProfile struct {
	// NavigationSelectors make up the standard page chrome. At least
	// MinNavigationMatches of them must be present.
	NavigationSelectors  []string
	MinNavigationMatches int

	LoggedInSelectors  []string
	LoginFormSelectors []string

	// ComposerSelectors and ComposerTexts identify the "new post" box.
	// Texts are compared as prefixes of an element's text.
	ComposerSelectors []string
	ComposerTexts     []string

	// Group button texts, compared for equality.
	GroupJoinTexts    []string
	GroupMemberTexts  []string
	GroupPendingTexts []string
}

func DefaultSiteProfile() SiteProfile {
	return SiteProfile{
		NavigationSelectors: []string{
			`[role="banner"]`,
			`[role="navigation"]`,
			`[role="main"]`,
			`a[aria-label="Facebook"]`,
			`[aria-label="Hledat na Facebooku"]`,
			`[aria-label="Search Facebook"]`,
		},
		MinNavigationMatches: 2,
		LoggedInSelectors: []string{
			`[aria-label="Váš profil"]`,
			`[aria-label="Your profile"]`,
			`[aria-label="Účet"]`,
			`[aria-label="Account"]`,
			`[aria-label="Oznámení"]`,
			`[aria-label="Notifications"]`,
		},
		LoginFormSelectors: []string{
			`form[action*="login"]`,
			`input[name="pass"]`,
			`button[name="login"]`,
			`#loginbutton`,
		},
		ComposerSelectors: []string{
			`[aria-label="Vytvořit příspěvek"]`,
			`[aria-label="Create a post"]`,
			`[aria-label="Napište něco..."]`,
			`[aria-label="Write something..."]`,
		},
		ComposerTexts: []string{
			"Co se vám honí hlavou",
			"Napište něco",
			"Vytvořit veřejný příspěvek",
			"What's on your mind",
			"Write something",
			"Create a public post",
		},
		GroupJoinTexts: []string{
			"Přidat se ke skupině", "Připojit se ke skupině", "Join group",
		},
		GroupMemberTexts: []string{
			"Jste členem", "Členem", "Joined",
		},
		GroupPendingTexts: []string{
			"Zrušit žádost", "Žádost odeslána", "Cancel request",
		},
	}
}

// ClassifyPageType derives the page type from the URL path.
func ClassifyPageType(rawURL string) entity.PageType {
	if utils.Domain(rawURL) == "" {
		return entity.PageTypeUnknown
	}
	segments := utils.PathSegments(rawURL)
	if len(segments) == 0 {
		return entity.PageTypeFeed
	}
	switch strings.ToLower(segments[0]) {
	case "groups":
		return entity.PageTypeGroup
	case "profile.php", "people":
		return entity.PageTypeProfile
	case "pages", "pg":
		return entity.PageTypePage
	case "login", "login.php":
		return entity.PageTypeLogin
	case "checkpoint":
		return entity.PageTypeCheckpoint
	}
	if len(segments) == 1 {
		return entity.PageTypeProfile
	}
	return entity.PageTypeUnknown
}

// matchSelectors returns the selectors that match at least one node.
func matchSelectors(doc *goquery.Document, selectors []string) []string {
	var matched []string
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			matched = append(matched, sel)
		}
	}
	return matched
}

// findText looks for an element under sel whose normalised text equals, or
// with prefix set starts with, one of texts. It returns the matched text.
func findText(doc *goquery.Document, sel string, texts []string, prefix bool) (string, bool) {
	needles := make([]string, 0, len(texts))
	for _, t := range texts {
		needles = append(needles, utils.NormalizeText(t))
	}

	var found string
	doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := utils.NormalizeText(s.Text())
		if text == "" {
			return true
		}
		for i, n := range needles {
			if text == n || (prefix && strings.HasPrefix(text, n)) {
				found = texts[i]
				return false
			}
		}
		return true
	})
	return found, found != ""
}
