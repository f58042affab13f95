package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/user/pagestate-service/internal/entity"
)

var locatorElements = []entity.TrackedElement{
	{Text: "Přidat nový", TagName: "span", XPath: "/html[1]/body[1]/span[1]"},
	{Text: "Přidat", TagName: "span", XPath: "/html[1]/body[1]/span[2]"},
	{Text: "Sdílet", TagName: "div", Role: "button", XPath: "/html[1]/body[1]/div[1]"},
	{Text: "Další informace", TagName: "a", XPath: "/html[1]/body[1]/a[1]"},
}

func TestTextLocator(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
		found bool
	}{
		{"exact skips longer text", Query{Text: "Přidat", MatchType: entity.MatchExact}, "/html[1]/body[1]/span[2]", true},
		{"exact trims", Query{Text: "  Přidat ", MatchType: entity.MatchExact}, "/html[1]/body[1]/span[2]", true},
		{"exact is case sensitive", Query{Text: "přidat", MatchType: entity.MatchExact}, "", false},
		{"contains ignores case", Query{Text: "INFORMACE", MatchType: entity.MatchContains}, "/html[1]/body[1]/a[1]", true},
		{"startsWith takes first in order", Query{Text: "přidat", MatchType: entity.MatchStartsWith}, "/html[1]/body[1]/span[1]", true},
		{"element type filter", Query{Text: "Sdílet", MatchType: entity.MatchExact, ElementType: "button"}, "/html[1]/body[1]/div[1]", true},
		{"element type mismatch", Query{Text: "Sdílet", MatchType: entity.MatchExact, ElementType: "a"}, "", false},
		{"unknown match type", Query{Text: "Přidat", MatchType: "fuzzy"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, ok := TextLocator{}.Locate(locatorElements, tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, el.XPath)
		})
	}
}

func TestRoleLocator(t *testing.T) {
	el, ok := RoleLocator{}.Locate(locatorElements, Query{Text: "Další", MatchType: entity.MatchStartsWith, Role: "link"})
	assert.True(t, ok)
	assert.Equal(t, "a", el.TagName)

	_, ok = RoleLocator{}.Locate(locatorElements, Query{Text: "Přidat", MatchType: entity.MatchExact, Role: "button"})
	assert.False(t, ok)
}
