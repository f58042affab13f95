package usecase

import (
	"strings"

	"github.com/user/pagestate-service/internal/entity"
)

// Query describes what a caller is looking for among tracked elements.
type Query struct {
	Text        string
	MatchType   entity.MatchType
	ElementType string // tag name or role; empty matches any
	Role        string
}

// ElementLocator picks an element out of a tracked set. Implementations are
// swappable so matching heuristics can be tuned without touching callers.
type ElementLocator interface {
	Locate(elements []entity.TrackedElement, q Query) (entity.TrackedElement, bool)
}

// TextLocator matches on visible text.
//   - exact: trimmed text equality (case-sensitive)
//   - contains / startsWith: case-insensitive substring / prefix
type TextLocator struct{}

func (TextLocator) Locate(elements []entity.TrackedElement, q Query) (entity.TrackedElement, bool) {
	for _, el := range elements {
		if !elementTypeMatches(el, q.ElementType) {
			continue
		}
		if textMatches(el.Text, q.Text, q.MatchType) {
			return el, true
		}
	}
	return entity.TrackedElement{}, false
}

// RoleLocator restricts candidates to an ARIA role (or the equivalent
// native tag) and then applies TextLocator semantics.
type RoleLocator struct{}

func (RoleLocator) Locate(elements []entity.TrackedElement, q Query) (entity.TrackedElement, bool) {
	role := strings.ToLower(q.Role)
	var candidates []entity.TrackedElement
	for _, el := range elements {
		if role == "" || strings.EqualFold(el.Role, role) || implicitRole(el.TagName) == role {
			candidates = append(candidates, el)
		}
	}
	return TextLocator{}.Locate(candidates, q)
}

func validMatchType(m entity.MatchType) bool {
	switch m {
	case entity.MatchExact, entity.MatchContains, entity.MatchStartsWith:
		return true
	}
	return false
}

func textMatches(elementText, query string, matchType entity.MatchType) bool {
	elementText = strings.TrimSpace(elementText)
	query = strings.TrimSpace(query)
	switch matchType {
	case entity.MatchExact:
		return elementText == query
	case entity.MatchContains:
		return strings.Contains(strings.ToLower(elementText), strings.ToLower(query))
	case entity.MatchStartsWith:
		return strings.HasPrefix(strings.ToLower(elementText), strings.ToLower(query))
	}
	return false
}

func elementTypeMatches(el entity.TrackedElement, elementType string) bool {
	if elementType == "" || elementType == "any" {
		return true
	}
	return strings.EqualFold(el.TagName, elementType) || strings.EqualFold(el.Role, elementType)
}

func implicitRole(tag string) string {
	switch strings.ToLower(tag) {
	case "button":
		return "button"
	case "a":
		return "link"
	case "input", "textarea":
		return "textbox"
	case "select":
		return "combobox"
	}
	return ""
}
