package entity

import "time"

// Rect is an element's bounding client rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle point of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// TrackedElement is one short-text interactive element captured by a scan.
type TrackedElement struct {
	Text         string `json:"text"`
	TagName      string `json:"tag_name"`
	ClassName    string `json:"class_name,omitempty"`
	ID           string `json:"id,omitempty"`
	Role         string `json:"role,omitempty"`
	XPath        string `json:"xpath"`
	BoundingRect Rect   `json:"bounding_rect"`
	Domain       string `json:"domain"`
}

// ElementCacheEntry holds the element set of one URL. The set is replaced
// wholesale on every refresh.
type ElementCacheEntry struct {
	URL       string           `json:"url"`
	Elements  []TrackedElement `json:"elements"`
	Timestamp time.Time        `json:"timestamp"`
	Domain    string           `json:"domain"`
}

// MatchType selects how a text query is compared to element text.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startsWith"
)
