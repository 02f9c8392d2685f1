package models

import (
	"fmt"
	"strings"
)

// Category classifies a knowledge point by how it is learned
type Category string

const (
	// CategorySystematic is a rule-based error (grammar, tense, agreement)
	CategorySystematic Category = "systematic"
	// CategoryIsolated is a one-off item that has to be memorized (collocation, spelling)
	CategoryIsolated Category = "isolated"
	// CategoryEnhancement marks an answer that was correct but could be improved
	CategoryEnhancement Category = "enhancement"
	// CategoryOther is everything the grader could not place
	CategoryOther Category = "other"
)

// Categories lists every valid category in priority order
var Categories = []Category{
	CategorySystematic,
	CategoryIsolated,
	CategoryEnhancement,
	CategoryOther,
}

// ParseCategory validates free text coming from the grader or a user
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c belongs to the closed category set
func (c Category) Valid() bool {
	switch c {
	case CategorySystematic, CategoryIsolated, CategoryEnhancement, CategoryOther:
		return true
	}
	return false
}

// Throttled reports whether new points of this category count against the daily limit
func (c Category) Throttled() bool {
	return c == CategoryIsolated || c == CategoryEnhancement
}

// Weight ranks categories for scheduling and recommendations
func (c Category) Weight() float64 {
	switch c {
	case CategorySystematic:
		return 1.0
	case CategoryIsolated:
		return 0.75
	case CategoryEnhancement:
		return 0.5
	default:
		return 0.25
	}
}

func (c Category) String() string {
	return string(c)
}
