// Package character holds the SWAPI people data model and the list merger
// that turns accumulated search pages into the display order.
package character

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout is the MM-DD-YYYY layout used for the created date.
const DisplayDateLayout = "01-02-2006"

// Character is a single SWAPI person. Only the fields the browser consumes
// are decoded; everything else in the payload is ignored.
type Character struct {
	Name     string `json:"name"`
	EyeColor string `json:"eye_color"`
	Gender   string `json:"gender"`

	// Created is kept verbatim. SWAPI sends RFC 3339 with fractional seconds
	// but records may omit it or carry garbage.
	Created string `json:"created"`

	URL string `json:"url,omitempty"`
}

// Key returns the identity used for deduplication: the name plus the
// lower-cased eye colour.
func (c Character) Key() string {
	return c.Name + "\x00" + strings.ToLower(c.EyeColor)
}

// IsBlueEyed reports whether the eye colour is "blue", ignoring case.
func (c Character) IsBlueEyed() bool {
	return strings.EqualFold(c.EyeColor, "blue")
}

// CreatedAt parses Created. The second return value is false when the field
// is missing or unparsable.
func (c Character) CreatedAt() (time.Time, bool) {
	if c.Created == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, c.Created)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DisplayDate renders Created as MM-DD-YYYY in UTC, or "" if it is invalid.
func (c Character) DisplayDate() string {
	t, ok := c.CreatedAt()
	if !ok {
		return ""
	}
	return t.UTC().Format(DisplayDateLayout)
}

// SearchQuery identifies one page of one search term. Pages are 1-indexed.
type SearchQuery struct {
	Term string
	Page int
}

// NewSearchQuery returns the first page for term.
func NewSearchQuery(term string) SearchQuery {
	return SearchQuery{Term: term, Page: 1}
}

// Next returns the query for the following page of the same term.
func (q SearchQuery) Next() SearchQuery {
	return SearchQuery{Term: q.Term, Page: q.Page + 1}
}

// Validate checks the page invariant.
func (q SearchQuery) Validate() error {
	if q.Page < 1 {
		return fmt.Errorf("page must be >= 1 (got %d)", q.Page)
	}
	return nil
}

// String formats the query the way it appears on the wire, unescaped.
func (q SearchQuery) String() string {
	return fmt.Sprintf("search=%s&page=%d", q.Term, q.Page)
}

// PageResult is one decoded page. TotalCount is the server's claimed total
// across all pages for the term. A failed fetch is represented by the zero
// value.
type PageResult struct {
	Characters []Character `json:"results"`
	TotalCount int         `json:"count"`
}

// IsEmpty reports whether the page carries no characters.
func (r PageResult) IsEmpty() bool {
	return len(r.Characters) == 0
}
