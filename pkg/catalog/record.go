// Package catalog defines the display-ready creature records served by the
// PokeAPI catalog, the page contract between the network client and the
// page coordinator, and the typed errors a fetch can fail with.
package catalog

import (
	"context"
	"strings"
)

// Record is one creature's display-ready data.
type Record struct {
	// ID is the catalog-wide unique identity key.
	ID int `json:"id"`

	// Name is capitalized (e.g. "Bulbasaur").
	Name string `json:"name"`

	// Types are the type labels in upstream slot order (primary type first).
	Types []string `json:"types"`

	// ImageURL is the front sprite URL, empty when upstream has none.
	ImageURL string `json:"image_url,omitempty"`

	// Blurb is the English flavor text with whitespace normalized,
	// empty when upstream has none.
	Blurb string `json:"blurb,omitempty"`
}

// Page is the result of one FetchPage call.
type Page struct {
	// Records sorted by ascending ID.
	Records []Record `json:"results"`

	// NextOffset is the offset of the following page, nil when upstream
	// reports no successor.
	NextOffset *int `json:"next_offset"`

	// TotalCount is upstream's declared catalog size.
	TotalCount int `json:"count"`
}

// HasNext reports whether upstream declared a following page.
func (p Page) HasNext() bool {
	return p.NextOffset != nil
}

// Fetcher returns one fully-hydrated page of records.
// Implementations return *Error values on failure.
type Fetcher interface {
	FetchPage(ctx context.Context, offset, limit int) (Page, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, offset, limit int) (Page, error)

// FetchPage implements Fetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, offset, limit int) (Page, error) {
	return f(ctx, offset, limit)
}

// Offset returns a pointer to n, for building optional offsets.
func Offset(n int) *int {
	return &n
}

// NormalizeQuery trims and lowercases a search string as typed by the user.
// An empty result means "no filter".
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Matches reports whether the record matches an already-normalized query:
// the lowercased name or any lowercased type label contains it.
func (r Record) Matches(normalized string) bool {
	if normalized == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Name), normalized) {
		return true
	}
	for _, t := range r.Types {
		if strings.Contains(strings.ToLower(t), normalized) {
			return true
		}
	}
	return false
}

// Filter returns the order-preserving subsequence of records matching query.
// A blank query returns records unchanged.
func Filter(records []Record, query string) []Record {
	q := NormalizeQuery(query)
	if q == "" {
		return records
	}

	matches := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Matches(q) {
			matches = append(matches, r)
		}
	}
	return matches
}
