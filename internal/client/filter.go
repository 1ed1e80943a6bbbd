package client

import (
	"strings"

	"karta/internal/app/dto"
)

// Filter narrows the materialized view. The zero value matches every
// listing. Filtering is pure: it never touches the network and never
// mutates the view.
type Filter struct {
	// Title matches listings whose title contains the value,
	// case-insensitively. Empty means any title.
	Title string
	// MaxPriceCents caps the price. Nil means unbounded.
	MaxPriceCents *int64
}

// Matches reports whether the listing passes the filter.
func (f Filter) Matches(listing dto.Listing) bool {
	if f.Title != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Title))
		if needle != "" && !strings.Contains(strings.ToLower(listing.Title), needle) {
			return false
		}
	}
	if f.MaxPriceCents != nil && listing.PriceCents > *f.MaxPriceCents {
		return false
	}
	return true
}
