package listings

import "strings"

// SortOrder controls catalog ordering. The event stream does not
// preserve creation order across reconnects, so the store defines a
// deterministic default: most recently updated first.
type SortOrder string

const (
	SortByUpdated   SortOrder = "updated_desc"
	SortByPriceAsc  SortOrder = "price_asc"
	SortByPriceDesc SortOrder = "price_desc"
)

const defaultSearchLimit = 100

// SearchParams filter the catalog at the store. Title matching is a
// case-insensitive substring test; PriceMaxCents <= 0 means unbounded.
type SearchParams struct {
	Title         string
	Owner         OwnerID
	PriceMaxCents int64
	OnlyPublished bool
	Limit         int
	Offset        int
	Sort          SortOrder
}

type SearchResult struct {
	Items []*Listing
	Total int
}

// Normalized returns params with defaults applied.
func (p SearchParams) Normalized() SearchParams {
	out := p
	out.Title = strings.ToLower(strings.TrimSpace(p.Title))
	if out.Limit <= 0 {
		out.Limit = defaultSearchLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	switch out.Sort {
	case SortByUpdated, SortByPriceAsc, SortByPriceDesc:
	default:
		out.Sort = SortByUpdated
	}
	return out
}

// Matches reports whether the listing satisfies the normalized params.
func (p SearchParams) Matches(l *Listing) bool {
	if l == nil {
		return false
	}
	if p.OnlyPublished && !l.Published {
		return false
	}
	if p.Owner != "" && l.Owner != p.Owner {
		return false
	}
	if p.Title != "" && !strings.Contains(strings.ToLower(l.Title), p.Title) {
		return false
	}
	if p.PriceMaxCents > 0 && l.PriceCents > p.PriceMaxCents {
		return false
	}
	return true
}
