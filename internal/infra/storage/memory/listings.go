package memory

import (
	"context"
	"sort"
	"sync"

	domainlistings "karta/internal/domain/listings"
)

// ListingRepository keeps listings in process memory. It is the default
// store for local runs and tests.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Listing
}

// NewListingRepository builds an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]domainlistings.Listing),
	}
}

// ByID returns a copy of the stored listing or ErrNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	listing := stored
	return &listing, nil
}

// Save stores the listing state. Pending events stay on the caller's
// aggregate; the stored copy holds data only.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *listing
	stored.ClearEvents()
	r.items[listing.ID] = stored
	return nil
}

// Delete removes the listing. Deleting an absent id is not an error.
func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

// Search filters, sorts and pages the stored listings.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	normalized := params.Normalized()

	r.mu.RLock()
	matched := make([]*domainlistings.Listing, 0, len(r.items))
	for id := range r.items {
		stored := r.items[id]
		listing := stored
		if normalized.Matches(&listing) {
			matched = append(matched, &listing)
		}
	}
	r.mu.RUnlock()

	sortListings(matched, normalized.Sort)

	total := len(matched)
	start := normalized.Offset
	if start > total {
		start = total
	}
	end := start + normalized.Limit
	if end > total {
		end = total
	}
	return domainlistings.SearchResult{
		Items: matched[start:end],
		Total: total,
	}, nil
}

func sortListings(items []*domainlistings.Listing, order domainlistings.SortOrder) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case domainlistings.SortByPriceAsc:
			if a.PriceCents != b.PriceCents {
				return a.PriceCents < b.PriceCents
			}
		case domainlistings.SortByPriceDesc:
			if a.PriceCents != b.PriceCents {
				return a.PriceCents > b.PriceCents
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
}
