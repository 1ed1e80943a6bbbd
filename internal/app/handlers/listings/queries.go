package listings

import (
	"context"
	"strings"

	"karta/internal/app/dto"
	"karta/internal/app/queries"
	"karta/internal/app/uow"
	domainlistings "karta/internal/domain/listings"
)

const (
	searchCatalogKey = "listings.search"
	getListingKey    = "listings.get"
)

// SearchCatalogQuery asks for a filtered catalog snapshot.
type SearchCatalogQuery struct {
	Title         string
	Owner         string
	PriceMaxCents int64
	OnlyPublished bool
	Limit         int
	Offset        int
	Sort          string
}

func (q SearchCatalogQuery) Key() string { return searchCatalogKey }

type SearchCatalogHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *SearchCatalogHandler) Handle(ctx context.Context, query SearchCatalogQuery) (dto.ListingCatalog, error) {
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	defer unit.Rollback(ctx)

	params := domainlistings.SearchParams{
		Title:         query.Title,
		Owner:         domainlistings.OwnerID(query.Owner),
		PriceMaxCents: query.PriceMaxCents,
		OnlyPublished: query.OnlyPublished,
		Limit:         query.Limit,
		Offset:        query.Offset,
		Sort:          domainlistings.SortOrder(query.Sort),
	}
	result, err := unit.Listings().Search(ctx, params)
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	return dto.MapCatalog(result, params), nil
}

// GetListingQuery fetches a single listing by id.
type GetListingQuery struct {
	ListingID string
}

func (q GetListingQuery) Key() string { return getListingKey }

func (q GetListingQuery) Validate() error {
	if strings.TrimSpace(q.ListingID) == "" {
		return ErrListingRequired
	}
	return nil
}

type GetListingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetListingHandler) Handle(ctx context.Context, query GetListingQuery) (*dto.Listing, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(query.ListingID))
	if err != nil {
		return nil, err
	}
	result := dto.MapListing(listing)
	return &result, nil
}

var (
	_ queries.Handler[SearchCatalogQuery, dto.ListingCatalog] = (*SearchCatalogHandler)(nil)
	_ queries.Handler[GetListingQuery, *dto.Listing]          = (*GetListingHandler)(nil)
)
