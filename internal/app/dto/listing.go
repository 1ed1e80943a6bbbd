package dto

import (
	"time"

	domainlistings "karta/internal/domain/listings"
)

// Listing is the public representation of a marketplace item.
type Listing struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	ContactNumber string    `json:"contact_number"`
	ContactEmail  string    `json:"contact_email"`
	ImageURL      string    `json:"image_url,omitempty"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListingCatalog is the snapshot collection served to sync agents.
type ListingCatalog struct {
	Items []Listing       `json:"items"`
	Meta  CatalogMetadata `json:"meta"`
}

// CatalogMetadata describes pagination.
type CatalogMetadata struct {
	Total  int    `json:"total"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Sort   string `json:"sort"`
}

// MapListing copies domain data for frontend consumption.
func MapListing(listing *domainlistings.Listing) Listing {
	if listing == nil {
		return Listing{}
	}
	return Listing{
		ID:            string(listing.ID),
		OwnerID:       string(listing.Owner),
		Title:         listing.Title,
		Description:   listing.Description,
		PriceCents:    listing.PriceCents,
		ContactNumber: listing.ContactNumber,
		ContactEmail:  listing.ContactEmail,
		ImageURL:      listing.ImageURL,
		Published:     listing.Published,
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
	}
}

// MapListingSnapshot converts an event snapshot into the public shape.
func MapListingSnapshot(snap domainlistings.Snapshot) Listing {
	return Listing{
		ID:            snap.ID,
		OwnerID:       snap.Owner,
		Title:         snap.Title,
		Description:   snap.Description,
		PriceCents:    snap.PriceCents,
		ContactNumber: snap.ContactNumber,
		ContactEmail:  snap.ContactEmail,
		ImageURL:      snap.ImageURL,
		Published:     snap.Published,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}
}

// MapCatalog builds the snapshot collection for a search result.
func MapCatalog(result domainlistings.SearchResult, params domainlistings.SearchParams) ListingCatalog {
	normalized := params.Normalized()
	items := make([]Listing, 0, len(result.Items))
	for _, listing := range result.Items {
		items = append(items, MapListing(listing))
	}
	return ListingCatalog{
		Items: items,
		Meta: CatalogMetadata{
			Total:  result.Total,
			Count:  len(items),
			Limit:  normalized.Limit,
			Offset: normalized.Offset,
			Sort:   string(normalized.Sort),
		},
	}
}
