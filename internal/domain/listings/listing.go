package listings

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"karta/internal/domain/shared/events"
)

var (
	ErrIDRequired       = errors.New("listings: id is required")
	ErrOwnerRequired    = errors.New("listings: owner is required")
	ErrTitleRequired    = errors.New("listings: title is required")
	ErrPriceNegative    = errors.New("listings: price must be non-negative")
	ErrContactRequired  = errors.New("listings: contact number is required")
	ErrEmailInvalid     = errors.New("listings: contact email is invalid")
	ErrNotFound         = errors.New("listings: listing not found")
	ErrStoreUnavailable = errors.New("listings: store unavailable")
)

type ListingID string
type OwnerID string

// Listing is the marketplace item aggregate. The published flag starts
// false and flips through Publish; identity never changes after creation.
type Listing struct {
	ID            ListingID
	Owner         OwnerID
	Title         string
	Description   string
	PriceCents    int64
	ContactNumber string
	ContactEmail  string
	ImageURL      string
	Published     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	events.EventRecorder
}

// Repository is the persistence port for listings.
type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

type CreateListingParams struct {
	ID            ListingID
	Owner         OwnerID
	Title         string
	Description   string
	PriceCents    int64
	ContactNumber string
	ContactEmail  string
	ImageURL      string
	Now           time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	if err := validateFields(params.Title, params.PriceCents, params.ContactNumber, params.ContactEmail); err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	listing := &Listing{
		ID:            params.ID,
		Owner:         params.Owner,
		Title:         strings.TrimSpace(params.Title),
		Description:   strings.TrimSpace(params.Description),
		PriceCents:    params.PriceCents,
		ContactNumber: strings.TrimSpace(params.ContactNumber),
		ContactEmail:  strings.TrimSpace(params.ContactEmail),
		ImageURL:      strings.TrimSpace(params.ImageURL),
		Published:     false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	listing.Record(newChangeEvent(ChangeCreated, listing, now))
	return listing, nil
}

type UpdateListingParams struct {
	Title         string
	Description   string
	PriceCents    int64
	ContactNumber string
	ContactEmail  string
	ImageURL      string
	Now           time.Time
}

// UpdateAttributes overwrites the mutable fields. Ownership and identity
// are not touched here; the caller checks the acting user first.
func (l *Listing) UpdateAttributes(params UpdateListingParams) error {
	if err := validateFields(params.Title, params.PriceCents, params.ContactNumber, params.ContactEmail); err != nil {
		return err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	l.Title = strings.TrimSpace(params.Title)
	l.Description = strings.TrimSpace(params.Description)
	l.PriceCents = params.PriceCents
	l.ContactNumber = strings.TrimSpace(params.ContactNumber)
	l.ContactEmail = strings.TrimSpace(params.ContactEmail)
	l.ImageURL = strings.TrimSpace(params.ImageURL)
	l.UpdatedAt = now
	l.Record(newChangeEvent(ChangeUpdated, l, now))
	return nil
}

// Publish flips the published flag. Publishing an already published
// listing is a no-op that still records the current state, so every
// publish call produces exactly one change event.
func (l *Listing) Publish(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	if !l.Published {
		l.Published = true
		l.UpdatedAt = now
	}
	l.Record(newChangeEvent(ChangePublished, l, now))
}

// MarkDeleted records the removal event. The caller performs the actual
// repository delete before the event leaves the process.
func (l *Listing) MarkDeleted(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.Record(newDeleteEvent(l.ID, l.Owner, now.UTC()))
}

func validateFields(title string, priceCents int64, contactNumber, contactEmail string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if priceCents < 0 {
		return ErrPriceNegative
	}
	if strings.TrimSpace(contactNumber) == "" {
		return ErrContactRequired
	}
	if email := strings.TrimSpace(contactEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return ErrEmailInvalid
		}
	}
	return nil
}
