package listings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"karta/internal/app/commands"
	"karta/internal/app/dto"
	"karta/internal/app/outbox"
	"karta/internal/app/uow"
	domainlistings "karta/internal/domain/listings"
)

const (
	createListingKey  = "listings.create"
	updateListingKey  = "listings.update"
	deleteListingKey  = "listings.delete"
	publishListingKey = "listings.publish"
)

var (
	// ErrNotOwner is returned when the acting user does not own the
	// target listing. It never emits a change event.
	ErrNotOwner = errors.New("listings: acting user is not the owner")

	ErrActorRequired   = errors.New("listings: acting user id is required")
	ErrListingRequired = errors.New("listings: listing id is required")
)

// ListingPayload carries the mutable listing fields of a create or
// update request.
type ListingPayload struct {
	Title         string
	Description   string
	PriceCents    int64
	ContactNumber string
	ContactEmail  string
	ImageURL      string
}

type CreateListingCommand struct {
	ActorID    string
	Payload    ListingPayload
	RequestKey string
}

func (c CreateListingCommand) Key() string { return createListingKey }

// IdempotencyKey scopes request replay to the acting user.
func (c CreateListingCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return c.ActorID + ":" + c.RequestKey
}

func (c CreateListingCommand) Validate() error {
	if strings.TrimSpace(c.ActorID) == "" {
		return ErrActorRequired
	}
	return nil
}

// ResultPrototype lets the idempotency layer replay a stored result.
func (c CreateListingCommand) ResultPrototype() any { return &dto.Listing{} }

type CreateListingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (*dto.Listing, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:            domainlistings.ListingID(uuid.NewString()),
		Owner:         domainlistings.OwnerID(cmd.ActorID),
		Title:         cmd.Payload.Title,
		Description:   cmd.Payload.Description,
		PriceCents:    cmd.Payload.PriceCents,
		ContactNumber: cmd.Payload.ContactNumber,
		ContactEmail:  cmd.Payload.ContactEmail,
		ImageURL:      cmd.Payload.ImageURL,
		Now:           time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, listing.PendingEvents()); err != nil {
		return nil, err
	}
	listing.ClearEvents()

	if h.Logger != nil {
		h.Logger.Info("listing created", "listing_id", listing.ID, "owner_id", cmd.ActorID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type UpdateListingCommand struct {
	ActorID   string
	ListingID string
	Payload   ListingPayload
}

func (c UpdateListingCommand) Key() string { return updateListingKey }

func (c UpdateListingCommand) Validate() error {
	if strings.TrimSpace(c.ActorID) == "" {
		return ErrActorRequired
	}
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	return nil
}

type UpdateListingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *UpdateListingHandler) Handle(ctx context.Context, cmd UpdateListingCommand) (*dto.Listing, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	if listing.Owner != domainlistings.OwnerID(cmd.ActorID) {
		return nil, ErrNotOwner
	}

	if err := listing.UpdateAttributes(domainlistings.UpdateListingParams{
		Title:         cmd.Payload.Title,
		Description:   cmd.Payload.Description,
		PriceCents:    cmd.Payload.PriceCents,
		ContactNumber: cmd.Payload.ContactNumber,
		ContactEmail:  cmd.Payload.ContactEmail,
		ImageURL:      cmd.Payload.ImageURL,
		Now:           time.Now(),
	}); err != nil {
		return nil, err
	}

	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, listing.PendingEvents()); err != nil {
		return nil, err
	}
	listing.ClearEvents()

	if h.Logger != nil {
		h.Logger.Info("listing updated", "listing_id", listing.ID, "owner_id", cmd.ActorID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type DeleteListingCommand struct {
	ActorID   string
	ListingID string
}

func (c DeleteListingCommand) Key() string { return deleteListingKey }

func (c DeleteListingCommand) Validate() error {
	if strings.TrimSpace(c.ActorID) == "" {
		return ErrActorRequired
	}
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	return nil
}

type DeleteListingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *DeleteListingHandler) Handle(ctx context.Context, cmd DeleteListingCommand) (*dto.Listing, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	if listing.Owner != domainlistings.OwnerID(cmd.ActorID) {
		return nil, ErrNotOwner
	}

	if err := unit.Listings().Delete(ctx, listing.ID); err != nil {
		return nil, err
	}
	listing.MarkDeleted(time.Now())
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, listing.PendingEvents()); err != nil {
		return nil, err
	}
	listing.ClearEvents()

	if h.Logger != nil {
		h.Logger.Info("listing deleted", "listing_id", listing.ID, "owner_id", cmd.ActorID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type PublishListingCommand struct {
	ActorID   string
	ListingID string
}

func (c PublishListingCommand) Key() string { return publishListingKey }

func (c PublishListingCommand) Validate() error {
	if strings.TrimSpace(c.ActorID) == "" {
		return ErrActorRequired
	}
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	return nil
}

type PublishListingHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *PublishListingHandler) Handle(ctx context.Context, cmd PublishListingCommand) (*dto.Listing, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	if listing.Owner != domainlistings.OwnerID(cmd.ActorID) {
		return nil, ErrNotOwner
	}

	listing.Publish(time.Now())
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Encoder, listing.PendingEvents()); err != nil {
		return nil, err
	}
	listing.ClearEvents()

	if h.Logger != nil {
		h.Logger.Info("listing published", "listing_id", listing.ID, "owner_id", cmd.ActorID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

var (
	_ commands.Handler[CreateListingCommand, *dto.Listing]  = (*CreateListingHandler)(nil)
	_ commands.Handler[UpdateListingCommand, *dto.Listing]  = (*UpdateListingHandler)(nil)
	_ commands.Handler[DeleteListingCommand, *dto.Listing]  = (*DeleteListingHandler)(nil)
	_ commands.Handler[PublishListingCommand, *dto.Listing] = (*PublishListingHandler)(nil)
)
