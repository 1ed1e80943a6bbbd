package listings

import (
	"time"

	"karta/internal/domain/shared/events"
)

// ChangeKind names a listing lifecycle transition.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangePublished ChangeKind = "published"
)

// Snapshot is a flat copy of the listing record as of a transition,
// safe to marshal and hand to other processes.
type Snapshot struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner_id"`
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

// SnapshotOf captures the current aggregate state.
func SnapshotOf(l *Listing) Snapshot {
	return Snapshot{
		ID:            string(l.ID),
		Owner:         string(l.Owner),
		Title:         l.Title,
		Description:   l.Description,
		PriceCents:    l.PriceCents,
		ContactNumber: l.ContactNumber,
		ContactEmail:  l.ContactEmail,
		ImageURL:      l.ImageURL,
		Published:     l.Published,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

// ChangeEvent describes one listing transition. Created, updated and
// published carry the full record; deleted carries the identifier only.
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	ListingID string     `json:"id"`
	Owner     string     `json:"owner_id"`
	Listing   *Snapshot  `json:"listing,omitempty"`
	At        time.Time  `json:"occurred_at"`
}

func (e ChangeEvent) EventName() string     { return "listing." + string(e.Kind) }
func (e ChangeEvent) AggregateID() string   { return e.ListingID }
func (e ChangeEvent) OccurredAt() time.Time { return e.At }

func newChangeEvent(kind ChangeKind, l *Listing, at time.Time) events.DomainEvent {
	snap := SnapshotOf(l)
	return ChangeEvent{
		Kind:      kind,
		ListingID: snap.ID,
		Owner:     snap.Owner,
		Listing:   &snap,
		At:        at,
	}
}

func newDeleteEvent(id ListingID, owner OwnerID, at time.Time) events.DomainEvent {
	return ChangeEvent{
		Kind:      ChangeDeleted,
		ListingID: string(id),
		Owner:     string(owner),
		At:        at,
	}
}
