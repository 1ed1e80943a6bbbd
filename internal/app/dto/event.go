package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event names on the push channel. The suffix after the last dot is the
// transition kind.
const (
	EventListingCreated   = "listing.created"
	EventListingUpdated   = "listing.updated"
	EventListingDeleted   = "listing.deleted"
	EventListingPublished = "listing.published"
)

// ListingChange is the wire form of one catalog transition. Created,
// updated and published carry the full record; deleted only the id.
type ListingChange struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	Listing    *Listing  `json:"listing,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DecodeListingChange parses a push-channel payload for the given event
// name. Unknown names are rejected so agents never apply foreign events.
func DecodeListingChange(name string, payload []byte) (ListingChange, error) {
	kind, ok := strings.CutPrefix(name, "listing.")
	if !ok {
		return ListingChange{}, fmt.Errorf("dto: not a listing event: %q", name)
	}
	switch kind {
	case "created", "updated", "deleted", "published":
	default:
		return ListingChange{}, fmt.Errorf("dto: unknown listing event kind: %q", kind)
	}
	var change ListingChange
	if err := json.Unmarshal(payload, &change); err != nil {
		return ListingChange{}, fmt.Errorf("dto: decode listing change: %w", err)
	}
	change.Kind = kind
	if change.ID == "" && change.Listing != nil {
		change.ID = change.Listing.ID
	}
	if change.ID == "" {
		return ListingChange{}, fmt.Errorf("dto: listing change without id")
	}
	return change, nil
}
