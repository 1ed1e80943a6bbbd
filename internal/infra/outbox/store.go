package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "karta/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// EventDocument is the persisted form of a staged change event.
type EventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by"`
	ClaimedAt   time.Time         `bson:"claimed_at"`
	SentAt      time.Time         `bson:"sent_at"`
	LastError   string            `bson:"last_error"`
}

// Store keeps staged events in Mongo until the worker ships them.
type Store struct {
	events *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	events := db.Collection("app_outbox")
	claimIndex := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}}
	_, _ = events.Indexes().CreateOne(context.Background(), claimIndex)
	return &Store{events: events}
}

// Deliver persists the committed records for the worker to pick up.
func (s *Store) Deliver(ctx context.Context, records []appoutbox.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(records))
	for _, record := range records {
		docs = append(docs, EventDocument{
			ID:          record.ID,
			Name:        record.Name,
			Payload:     record.Payload,
			OccurredAt:  record.OccurredAt,
			Aggregate:   record.Aggregate,
			Headers:     record.Headers,
			State:       stateNew,
			NextAttempt: now,
		})
	}
	_, err := s.events.InsertMany(ctx, docs)
	return err
}

// Claim atomically marks one deliverable event as owned by the worker.
func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := time.Now().UTC()
	deliverable := bson.M{
		"state":           bson.M{"$in": []string{stateNew, stateFailed}},
		"next_attempt_at": bson.M{"$lte": now},
	}
	claim := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc EventDocument
	switch err := s.events.FindOneAndUpdate(ctx, deliverable, claim, opts).Decode(&doc); {
	case err == nil:
		return &doc, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.events.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": time.Now().UTC()}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.events.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": stateFailed, "next_attempt_at": next, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
