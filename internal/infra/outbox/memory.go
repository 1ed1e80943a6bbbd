package outbox

import (
	"context"
	"sync"
	"time"

	appoutbox "karta/internal/app/outbox"
)

// MemoryStore is the in-process variant of Store for runs without Mongo.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*EventDocument
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*EventDocument)}
}

func (s *MemoryStore) Deliver(ctx context.Context, records []appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, record := range records {
		doc := &EventDocument{
			ID:          record.ID,
			Name:        record.Name,
			Payload:     record.Payload,
			OccurredAt:  record.OccurredAt,
			Aggregate:   record.Aggregate,
			Headers:     record.Headers,
			State:       stateNew,
			NextAttempt: now,
		}
		if _, exists := s.items[doc.ID]; !exists {
			s.order = append(s.order, doc.ID)
		}
		s.items[doc.ID] = doc
	}
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range s.order {
		doc := s.items[id]
		if doc.State != stateNew && doc.State != stateFailed {
			continue
		}
		if doc.NextAttempt.After(now) {
			continue
		}
		doc.State = stateClaimed
		doc.ClaimedBy = workerID
		doc.ClaimedAt = now
		claimed := *doc
		return &claimed, nil
	}
	return nil, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.items[id]; ok {
		doc.State = stateSent
		doc.SentAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.items[id]; ok {
		doc.State = stateFailed
		doc.NextAttempt = next
		doc.LastError = errMsg
		doc.Attempts++
	}
	return nil
}
