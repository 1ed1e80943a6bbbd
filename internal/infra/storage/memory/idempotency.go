package memory

import (
	"context"
	"sync"
	"time"

	"karta/internal/app/middleware"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

// IdempotencyStore keeps command results in memory, keyed by the
// client-supplied idempotency key. Records past the TTL are evicted
// lazily on lookup, so the map does not grow with every request ever
// made.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{
		ttl:   ttl,
		items: make(map[string]middleware.IdempotencyRecord),
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	if ok && time.Since(rec.OccurredAt) > s.ttl {
		delete(s.items, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}
