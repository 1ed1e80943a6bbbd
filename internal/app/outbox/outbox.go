package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"karta/internal/domain/shared/events"
)

var ErrStageMissing = errors.New("outbox: no stage in context")

// EventRecord is a change event staged for delivery.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Sink receives the records of a committed command. Delivery happens
// after the durable write commits, never before. A failed command's
// stage is discarded with its context, so nothing reaches a sink.
type Sink interface {
	Deliver(ctx context.Context, records []EventRecord) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, records []EventRecord) error

func (f SinkFunc) Deliver(ctx context.Context, records []EventRecord) error {
	return f(ctx, records)
}

// MultiSink fans records out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, records []EventRecord) error {
	for _, sink := range m {
		if err := sink.Deliver(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Stage buffers the records of a single command dispatch.
type Stage struct {
	mu      sync.Mutex
	records []EventRecord
}

func (s *Stage) Add(record EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Drain returns the staged records and empties the stage.
func (s *Stage) Drain() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.records
	s.records = nil
	return out
}

type stageKey struct{}

// WithStage attaches a fresh stage to the context.
func WithStage(ctx context.Context) (context.Context, *Stage) {
	stage := &Stage{}
	return context.WithValue(ctx, stageKey{}, stage), stage
}

// StageFromContext retrieves the current command's stage if present.
func StageFromContext(ctx context.Context) (*Stage, bool) {
	stage, ok := ctx.Value(stageKey{}).(*Stage)
	return stage, ok
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// RecordDomainEvents encodes every pending aggregate event onto the
// current command's stage.
func RecordDomainEvents(ctx context.Context, encoder EventEncoder, evs []events.DomainEvent) error {
	if len(evs) == 0 {
		return nil
	}
	stage, ok := StageFromContext(ctx)
	if !ok {
		return ErrStageMissing
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		stage.Add(rec)
	}
	return nil
}
