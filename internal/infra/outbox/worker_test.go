package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "karta/internal/app/outbox"
)

type publishedMessage struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

type fakeProducer struct {
	messages []publishedMessage
	fail     error
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, publishedMessage{Topic: topic, Key: key, Payload: payload, Headers: headers})
	return nil
}

func stageRecord(t *testing.T, store *MemoryStore, id, name, aggregate string) {
	t.Helper()
	err := store.Deliver(context.Background(), []appoutbox.EventRecord{{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"kind":"created","id":"` + aggregate + `"}`),
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Aggregate:  aggregate,
	}})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestWorkerShipsClaimedEvent(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{}
	stageRecord(t, store, "e-1", "listing.created", "l-1")

	worker := &Worker{Store: store, Producer: producer, ID: "w-1", Source: "app://node-a"}
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("processOnce: %v", err)
	}

	if len(producer.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.Topic != "listing.events.v1" {
		t.Fatalf("topic = %q", msg.Topic)
	}
	if msg.Key != "l-1" {
		t.Fatalf("partition key = %q, want the listing id", msg.Key)
	}
	if msg.Headers["source"] != "app://node-a" || msg.Headers["event-name"] != "listing.created" {
		t.Fatalf("headers = %v", msg.Headers)
	}

	var envelope struct {
		SpecVersion string          `json:"specversion"`
		ID          string          `json:"id"`
		Type        string          `json:"type"`
		Source      string          `json:"source"`
		Data        json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.SpecVersion != "1.0" || envelope.ID != "e-1" || envelope.Type != "listing.created.v1" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if len(envelope.Data) == 0 {
		t.Fatalf("envelope missing data")
	}

	if doc := store.items["e-1"]; doc.State != stateSent {
		t.Fatalf("state = %q, want sent", doc.State)
	}
	// Nothing left to claim.
	doc, err := store.Claim(context.Background(), "w-1")
	if err != nil || doc != nil {
		t.Fatalf("Claim after send = %v, %v", doc, err)
	}
}

func TestWorkerFailedSendBacksOff(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{fail: errors.New("broker down")}
	stageRecord(t, store, "e-1", "listing.updated", "l-1")

	worker := &Worker{Store: store, Producer: producer, ID: "w-1", Backoff: []time.Duration{time.Minute}}
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("processOnce: %v", err)
	}

	doc := store.items["e-1"]
	if doc.State != stateFailed || doc.Attempts != 1 {
		t.Fatalf("state = %q attempts = %d", doc.State, doc.Attempts)
	}
	if doc.LastError != "broker down" {
		t.Fatalf("last error = %q", doc.LastError)
	}
	if !doc.NextAttempt.After(time.Now().Add(30 * time.Second)) {
		t.Fatalf("next attempt %v not backed off", doc.NextAttempt)
	}
	// The backed-off document is not claimable yet.
	claimed, err := store.Claim(context.Background(), "w-1")
	if err != nil || claimed != nil {
		t.Fatalf("Claim during backoff = %v, %v", claimed, err)
	}
}

func TestWorkerEmptyStoreIsQuiet(t *testing.T) {
	worker := &Worker{Store: NewMemoryStore(), Producer: &fakeProducer{}, ID: "w-1"}
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("processOnce on empty store: %v", err)
	}
}

func TestWorkerTopicPrefix(t *testing.T) {
	worker := &Worker{TopicPrefix: "staging."}
	if got := worker.topicFor("listing.deleted"); got != "staging.listing.events.v1" {
		t.Fatalf("topic = %q", got)
	}
}

func TestMemoryStoreClaimOrder(t *testing.T) {
	store := NewMemoryStore()
	stageRecord(t, store, "e-1", "listing.created", "l-1")
	stageRecord(t, store, "e-2", "listing.updated", "l-1")

	first, err := store.Claim(context.Background(), "w-1")
	if err != nil || first == nil || first.ID != "e-1" {
		t.Fatalf("first claim = %v, %v", first, err)
	}
	// A claimed document is invisible to other workers.
	second, err := store.Claim(context.Background(), "w-2")
	if err != nil || second == nil || second.ID != "e-2" {
		t.Fatalf("second claim = %v, %v", second, err)
	}
	third, err := store.Claim(context.Background(), "w-3")
	if err != nil || third != nil {
		t.Fatalf("third claim = %v, %v", third, err)
	}
}
