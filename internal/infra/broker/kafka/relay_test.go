package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"karta/internal/infra/realtime"
)

func consumerMessage(value string, headers map[string]string) *sarama.ConsumerMessage {
	msg := &sarama.ConsumerMessage{
		Topic: "listing.events.v1",
		Value: []byte(value),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, &sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}
	return msg
}

func TestRelayForwardsForeignEvents(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	session := hub.Subscribe()

	relay := &Relay{Hub: hub, Source: "app://node-a"}
	msg := consumerMessage(
		`{"id":"e-1","type":"listing.created.v1","source":"app://node-b","data":{"kind":"created","id":"l-1"}}`,
		nil,
	)
	if err := relay.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	select {
	case got := <-session.Events():
		if got.ID != "e-1" || got.Name != "listing.created" || got.Source != "app://node-b" {
			t.Fatalf("forwarded = %+v", got)
		}
		if string(got.Payload) != `{"kind":"created","id":"l-1"}` {
			t.Fatalf("payload = %s", got.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not forwarded to the hub")
	}
}

func TestRelaySkipsOwnEvents(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	session := hub.Subscribe()

	relay := &Relay{Hub: hub, Source: "app://node-a"}
	msg := consumerMessage(
		`{"id":"e-1","type":"listing.updated.v1","source":"app://node-a","data":{}}`,
		nil,
	)
	if err := relay.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	select {
	case got := <-session.Events():
		t.Fatalf("own event re-delivered: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayHeadersOverrideEnvelope(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	session := hub.Subscribe()

	relay := &Relay{Hub: hub, Source: "app://node-a"}
	msg := consumerMessage(
		`{"id":"e-2","type":"listing.published.v1","source":"app://stale","data":{}}`,
		map[string]string{"source": "app://node-c", "event-name": "listing.published"},
	)
	if err := relay.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	select {
	case got := <-session.Events():
		if got.Source != "app://node-c" || got.Name != "listing.published" {
			t.Fatalf("forwarded = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not forwarded")
	}
}

func TestRelayDropsUndecodableMessage(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()

	relay := &Relay{Hub: hub, Source: "app://node-a"}
	if err := relay.Handle(context.Background(), consumerMessage("not json", nil)); err != nil {
		t.Fatalf("undecodable message must not error the consumer: %v", err)
	}
}

func TestTrimVersion(t *testing.T) {
	if got := trimVersion("listing.deleted.v1"); got != "listing.deleted" {
		t.Fatalf("trimVersion = %q", got)
	}
	if got := trimVersion("listing.deleted"); got != "listing.deleted" {
		t.Fatalf("trimVersion without suffix = %q", got)
	}
}
