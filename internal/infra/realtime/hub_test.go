package realtime

import (
	"testing"
	"time"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	a := hub.Subscribe()
	b := hub.Subscribe()
	if hub.Len() != 2 {
		t.Fatalf("Len = %d, want 2", hub.Len())
	}

	event := Event{ID: "e-1", Name: "listing.created", Payload: []byte(`{}`)}
	hub.Publish(event)

	for _, session := range []*Session{a, b} {
		select {
		case got := <-session.Events():
			if got.ID != "e-1" || got.Name != "listing.created" {
				t.Fatalf("received %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("session did not receive the event")
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	session := hub.Subscribe()
	hub.Unsubscribe(session)
	if hub.Len() != 0 {
		t.Fatalf("Len = %d, want 0", hub.Len())
	}

	select {
	case _, ok := <-session.Events():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed")
	}

	// Unsubscribing twice must not panic.
	hub.Unsubscribe(session)
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(WithSessionBuffer(2))
	defer hub.Close()

	slow := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Publish(Event{ID: "e", Name: "listing.updated"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full session buffer")
	}

	if got := slow.Dropped(); got != 8 {
		t.Fatalf("Dropped = %d, want 8", got)
	}
	// The buffered events are still delivered in order.
	for i := 0; i < 2; i++ {
		select {
		case <-slow.Events():
		case <-time.After(time.Second):
			t.Fatalf("buffered event %d not delivered", i)
		}
	}
}

func TestHubCloseTerminatesSessions(t *testing.T) {
	hub := NewHub()
	session := hub.Subscribe()
	hub.Close()

	select {
	case _, ok := <-session.Events():
		if ok {
			t.Fatalf("expected closed channel after hub close")
		}
	case <-time.After(time.Second):
		t.Fatalf("session channel not closed")
	}

	// A closed hub hands out already-closed sessions and drops publishes.
	late := hub.Subscribe()
	select {
	case _, ok := <-late.Events():
		if ok {
			t.Fatalf("late session must be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("late session channel not closed")
	}
	hub.Publish(Event{ID: "ignored"})
}
