package realtime

import (
	"log/slog"
	"sync"
)

// Event is a serialized change notification fanned out to subscribers.
type Event struct {
	ID      string
	Name    string
	Payload []byte
	// Source identifies the process that produced the event. The broker
	// relay uses it to skip events this process already delivered.
	Source string
}

const defaultSessionBuffer = 64

// Hub fans change events out to every attached session. Publish never
// blocks on a slow consumer: a session whose buffer is full loses the
// event and is expected to resynchronize from a snapshot.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	closed   bool

	buffer int
	logger *slog.Logger
}

type HubOption func(*Hub)

// WithSessionBuffer overrides the per-session channel capacity.
func WithSessionBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions: make(map[*Session]struct{}),
		buffer:   defaultSessionBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a new session. The returned session receives every
// event published after this call; nothing earlier is replayed.
func (h *Hub) Subscribe() *Session {
	s := &Session{
		hub:    h,
		events: make(chan Event, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.events)
		return s
	}
	h.sessions[s] = struct{}{}
	return s
}

// Unsubscribe detaches the session and closes its event channel.
func (h *Hub) Unsubscribe(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	close(s.events)
}

// Publish delivers the event to every attached session without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for s := range h.sessions {
		select {
		case s.events <- ev:
		default:
			s.recordDrop()
			if h.logger != nil {
				h.logger.Warn("session buffer full, event dropped", "event", ev.Name, "event_id", ev.ID)
			}
		}
	}
}

// Len reports the number of attached sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close detaches every session. Further Subscribe calls return already
// closed sessions and Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.sessions {
		delete(h.sessions, s)
		close(s.events)
	}
}
