package realtime

import "sync/atomic"

// Session is one subscriber's view of the hub. Events arrive on Events()
// in publish order; the channel closes when the session is unsubscribed
// or the hub shuts down.
type Session struct {
	hub     *Hub
	events  chan Event
	dropped atomic.Int64
}

// Events returns the receive channel for this session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close detaches the session from its hub.
func (s *Session) Close() {
	s.hub.Unsubscribe(s)
}

// Dropped reports how many events were lost to a full buffer. A nonzero
// value means the subscriber fell behind and should resnapshot.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Session) recordDrop() {
	s.dropped.Add(1)
}
