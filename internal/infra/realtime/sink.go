package realtime

import (
	"context"

	appoutbox "karta/internal/app/outbox"
)

// HubSink pushes committed change events into the local hub so attached
// stream sessions see them immediately.
type HubSink struct {
	Hub    *Hub
	Source string
}

func (s *HubSink) Deliver(ctx context.Context, records []appoutbox.EventRecord) error {
	for _, record := range records {
		s.Hub.Publish(Event{
			ID:      record.ID,
			Name:    record.Name,
			Payload: record.Payload,
			Source:  s.Source,
		})
	}
	return nil
}
