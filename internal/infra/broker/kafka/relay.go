package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"karta/internal/infra/realtime"
)

// Relay re-injects change events produced by other instances into the
// local hub. Events carrying this instance's source header already went
// through the local sink and are skipped.
type Relay struct {
	Hub    *realtime.Hub
	Source string
	Logger *slog.Logger
}

type cloudEvent struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

func (r *Relay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("relay: dropping undecodable message", "topic", msg.Topic, "offset", msg.Offset)
		}
		return nil
	}
	source := evt.Source
	name := trimVersion(evt.Type)
	for _, h := range msg.Headers {
		switch string(h.Key) {
		case "source":
			source = string(h.Value)
		case "event-name":
			name = string(h.Value)
		}
	}
	if source == r.Source {
		return nil
	}
	r.Hub.Publish(realtime.Event{
		ID:      evt.ID,
		Name:    name,
		Payload: evt.Data,
		Source:  source,
	})
	return nil
}

// trimVersion strips the trailing ".v1" the producer appends to the
// event name.
func trimVersion(eventType string) string {
	const suffix = ".v1"
	if len(eventType) > len(suffix) && eventType[len(eventType)-len(suffix):] == suffix {
		return eventType[:len(eventType)-len(suffix)]
	}
	return eventType
}
