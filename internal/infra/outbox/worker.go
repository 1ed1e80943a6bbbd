package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

const defaultPollInterval = 500 * time.Millisecond

// EventStore is what the worker needs from a staged-event store.
type EventStore interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker polls the store and ships committed change events to the
// broker as CloudEvents. Failed sends back off and retry; the listing
// id is the partition key so per-listing order survives the hop.
type Worker struct {
	Store       EventStore
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// processOnce claims at most one document and tries to ship it. Send
// and format failures are recorded on the document, not returned: the
// poll loop must survive a flaky broker.
func (w *Worker) processOnce(ctx context.Context) error {
	doc, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || doc == nil {
		return err
	}
	payload, headers, err := w.buildEnvelope(doc)
	if err != nil {
		_ = w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
		return nil
	}
	if err := w.Producer.Publish(ctx, w.topicFor(doc.Name), doc.Aggregate, payload, headers); err != nil {
		_ = w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
		return nil
	}
	return w.Store.MarkSent(ctx, doc.ID)
}

type cloudEventEnvelope struct {
	SpecVersion     string         `json:"specversion"`
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	TraceParent     string         `json:"traceparent,omitempty"`
	Data            map[string]any `json:"data"`
}

func (w *Worker) buildEnvelope(doc *EventDocument) ([]byte, map[string]string, error) {
	var data map[string]any
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	envelope := cloudEventEnvelope{
		SpecVersion:     "1.0",
		ID:              doc.ID,
		Type:            doc.Name + ".v1",
		Source:          w.source(),
		Time:            doc.OccurredAt,
		DataContentType: "application/json",
		TraceParent:     doc.Headers["traceparent"],
		Data:            data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"source":       w.source(),
		"event-name":   doc.Name,
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps an event name onto its aggregate topic: every
// "listing.*" event lands on listing.events.v1.
func (w *Worker) topicFor(name string) string {
	aggregate := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		aggregate = name[:idx]
	}
	return w.TopicPrefix + aggregate + ".events.v1"
}

func (w *Worker) nextRetry(attempts int) time.Time {
	switch {
	case attempts < len(w.Backoff):
		return time.Now().Add(w.Backoff[attempts])
	case len(w.Backoff) > 0:
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	default:
		return time.Now().Add(5 * time.Second)
	}
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://karta"
}
