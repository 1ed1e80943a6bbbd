package ginserver

import (
	"io"
	"log/slog"
	"time"

	"github.com/gin-contrib/sse"
	gin "github.com/gin-gonic/gin"

	"karta/internal/infra/realtime"
)

const streamHeartbeatInterval = 25 * time.Second

// StreamHandler serves the live change feed over server-sent events.
// Each connection gets its own hub session; events published after the
// subscription appear on the wire in publish order.
type StreamHandler struct {
	Hub    *realtime.Hub
	Logger *slog.Logger
}

func (h StreamHandler) Stream(c *gin.Context) {
	session := h.Hub.Subscribe()
	defer session.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if h.Logger != nil {
		h.Logger.Debug("stream session opened", "sessions", h.Hub.Len())
	}

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-session.Events():
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    ev.ID,
				Event: ev.Name,
				Data:  string(ev.Payload),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})

	if h.Logger != nil {
		h.Logger.Debug("stream session closed", "dropped", session.Dropped())
	}
}

var _ StreamHTTP = StreamHandler{}
