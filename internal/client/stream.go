package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"karta/internal/app/dto"
)

// consumeStream reads server-sent events until the connection drops or
// the context ends. Every decoded listing change is applied to the
// view; heartbeats and foreign events are skipped.
func (a *Agent) consumeStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/listings/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	a.authorize(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: stream request failed: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := a.dispatch(eventName, data.String()); err != nil {
				return err
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment, ignore
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (a *Agent) dispatch(eventName, payload string) error {
	if eventName == "" || eventName == "ping" {
		return nil
	}
	change, err := dto.DecodeListingChange(eventName, []byte(payload))
	if err != nil {
		// Unknown event types are not fatal; the stream may grow
		// names this agent predates.
		if a.logger != nil {
			a.logger.Debug("skipping event", "event", eventName, "error", err)
		}
		return nil
	}
	if err := a.Apply(change); err != nil {
		if errors.Is(err, ErrChangeInvalid) {
			if a.logger != nil {
				a.logger.Warn("dropping malformed change", "event", eventName)
			}
			return nil
		}
		return err
	}
	return nil
}
