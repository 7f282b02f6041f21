package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ludoduel/ludo-server/internal/model"
)

// SSE event names sent by the server
const (
	connectedEvent = "connected"
	changeEvent    = "change"
)

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// ReadSSE parses a Server-Sent Events stream and calls fn for every event.
// Comment lines (keepalives) are skipped. It returns nil at end of stream or
// the first error from fn.
func ReadSSE(r io.Reader, fn func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, ":"):
			// Comment
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" || len(dataLines) > 0 {
				if err := fn(SSEEvent{Event: currentEvent, Data: strings.Join(dataLines, "\n")}); err != nil {
					return err
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}
	return scanner.Err()
}

// errStopStream ends a stream from inside a ReadSSE callback
var errStopStream = errors.New("stop stream")

// watchChanges streams a game's change events into fn until fn returns
// errStopStream, the stream ends or ctx is cancelled. onConnected, if set,
// runs once the subscription is live so the caller can re-sync a snapshot.
func watchChanges(ctx context.Context, gameID model.GameID, onConnected func() error, fn func(model.ChangeEvent) error) error {
	body, err := client.Stream(ctx, fmt.Sprintf("/api/v1/games/%s/events", gameID))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	err = ReadSSE(body, func(evt SSEEvent) error {
		if evt.Event == connectedEvent {
			if onConnected != nil {
				return onConnected()
			}
			return nil
		}
		if evt.Event != changeEvent {
			return nil
		}
		var change model.ChangeEvent
		if err := json.Unmarshal([]byte(evt.Data), &change); err != nil {
			return fmt.Errorf("invalid change event: %w", err)
		}
		return fn(change)
	})

	switch {
	case errors.Is(err, errStopStream):
		return nil
	case ctx.Err() != nil:
		// Cancellation is expected
		return nil
	default:
		return err
	}
}
