package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/ludoduel/ludo-server/internal/model"
)

const (
	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// SSE event name carrying change events
	changeEventName = "change"
)

// ServeSSE streams a game's change events to the client as Server-Sent Events
func ServeSSE(w http.ResponseWriter, r *http.Request, hubs *HubManager, gameID model.GameID, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, hub := subscribe(hubs, gameID, playerID)
	if hub == nil {
		http.Error(w, "Subscription unavailable", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write(formatSSEMessage("connected", `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-sub.Messages():
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(formatSSEMessage(changeEventName, string(message))); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// subscribe registers a new subscriber, retrying once if the hub was closed
// by a concurrent cleanup
func subscribe(hubs *HubManager, gameID model.GameID, playerID model.PlayerID) (*Subscriber, *Hub) {
	for attempt := 0; attempt < 2; attempt++ {
		sub := NewSubscriber(playerID)
		hub := hubs.GetOrCreateHub(gameID)
		if hub.Register(sub) {
			return sub, hub
		}
	}
	return nil, nil
}

// formatSSEMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
