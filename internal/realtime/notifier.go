package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ludoduel/ludo-server/internal/model"
)

// Notifier publishes change events to every subscriber of a game
type Notifier interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
}

// LocalNotifier delivers events straight to this instance's hubs. It is
// enough when a single server instance serves all clients.
type LocalNotifier struct {
	hubs   *HubManager
	logger *slog.Logger
}

// NewLocalNotifier creates a notifier backed by in-process hubs
func NewLocalNotifier(hubs *HubManager, logger *slog.Logger) *LocalNotifier {
	return &LocalNotifier{
		hubs:   hubs,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Ensure LocalNotifier implements Notifier
var _ Notifier = (*LocalNotifier)(nil)

// Publish encodes the event and hands it to the game's hub
func (n *LocalNotifier) Publish(ctx context.Context, event model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	n.hubs.Deliver(event.GameID, data)
	n.logger.Debug("event published",
		slog.String("game_id", string(event.GameID)),
		slog.String("table", string(event.Table)),
		slog.String("event", string(event.Event)))
	return nil
}
