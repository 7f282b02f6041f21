package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ludoduel/ludo-server/internal/model"
)

// Channel prefix shared by all server instances
const channelPrefix = "ludo:events:"

// channelFor returns the Pub/Sub channel carrying a game's change events
func channelFor(gameID model.GameID) string {
	return channelPrefix + string(gameID)
}

// RedisNotifier publishes change events on Redis Pub/Sub so that every
// server instance can relay them to its own subscribers
type RedisNotifier struct {
	client *redis.Client
	hubs   *HubManager
	logger *slog.Logger
}

// NewRedisNotifier creates a notifier that fans out through Redis
func NewRedisNotifier(client *redis.Client, hubs *HubManager, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		hubs:   hubs,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Ensure RedisNotifier implements Notifier
var _ Notifier = (*RedisNotifier)(nil)

// Publish sends the encoded event on the game's channel
func (n *RedisNotifier) Publish(ctx context.Context, event model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, channelFor(event.GameID), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.GameID, err)
	}
	return nil
}

// Run relays events from every game channel into the local hubs until ctx
// is cancelled. ready, if not nil, is closed once the subscription is active.
func (n *RedisNotifier) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := n.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() {
		_ = pubsub.Close()
	}()

	// Wait for the subscription confirmation before reporting ready
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to game events: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	n.logger.Info("relaying game events from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			gameID := model.GameID(strings.TrimPrefix(msg.Channel, channelPrefix))
			n.hubs.Deliver(gameID, []byte(msg.Payload))
		}
	}
}
