package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ludoduel/ludo-server/internal/model"
)

// Buffer size for outgoing messages per subscriber
const sendBufferSize = 64

// Subscriber is one connected client of a game's change feed. Messages are
// JSON-encoded model.ChangeEvent values.
type Subscriber struct {
	playerID    model.PlayerID
	send        chan []byte
	connectedAt time.Time
}

// NewSubscriber creates a subscriber for a player
func NewSubscriber(playerID model.PlayerID) *Subscriber {
	return &Subscriber{
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Messages returns the channel of encoded events. It is closed when the
// subscriber is unregistered or the hub shuts down.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Hub fans out change events to the subscribers of a single game
type Hub struct {
	gameID  model.GameID
	clients map[*Subscriber]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing subscribers
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a game
func NewHub(gameID model.GameID, logger *slog.Logger) *Hub {
	return &Hub{
		gameID:     gameID,
		clients:    make(map[*Subscriber]bool),
		logger:     logger.With(slog.String("game_id", string(gameID))),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.clients[sub] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("subscriber registered",
				slog.String("player_id", string(sub.playerID)),
				slog.Int("total_subscribers", count))

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[sub]; ok {
				delete(h.clients, sub)
				close(sub.send)
				count := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("subscriber unregistered",
					slog.String("player_id", string(sub.playerID)),
					slog.Duration("connection_duration", time.Since(sub.connectedAt)),
					slog.Int("total_subscribers", count))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for sub := range h.clients {
				select {
				case sub.send <- message:
				default:
					dropped++
					h.logger.Warn("message dropped, subscriber buffer full",
						slog.String("player_id", string(sub.playerID)))
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("broadcast partial failure", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.clients)
			for sub := range h.clients {
				close(sub.send)
				delete(h.clients, sub)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("disconnected_subscribers", count))
			return
		}
	}
}

// Register adds a subscriber to the hub. It returns false if the hub is closed.
func (h *Hub) Register(sub *Subscriber) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- sub:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a subscriber from the hub
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast sends an encoded event to all subscribers
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast dropped, hub buffer full")
	}
}

// Close shuts down the hub and disconnects every subscriber
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager manages hubs for all games on this server instance
type HubManager struct {
	hubs   map[model.GameID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.GameID]*Hub),
		logger: logger.With(slog.String("component", "realtime")),
	}
}

// GetOrCreateHub returns the hub for a game, creating one if it doesn't exist
func (m *HubManager) GetOrCreateHub(gameID model.GameID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[gameID]; ok {
		return hub
	}

	hub := NewHub(gameID, m.logger)
	m.hubs[gameID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a game, or nil if nobody is subscribed here
func (m *HubManager) GetHub(gameID model.GameID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[gameID]
}

// Deliver broadcasts an encoded event to the game's local subscribers, if any
func (m *HubManager) Deliver(gameID model.GameID, message []byte) {
	if hub := m.GetHub(gameID); hub != nil {
		hub.Broadcast(message)
	}
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(gameID model.GameID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[gameID]; ok {
		hub.Close()
		delete(m.hubs, gameID)
		m.logger.Info("hub removed", slog.String("game_id", string(gameID)))
	}
}

// CleanupEmptyHubs removes hubs with no subscribers
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, hub := range m.hubs {
		if hub.SubscriberCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", removed))
	}
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}
