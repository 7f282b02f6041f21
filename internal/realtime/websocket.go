package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ludoduel/ludo-server/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Clients only send control frames; anything larger is rejected
	maxReadSize = 512
)

// WebSocketServer upgrades HTTP requests into a game's change feed
type WebSocketServer struct {
	hubs     *HubManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketServer creates a WebSocket transport. allowedOrigins empty
// accepts any origin.
func NewWebSocketServer(hubs *HubManager, allowedOrigins []string, logger *slog.Logger) *WebSocketServer {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &WebSocketServer{
		hubs: hubs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
		logger: logger.With(slog.String("component", "websocket")),
	}
}

// Serve upgrades the connection and streams change events as text frames
// until either side closes
func (s *WebSocketServer) Serve(w http.ResponseWriter, r *http.Request, gameID model.GameID, playerID model.PlayerID) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	sub, hub := subscribe(s.hubs, gameID, playerID)
	if hub == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer hub.Unregister(sub)

	closed := make(chan struct{})
	go s.readPump(conn, closed)
	s.writePump(conn, sub, closed)
}

// readPump discards client frames and keeps the read deadline fresh on pong
func (s *WebSocketServer) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxReadSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

func (s *WebSocketServer) writePump(conn *websocket.Conn, sub *Subscriber, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}
