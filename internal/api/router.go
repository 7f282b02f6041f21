package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ludoduel/ludo-server/internal/api/handler"
	"github.com/ludoduel/ludo-server/internal/api/middleware"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/services/auth"
	"github.com/ludoduel/ludo-server/internal/services/chat"
	"github.com/ludoduel/ludo-server/internal/services/game"
	"github.com/ludoduel/ludo-server/internal/services/ledger"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger             *slog.Logger
	AuthService        *auth.Service
	Ledger             ledger.ServiceInterface
	MatchmakingService matchmaking.ServiceInterface
	GameController     game.ControllerInterface
	ChatService        chat.ServiceInterface
	HubManager         *realtime.HubManager
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	websockets := realtime.NewWebSocketServer(cfg.HubManager, cfg.AllowedOrigins, cfg.Logger)
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.Ledger)
	matchmakingHandler := handler.NewMatchmakingHandler(cfg.MatchmakingService)
	gameHandler := handler.NewGameHandler(cfg.GameController, cfg.MatchmakingService, cfg.HubManager, websockets)
	chatHandler := handler.NewChatHandler(cfg.ChatService)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/me/ledger", playerHandler.GetLedger).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)

	// Matchmaking
	matchmakingRoutes := api.PathPrefix("/matchmaking").Subrouter()
	matchmakingRoutes.Use(authMiddleware)
	matchmakingRoutes.HandleFunc("", matchmakingHandler.FindOrJoin).Methods(http.MethodPost)

	// Game routes (all require auth)
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("/{id}", gameHandler.Get).Methods(http.MethodGet)
	games.HandleFunc("/{id}/wait", gameHandler.Wait).Methods(http.MethodGet)
	games.HandleFunc("/{id}/roll", gameHandler.Roll).Methods(http.MethodPost)
	games.HandleFunc("/{id}/move", gameHandler.Move).Methods(http.MethodPost)
	games.HandleFunc("/{id}/cancel", gameHandler.Cancel).Methods(http.MethodPost)
	games.HandleFunc("/{id}/forfeit", gameHandler.Forfeit).Methods(http.MethodPost)
	games.HandleFunc("/{id}/chat", chatHandler.List).Methods(http.MethodGet)
	games.HandleFunc("/{id}/chat", chatHandler.Send).Methods(http.MethodPost)
	games.HandleFunc("/{id}/events", gameHandler.Events).Methods(http.MethodGet)
	games.HandleFunc("/{id}/ws", gameHandler.WebSocket).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
