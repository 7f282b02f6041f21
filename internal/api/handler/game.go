package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ludoduel/ludo-server/internal/api/middleware"
	"github.com/ludoduel/ludo-server/internal/api/request"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/realtime"
	"github.com/ludoduel/ludo-server/internal/services/game"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	gameController game.ControllerInterface
	matchmaking    matchmaking.ServiceInterface
	hubManager     *realtime.HubManager
	websockets     *realtime.WebSocketServer
}

// NewGameHandler creates a new game handler
func NewGameHandler(
	gameController game.ControllerInterface,
	matchmaking matchmaking.ServiceInterface,
	hubManager *realtime.HubManager,
	websockets *realtime.WebSocketServer,
) *GameHandler {
	return &GameHandler{
		gameController: gameController,
		matchmaking:    matchmaking,
		hubManager:     hubManager,
		websockets:     websockets,
	}
}

// Get handles GET /api/v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	g, err := h.gameController.GetGameForPlayer(r.Context(), gameID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameResponse{Game: g})
}

// Wait handles GET /api/v1/games/{id}/wait
func (h *GameHandler) Wait(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	status, err := h.matchmaking.WaitStatus(r.Context(), gameID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.WaitResponseFromStatus(status))
}

// Roll handles POST /api/v1/games/{id}/roll
func (h *GameHandler) Roll(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	result, err := h.gameController.Roll(r.Context(), gameID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RollResponseFromResult(result))
}

// Move handles POST /api/v1/games/{id}/move
func (h *GameHandler) Move(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Token == nil {
		WriteError(w, NewInvalidRequestError("token is required"))
		return
	}

	result, err := h.gameController.Move(r.Context(), gameID(r), player.ID, *req.Token)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MoveResponseFromResult(result))
}

// Cancel handles POST /api/v1/games/{id}/cancel
func (h *GameHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	g, err := h.matchmaking.Cancel(r.Context(), gameID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameResponse{Game: g})
}

// Forfeit handles POST /api/v1/games/{id}/forfeit
func (h *GameHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	g, err := h.gameController.Forfeit(r.Context(), gameID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameResponse{Game: g})
}

// Events handles GET /api/v1/games/{id}/events (Server-Sent Events)
func (h *GameHandler) Events(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := gameID(r)

	if _, err := h.gameController.GetGameForPlayer(r.Context(), id, player.ID); err != nil {
		WriteError(w, err)
		return
	}

	realtime.ServeSSE(w, r, h.hubManager, id, player.ID)
}

// WebSocket handles GET /api/v1/games/{id}/ws
func (h *GameHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := gameID(r)

	if _, err := h.gameController.GetGameForPlayer(r.Context(), id, player.ID); err != nil {
		WriteError(w, err)
		return
	}

	h.websockets.Serve(w, r, id, player.ID)
}

func gameID(r *http.Request) model.GameID {
	return model.GameID(mux.Vars(r)["id"])
}
