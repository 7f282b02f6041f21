package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ludoduel/ludo-server/internal/api/middleware"
	"github.com/ludoduel/ludo-server/internal/api/request"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/services/matchmaking"
)

// MatchmakingHandler handles matchmaking endpoints
type MatchmakingHandler struct {
	matchmaking matchmaking.ServiceInterface
}

// NewMatchmakingHandler creates a new matchmaking handler
func NewMatchmakingHandler(matchmaking matchmaking.ServiceInterface) *MatchmakingHandler {
	return &MatchmakingHandler{matchmaking: matchmaking}
}

// FindOrJoin handles POST /api/v1/matchmaking
func (h *MatchmakingHandler) FindOrJoin(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	result, err := h.matchmaking.FindOrJoinGame(r.Context(), player.ID, req.EntryFee)
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == matchmaking.OutcomeCreated {
		status = http.StatusCreated
	}
	response.JSON(w, status, response.MatchResponseFromResult(result))
}
