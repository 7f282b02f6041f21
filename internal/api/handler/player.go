package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ludoduel/ludo-server/internal/api/middleware"
	"github.com/ludoduel/ludo-server/internal/api/request"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/services/auth"
	"github.com/ludoduel/ludo-server/internal/services/ledger"
)

// Default and maximum number of ledger entries returned
const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
	ledger      ledger.ServiceInterface
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, ledger ledger.ServiceInterface) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		ledger:      ledger,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.CreateGuestPlayer(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.writeSession(r.Context(), w, http.StatusCreated, session)
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}
	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.RegisterPlayer(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.writeSession(r.Context(), w, http.StatusCreated, session)
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.writeSession(r.Context(), w, http.StatusOK, session)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	balance, err := h.ledger.Balance(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MeResponse{
		Player:  response.PlayerFromModel(player),
		Balance: balance,
	})
}

// GetLedger handles GET /api/v1/players/me/ledger?limit=N
func (h *PlayerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	limit, err := parseLimit(r, defaultLedgerLimit, maxLedgerLimit)
	if err != nil {
		WriteError(w, err)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	entries, err := h.ledger.History(r.Context(), player.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}

	response.JSON(w, http.StatusOK, response.LedgerResponse{Balance: balance, Entries: entries})
}

func (h *PlayerHandler) writeSession(ctx context.Context, w http.ResponseWriter, status int, session *auth.Session) {
	balance, err := h.ledger.Balance(ctx, session.PlayerID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, status, response.AuthResponseFromSession(session, balance))
}

// parseLimit reads the optional limit query parameter. Zero means the default.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, NewInvalidRequestError("limit must be a non-negative integer")
	}
	if limit == 0 {
		return def, nil
	}
	return min(limit, maxLimit), nil
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSession(r.Context()); session != nil {
		h.authService.InvalidateSession(session.Token)
	}
	response.NoContent(w)
}
