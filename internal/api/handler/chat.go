package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ludoduel/ludo-server/internal/api/middleware"
	"github.com/ludoduel/ludo-server/internal/api/request"
	"github.com/ludoduel/ludo-server/internal/api/response"
	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/services/chat"
)

// Upper bound accepted for the chat list limit parameter
const maxChatLimit = 500

// ChatHandler handles in-game chat endpoints
type ChatHandler struct {
	chat chat.ServiceInterface
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat chat.ServiceInterface) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// List handles GET /api/v1/games/{id}/chat?limit=N
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	// Zero lets the chat service apply its own default
	limit, err := parseLimit(r, 0, maxChatLimit)
	if err != nil {
		WriteError(w, err)
		return
	}

	messages, err := h.chat.List(r.Context(), gameID(r), player.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []*model.ChatMessage{}
	}

	response.JSON(w, http.StatusOK, response.ChatListResponse{Messages: messages})
}

// Send handles POST /api/v1/games/{id}/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	msg, err := h.chat.Send(r.Context(), gameID(r), player.ID, req.Text, model.MessageType(req.Type))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, msg)
}
