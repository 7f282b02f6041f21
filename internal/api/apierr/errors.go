package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ludoduel/ludo-server/internal/model"
	"github.com/ludoduel/ludo-server/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUsernameExists      = "USERNAME_EXISTS"
	CodeInvalidDisplayName  = "INVALID_DISPLAY_NAME"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeGameNotFound        = "GAME_NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidEntryFee     = "INVALID_ENTRY_FEE"
	CodeJoinFailed          = "JOIN_FAILED"
	CodeConflict            = "CONFLICT"
	CodeNotParticipant      = "NOT_PARTICIPANT"
	CodeNotCreator          = "NOT_CREATOR"
	CodeNotYourTurn         = "NOT_YOUR_TURN"
	CodeGameNotWaiting      = "GAME_NOT_WAITING"
	CodeGameNotPlaying      = "GAME_NOT_PLAYING"
	CodeMustRollFirst       = "MUST_ROLL_FIRST"
	CodeAlreadyRolled       = "ALREADY_ROLLED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeIllegalMove         = "ILLEGAL_MOVE"
	CodeInvalidMessage      = "INVALID_MESSAGE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// StatusOf returns the HTTP status an error maps to
func StatusOf(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors. ErrJoinFailed is checked before ErrConflict because
	// a failed join wraps the last conflict.
	switch {
	case errors.Is(err, model.ErrPlayerNotFound), errors.Is(err, model.ErrBalanceNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrInsufficientBalance):
		return &httpError{http.StatusConflict, APIError{CodeInsufficientBalance, "Insufficient balance"}}
	case errors.Is(err, model.ErrInvalidEntryFee):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidEntryFee, err.Error()}}
	case errors.Is(err, model.ErrJoinFailed):
		return &httpError{http.StatusConflict, APIError{CodeJoinFailed, "Game was taken by another player, try again"}}
	case errors.Is(err, model.ErrConflict):
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Game changed concurrently, try again"}}
	case errors.Is(err, model.ErrNotParticipant):
		return &httpError{http.StatusForbidden, APIError{CodeNotParticipant, "Not a player in this game"}}
	case errors.Is(err, model.ErrNotCreator):
		return &httpError{http.StatusForbidden, APIError{CodeNotCreator, "Only the creator can cancel this game"}}
	case errors.Is(err, model.ErrNotPlayerTurn):
		return &httpError{http.StatusForbidden, APIError{CodeNotYourTurn, "Not your turn"}}
	case errors.Is(err, model.ErrGameNotWaiting):
		return &httpError{http.StatusConflict, APIError{CodeGameNotWaiting, "Game is not waiting for an opponent"}}
	case errors.Is(err, model.ErrGameNotPlaying):
		return &httpError{http.StatusConflict, APIError{CodeGameNotPlaying, "Game is not in progress"}}
	case errors.Is(err, model.ErrMustRollFirst):
		return &httpError{http.StatusConflict, APIError{CodeMustRollFirst, "Roll the dice before moving"}}
	case errors.Is(err, model.ErrAlreadyRolled):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyRolled, "Dice already rolled this turn"}}
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidToken, "Token index must be 0-3"}}
	case errors.Is(err, model.ErrIllegalMove):
		return &httpError{http.StatusBadRequest, APIError{CodeIllegalMove, "That token cannot move with this roll"}}
	case errors.Is(err, model.ErrInvalidMessage):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidMessage, err.Error()}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, auth.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidDisplayName, "Display name must be 1-32 characters"}}
	case errors.Is(err, auth.ErrWeakPassword):
		return &httpError{http.StatusBadRequest, APIError{CodeWeakPassword, "Password must be at least 8 characters"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
