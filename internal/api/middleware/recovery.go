package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ludoduel/ludo-server/internal/api/apierr"
	"github.com/ludoduel/ludo-server/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// Panics become the standard JSON INTERNAL_ERROR body.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// RequestID tags every API request with an X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
