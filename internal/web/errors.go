package web

// errors.go turns handler errors into JSON responses. The technical error is
// logged with the request id; the client gets the mapped user message and
// code from core.MapError.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/logging"
)

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errRateLimited  = errors.New("rate limit exceeded")
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrUnsupportedFile),
		errors.Is(err, core.ErrImport),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyImports),
		errors.Is(err, docstore.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as the response body. Encoding errors are only
// logged since the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
