package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Asdisarson/ss/pkg/errors"
	"github.com/Asdisarson/ss/pkg/logger"
)

// ErrorResponse is the JSON error body returned by every endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// Headers are already sent when encoding fails, so the error is dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes an error body with a plain message and no code.
func WriteMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	})
}

// WriteError maps err to a status code and writes a standardized error body.
// Server errors are logged; when detailed is true (development) the body
// carries the underlying error text instead of the generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger, detailed bool) {
	l := logger.FromContext(r.Context(), fallback)
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	} else if errors.Is(err, apperrors.ErrInvalidInput) {
		code = "INVALID_INPUT"
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		if detailed {
			message = err.Error()
		}
	}

	WriteJSON(w, status, ErrorResponse{Error: message, Code: code, RequestID: requestID})
}

// QueryInt parses the named query parameter as an int. Missing or
// non-numeric values yield def.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
