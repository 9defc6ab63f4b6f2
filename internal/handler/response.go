package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "todo not found with id 7"}
//
// Validation errors add per-field messages:
//
//	{"error": "validation_error", "message": "task is required",
//	 "fields": {"task": "task is required"}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/todo-app/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`            // machine-readable kind, e.g. "not_found"
	Message string            `json:"message"`          // human-readable description
	Fields  map[string]string `json:"fields,omitempty"` // per-field validation messages
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to an HTTP status and error kind.
//
// This is the only place where domain errors become HTTP. The service layer
// returns apperror kinds and knows nothing about status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstreamAuth):
		return http.StatusBadGateway, "upstream_auth_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it as an ErrorResponse.
//
// errors.As walks the chain (via Unwrap) to find our *AppError for the
// human-readable message:
//
//	service returns: fmt.Errorf("updating todo 7: %w", apperror.NotFound(...))
//	errors.As finds: AppError{Err: ErrNotFound, Message: "..."}
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind := statusFor(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		// NEVER expose internal error details to the client: the raw message
		// may contain SQL or file paths.
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}

// writeBadRequest answers malformed input that never reached the service.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}
