// Package apperror defines the error taxonomy shared by the service and
// repository layers.
//
// Each kind is a sentinel (ErrNotFound, ErrForbidden, ...) wrapped by an
// *AppError carrying the human-readable message. Callers test the kind with
// errors.Is and read the message with errors.As. Only internal/handler maps
// kinds to HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUpstreamAuth    = errors.New("upstream auth error")
)

type AppError struct {
	Err     error             // sentinel kind
	Message string            // Human-readable error message
	Fields  map[string]string // Optional: per-field messages for validation errors
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Unauthenticated is returned when no session user could be resolved.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "valid authentication required",
	}
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Fields:  map[string]string{field: message},
	}
}

// Invalid bundles several field errors into one validation error.
// The message lists the fields in sorted order so it is stable.
func Invalid(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fields[name])
	}

	return &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
}

// ConflictMessage reports a write refused because of existing data, such as
// a duplicate category name or a category still referenced by todos.
func ConflictMessage(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UpstreamAuth wraps a failure talking to an OAuth provider. The cause is
// kept in the chain for logging but never shown to the user.
func UpstreamAuth(provider string, cause error) error {
	return fmt.Errorf("%w: %w", &AppError{
		Err:     ErrUpstreamAuth,
		Message: fmt.Sprintf("authentication with %s failed", provider),
	}, cause)
}
