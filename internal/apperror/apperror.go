// Package apperror defines the error taxonomy shared by all layers.
//
// Services and repositories return these typed errors; the HTTP layer maps
// them to status codes in one place (handler/response.go). ErrIndexMissing is
// special: it never reaches a client; it is the signal that switches a
// listing onto the degraded fallback query path.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrIndexMissing = errors.New("index missing")
	ErrUnavailable  = errors.New("backend unavailable")
)

type AppError struct {
	Err     error  // sentinel from the list above
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
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

// IndexMissing signals that the storage backend cannot serve an ordered
// compound query because the required composite index is not provisioned.
// The fallback query strategy is its only consumer; it must never surface
// to a client.
func IndexMissing(collection, detail string) *AppError {
	return &AppError{
		Err:     ErrIndexMissing,
		Message: fmt.Sprintf("missing composite index for %s: %s", collection, detail),
	}
}

// Unavailable wraps a transport or storage failure that the caller can only
// report, not recover from.
func Unavailable(op string, err error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s: backend unavailable: %v", op, err),
	}
}
