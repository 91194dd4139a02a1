// Package errors defines the error taxonomy shared by the cache, the remote
// gateway, and the sync engine. Remote failures are split into transient
// (retryable: network, rate limits) and permanent (schema, auth) so callers
// can decide whether an operation is worth retrying.
package errors

import (
	"errors"
	"net/http"
)

// AppError is a structured application error carrying a stable code, a
// human-readable message, the HTTP status used when it reaches the API
// surface, and an optional wrapped internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Transient  bool   `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap returns a copy of sentinel carrying internal as its wrapped cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Transient:  sentinel.Transient,
		Internal:   internal,
	}
}

// WithMessage returns a copy of sentinel with a more specific message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Transient:  sentinel.Transient,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound     = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternal     = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Remote store errors. Transient ones are retried with backoff by the
// gateway before they ever reach a caller; permanent ones surface
// immediately and abort the sync cycle that hit them.
var (
	ErrRemoteUnavailable = &AppError{Code: "REMOTE_UNAVAILABLE", Message: "Remote store is unreachable", StatusCode: http.StatusBadGateway, Transient: true}
	ErrRemoteRateLimited = &AppError{Code: "REMOTE_RATE_LIMITED", Message: "Remote store rejected the request rate", StatusCode: http.StatusBadGateway, Transient: true}
	ErrRemoteSchema      = &AppError{Code: "REMOTE_SCHEMA", Message: "Remote document or region is missing or malformed", StatusCode: http.StatusBadGateway}
	ErrRemoteAuth        = &AppError{Code: "REMOTE_AUTH", Message: "Remote store rejected the credentials", StatusCode: http.StatusBadGateway}
)

// Sync errors.
var (
	ErrSyncInFlight = &AppError{Code: "SYNC_IN_FLIGHT", Message: "A sync cycle is already running", StatusCode: http.StatusConflict}
	ErrSyncFailed   = &AppError{Code: "SYNC_FAILED", Message: "Sync cycle failed; local changes are preserved and will retry", StatusCode: http.StatusInternalServerError}
)

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Transient
}

// IsPermanentRemote reports whether err is a non-retryable remote failure
// (auth rejection, missing or malformed document).
func IsPermanentRemote(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Transient {
		return false
	}
	switch appErr.Code {
	case ErrRemoteSchema.Code, ErrRemoteAuth.Code:
		return true
	}
	return false
}
