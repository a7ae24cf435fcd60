// Package errors carries HTTP status and client-safe text alongside the
// sentinel errors the services match on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrCorpusNotFound = errors.New("corpus not found")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrTimeout        = errors.New("operation timed out")
	ErrCacheDisabled  = errors.New("cache disabled")
	ErrInternal       = errors.New("internal error")
)

// statusOf lists the sentinels that are safe to name to clients, in match
// order, with the status each implies.
var statusOf = []struct {
	sentinel error
	status   int
}{
	{ErrCorpusNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrCacheDisabled, http.StatusNotImplemented},
	{ErrTimeout, http.StatusGatewayTimeout},
}

// AppError is a sentinel plus the status and message a handler should send.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string { return e.Err.Error() + ": " + e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, status int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: status}
}

func Newf(sentinel error, status int, format string, args ...any) *AppError {
	return New(sentinel, status, fmt.Sprintf(format, args...))
}

// Invalid is a 400 wrapping ErrInvalidInput.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// HTTPStatusCode prefers an AppError anywhere in the chain, then a known
// sentinel, and falls back to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statusOf {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Message is what a client may see for err. Anything that is neither an
// AppError nor a known sentinel reads "internal error".
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	for _, s := range statusOf {
		if errors.Is(err, s.sentinel) {
			return s.sentinel.Error()
		}
	}
	return ErrInternal.Error()
}
