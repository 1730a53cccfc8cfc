// Package errors defines the service's sentinel errors and the AppError
// wrapper that maps failures to HTTP status codes. The query compiler itself
// never errors; these serve the HTTP and storage surfaces around it.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTitleNotFound      = errors.New("title not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

// sentinelStatus is consulted by HTTPStatusCode when no AppError carries
// an explicit code.
var sentinelStatus = map[error]int{
	ErrInvalidInput:       http.StatusBadRequest,
	ErrTitleNotFound:      http.StatusNotFound,
	ErrRateLimited:        http.StatusTooManyRequests,
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrCatalogUnavailable: http.StatusServiceUnavailable,
	ErrTimeout:            http.StatusServiceUnavailable,
}

// AppError wraps a sentinel with a human-readable message and an HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf creates an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode maps err to an HTTP status code. An explicit AppError
// status wins; otherwise the sentinel table decides, and anything
// unrecognized is a 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for sentinel, status := range sentinelStatus {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return http.StatusInternalServerError
}
