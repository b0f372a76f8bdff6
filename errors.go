package wizard

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPrompt is returned when a completion is requested with no prompt.
var ErrEmptyPrompt = errors.New("empty prompt")

// ErrorCategory classifies errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransient indicates the error is temporary and the operation can be retried.
	// Examples: rate limits, temporary network issues, server overload.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates the error is not recoverable through retry.
	// Examples: invalid API key, insufficient permissions, model not found.
	ErrorPermanent ErrorCategory = "permanent"
)

// CategorizedError is an error that provides information about how it should be handled.
type CategorizedError interface {
	error
	Category() ErrorCategory
	Retryable() bool           // convenience: returns true if Category == ErrorTransient
	StatusCode() int           // HTTP status code if applicable, 0 otherwise
	RetryAfter() time.Duration // suggested retry delay from server, 0 if not available
}

// Error is a categorized error with metadata for error handling decisions.
type Error struct {
	Msg        string
	Cat        ErrorCategory
	Code       int           // HTTP status code, 0 if not applicable
	RetryDelay time.Duration // from Retry-After header, 0 if not available
	Cause      error         // underlying error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.Cat
}

// Retryable returns true if the error is transient.
func (e *Error) Retryable() bool {
	return e.Cat == ErrorTransient
}

// StatusCode returns the HTTP status code, or 0 if not applicable.
func (e *Error) StatusCode() int {
	return e.Code
}

// RetryAfter returns the server-suggested retry delay, or 0.
func (e *Error) RetryAfter() time.Duration {
	return e.RetryDelay
}

// NewTransientError creates a retryable error.
func NewTransientError(msg string, code int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: code, Cause: cause}
}

// NewTransientErrorWithRetry creates a retryable error carrying a
// server-suggested retry delay.
func NewTransientErrorWithRetry(msg string, code int, retryAfter time.Duration, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Code: code, RetryDelay: retryAfter, Cause: cause}
}

// NewPermanentError creates a non-retryable error.
func NewPermanentError(msg string, code int, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorPermanent, Code: code, Cause: cause}
}

// IsTransient reports whether err is categorized as transient.
// Uncategorized errors are treated as transient so callers err on the
// side of retrying transport hiccups.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return true
}

// RetryAfterOf returns the server-suggested retry delay from a
// categorized error, or 0.
func RetryAfterOf(err error) time.Duration {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.RetryAfter()
	}
	return 0
}
