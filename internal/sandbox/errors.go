package sandbox

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies the kind of API failure.
type ErrorCode string

const (
	// ErrValidationFailed is returned when the request is malformed.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrRateLimited is returned when a client exceeded its request budget.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected server error occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// APIError is an error carrying the HTTP status and code to answer with.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, resource+" not found")
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// Internal creates a 500 error wrapping err.
func Internal(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message).Wrap(err)
}

// RateLimited creates a 429 error.
func RateLimited(retryAfter int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, "rate limit exceeded").WithDetail("retry_after", retryAfter)
}
