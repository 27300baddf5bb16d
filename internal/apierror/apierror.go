// Package apierror defines the closed error taxonomy shared by services and the HTTP layer.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code identifies an error class in the uniform response envelope.
type Code string

// Error codes exposed to API clients.
const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeAuthorization  Code = "AUTHORIZATION_ERROR"
	CodeNotFound       Code = "RESOURCE_NOT_FOUND"
	CodeConflict       Code = "CONFLICT_ERROR"
	CodeRateLimit      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal       Code = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus maps a code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed failure carrying a client-safe message.
type Error struct {
	Code    Code
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code, so errors.Is(err, apierror.Conflict("")) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Validation reports malformed or missing input.
func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

// Authentication reports a missing or invalid credential.
func Authentication(message string) *Error {
	return &Error{Code: CodeAuthentication, Message: message}
}

// Authorization reports a role or ownership guard failure.
func Authorization(message string) *Error {
	return &Error{Code: CodeAuthorization, Message: message}
}

// NotFound reports an unknown resource id.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Conflict reports a duplicate or an illegal state transition.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// RateLimited reports a throttled client.
func RateLimited(message string) *Error {
	return &Error{Code: CodeRateLimit, Message: message}
}

// Internal wraps an unexpected failure; the cause is kept for logs only.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: cause}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error", err)
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Envelope is the uniform JSON error body.
type Envelope struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Details   any       `json:"details,omitempty"`
}

// NewEnvelope renders err for the given request path.
func NewEnvelope(err *Error, path string, now time.Time) Envelope {
	return Envelope{
		Code:      err.Code,
		Message:   err.Message,
		Timestamp: now.UTC(),
		Path:      path,
		Details:   err.Details,
	}
}
