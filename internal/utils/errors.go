package utils

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// HTTPError is an error that carries the status code and the OpenAI-style
// fields written in the error envelope. Cause is kept for logs only.
type HTTPError struct {
	Status  int
	Message string
	Type    string
	Param   *string
	Code    *string
	Cause   error

	stack string
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Stack returns the goroutine stack captured when the error was created.
func (e *HTTPError) Stack() string {
	return e.stack
}

// NewHTTPError builds an HTTPError. An empty message defaults to the status text.
func NewHTTPError(status int, message string, cause error) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{
		Status:  status,
		Message: message,
		Type:    errorType(status),
		Cause:   cause,
		stack:   string(debug.Stack()),
	}
}

func BadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, nil)
}

func Unauthorized(message string, cause error) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message, cause)
}

func Forbidden(message string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, message, nil)
}

func NotFound(message string, cause error) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, cause)
}

func Internal(message string, cause error) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, cause)
}

// AsHTTPError unwraps err into an HTTPError. Anything else becomes a 500
// that keeps err as its cause.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return Internal("", err)
}

func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusForbidden:
		return "permission_error"
	case status == http.StatusNotFound:
		return "not_found_error"
	case status >= 500:
		return "server_error"
	default:
		return "invalid_request_error"
	}
}
