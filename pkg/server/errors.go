package server

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for app assembly.
var (
	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("server: missing dependency")

	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)

// HTTPError is an error carrying the status the error fallback responds
// with. Message is logged, never sent.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// Error returns the error message with its status.
func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	if e.Err == nil {
		return fmt.Sprintf("server: %d %s", e.Code, msg)
	}
	return fmt.Sprintf("server: %d %s: %v", e.Code, msg, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode implements middleware.StatusCoder.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, message string, err error) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
