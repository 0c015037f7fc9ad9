package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// StatusCoder is implemented by errors that declare the HTTP status the
// error fallback should respond with.
type StatusCoder interface {
	StatusCode() int
}

// ErrorHandler writes the response for a failed request. It is reached only
// through Fail.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }

// WithStatus annotates err with an HTTP status.
func WithStatus(code int, err error) error {
	return &statusError{code: code, err: err}
}

// StatusOf returns the status declared by err, or 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type errorSink struct {
	handler ErrorHandler
	writer  *statusWriter
}

type errorSinkKey struct{}

// Errors installs handler as the terminal error fallback for the chain it
// wraps. It must be the outermost stage.
func Errors(handler ErrorHandler) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			sink := &errorSink{handler: handler, writer: sw}
			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), errorSinkKey{}, sink)))
		})
	}
}

// Fail routes err to the error fallback installed by Errors. Without one it
// responds with a bare status.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if sink, ok := r.Context().Value(errorSinkKey{}).(*errorSink); ok {
		sink.handler(w, r, err)
		return
	}
	code := StatusOf(err)
	http.Error(w, http.StatusText(code), code)
}

// Committed reports whether the response has already started, in which case
// the error fallback can only log.
func Committed(r *http.Request) bool {
	if sink, ok := r.Context().Value(errorSinkKey{}).(*errorSink); ok {
		return sink.writer.wroteHeader
	}
	return false
}

// Recover converts a panic in a later stage into a *PanicError passed to Fail.
func Recover() Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				Fail(w, r, &PanicError{Value: rec, Stack: debug.Stack()})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
