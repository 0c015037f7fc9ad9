package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/pkg/middleware"
)

// NotFoundMessage is the body of every unmatched request.
const NotFoundMessage = "Path not found"

// NotFound is the fallback for requests no route matched.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writePlain(w, http.StatusNotFound, NotFoundMessage)
}

// ErrorHandler returns the terminal error fallback. The status comes from
// the error (see middleware.StatusCoder) and defaults to 500; the body is the
// status text. When the response has already started it only logs.
func ErrorHandler(logger zerolog.Logger) middleware.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		code := middleware.StatusOf(err)
		log := requestLogger(r, logger)

		ev := log.Warn()
		if code >= 500 {
			ev = log.Error()
		}
		var pe *middleware.PanicError
		if errors.As(err, &pe) {
			ev = ev.Bytes("stack", pe.Stack)
		}
		ev.Err(err).Int("status", code).Msg("request failed")

		if middleware.Committed(r) {
			log.Debug().Msg("response already committed, error not written")
			return
		}
		writePlain(w, code, http.StatusText(code))
	}
}

func writePlain(w http.ResponseWriter, code int, body string) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// requestLogger prefers the logger attached by the request logger stage.
func requestLogger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
