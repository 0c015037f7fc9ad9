package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request-scoped logger to the context and logs one
// line per completed request. Server errors log at warn level.
func RequestLogger(logger zerolog.Logger) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)

			lctx := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if id := chimw.GetReqID(r.Context()); id != "" {
				lctx = lctx.Str("request_id", id)
			}
			reqLogger := lctx.Logger()

			next.ServeHTTP(sw, r.WithContext(reqLogger.WithContext(r.Context())))

			ev := reqLogger.Info()
			if sw.status >= 500 {
				ev = reqLogger.Warn()
			}
			ev.Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("http request")
		})
	}
}
