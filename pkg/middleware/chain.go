package middleware

import "net/http"

// Stage is one unit of request processing.
type Stage = func(http.Handler) http.Handler

// Chain combines stages into one. The first stage is outermost.
func Chain(stages ...Stage) Stage {
	return func(next http.Handler) http.Handler {
		for i := len(stages) - 1; i >= 0; i-- {
			if stages[i] != nil {
				next = stages[i](next)
			}
		}
		return next
	}
}
