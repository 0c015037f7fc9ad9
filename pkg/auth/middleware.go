package auth

import (
	"net/http"

	"github.com/delta94/cvmaker/pkg/middleware"
)

// Middleware attaches the request's identity, if any, to the context. It
// never writes a response.
func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := g.restore(r); id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require answers 401 through the error fallback when the request has no
// identity.
//
//	r.With(auth.Require).Get("/account", account)
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r) {
			middleware.Fail(w, r, middleware.WithStatus(http.StatusUnauthorized, ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is like Require and additionally answers 403 unless the
// identity carries one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				middleware.Fail(w, r, middleware.WithStatus(http.StatusUnauthorized, ErrUnauthorized))
				return
			}
			for _, role := range roles {
				if id.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			middleware.Fail(w, r, middleware.WithStatus(http.StatusForbidden, ErrForbidden))
		})
	}
}
