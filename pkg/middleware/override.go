package middleware

import (
	"context"
	"net/http"
	"strings"
)

// overrideHeaders are consulted in order.
var overrideHeaders = []string{
	"X-HTTP-Method-Override",
	"X-HTTP-Method",
	"X-Method-Override",
}

var overridableMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

type originalMethodKey struct{}

// MethodOverride lets clients tunnel another verb through POST using an
// override header. Unknown verbs are ignored.
func MethodOverride() Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			for _, h := range overrideHeaders {
				v := strings.ToUpper(strings.TrimSpace(r.Header.Get(h)))
				if v == "" {
					continue
				}
				if overridableMethods[v] {
					ctx := context.WithValue(r.Context(), originalMethodKey{}, r.Method)
					r = r.WithContext(ctx)
					r.Method = v
				}
				break
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OriginalMethod returns the transport-level method before any override.
func OriginalMethod(r *http.Request) string {
	if m, ok := r.Context().Value(originalMethodKey{}).(string); ok {
		return m
	}
	return r.Method
}
