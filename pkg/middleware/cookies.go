package middleware

import (
	"context"
	"net/http"

	"github.com/delta94/cvmaker/pkg/cookie"
)

// Cookies holds the cookies parsed from a request. Signed values are
// verified lazily by Signed.
type Cookies struct {
	raw    map[string]string
	signer *cookie.Signer
}

// Get returns the raw value of the named cookie.
func (c *Cookies) Get(name string) (string, bool) {
	v, ok := c.raw[name]
	return v, ok
}

// Signed returns the verified value of a signed cookie.
func (c *Cookies) Signed(name string) (string, bool) {
	v, ok := c.raw[name]
	if !ok || c.signer == nil {
		return "", false
	}
	return c.signer.Unsign(v)
}

// Len returns the number of parsed cookies.
func (c *Cookies) Len() int {
	return len(c.raw)
}

type cookiesKey struct{}

// CookieParser parses request cookies once and stores them in the context.
// The first occurrence of a duplicated name wins.
func CookieParser(signer *cookie.Signer) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parsed := &Cookies{raw: make(map[string]string), signer: signer}
			for _, c := range r.Cookies() {
				if _, dup := parsed.raw[c.Name]; !dup {
					parsed.raw[c.Name] = c.Value
				}
			}
			ctx := context.WithValue(r.Context(), cookiesKey{}, parsed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CookiesFromContext returns the parsed cookies, or nil when CookieParser did
// not run.
func CookiesFromContext(ctx context.Context) *Cookies {
	c, _ := ctx.Value(cookiesKey{}).(*Cookies)
	return c
}

// Cookie returns the raw value of the named cookie, from the parsed set when
// available and from the request headers otherwise.
func Cookie(r *http.Request, name string) (string, bool) {
	if c := CookiesFromContext(r.Context()); c != nil {
		return c.Get(name)
	}
	ck, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}
