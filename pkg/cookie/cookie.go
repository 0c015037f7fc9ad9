// Package cookie signs cookie values and builds the cookies the server issues.
//
// Signed values have the form "s:<value>.<mac>" where mac is the unpadded
// base64url HMAC-SHA256 of value. Verification accepts the current secret
// and any previous secrets, so a secret can be rotated without logging out
// every client.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrEmptySecret is returned by NewSigner when no secret is given.
var ErrEmptySecret = errors.New("cookie: empty signing secret")

const signedPrefix = "s:"

// Signer signs and verifies cookie values.
type Signer struct {
	keys [][]byte
}

// NewSigner creates a Signer. Values are signed with secret; previous
// secrets are accepted by Unsign only.
func NewSigner(secret string, previous ...string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	s := &Signer{keys: [][]byte{[]byte(secret)}}
	for _, p := range previous {
		if p != "" {
			s.keys = append(s.keys, []byte(p))
		}
	}
	return s, nil
}

// Sign returns the signed form of value.
func (s *Signer) Sign(value string) string {
	return signedPrefix + value + "." + s.mac(s.keys[0], value)
}

// Unsign verifies signed and returns the original value. ok is false for
// unsigned, malformed or tampered input.
func (s *Signer) Unsign(signed string) (value string, ok bool) {
	if !strings.HasPrefix(signed, signedPrefix) {
		return "", false
	}
	body := signed[len(signedPrefix):]
	dot := strings.LastIndexByte(body, '.')
	if dot <= 0 {
		return "", false
	}
	value, sig := body[:dot], body[dot+1:]
	for _, key := range s.keys {
		if hmac.Equal([]byte(sig), []byte(s.mac(key, value))) {
			return value, true
		}
	}
	return "", false
}

func (s *Signer) mac(key []byte, value string) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Options are the attributes applied to issued cookies.
type Options struct {
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Cookie builds a cookie carrying value with the configured attributes.
// Both Max-Age and Expires are set so older clients honor the lifetime.
func (o Options) Cookie(name, value string, now time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.path(),
		Domain:   o.Domain,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
	if o.MaxAge > 0 {
		c.MaxAge = int(o.MaxAge / time.Second)
		c.Expires = now.Add(o.MaxAge).UTC()
	}
	return c
}

// Expired builds a cookie that instructs the client to drop name.
func (o Options) Expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     o.path(),
		Domain:   o.Domain,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	}
}

func (o Options) path() string {
	if o.Path == "" {
		return "/"
	}
	return o.Path
}

// ParseSameSite maps a configuration value to an http.SameSite mode.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax", "":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}
