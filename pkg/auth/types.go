package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"
)

// SessionKeyIdentity is the session value holding the authenticated Identity.
const SessionKeyIdentity = "cvmaker:auth:identity"

var (
	// ErrNoCredentials means the strategy found nothing it could check.
	ErrNoCredentials = errors.New("auth: no credentials")

	// ErrInvalidCredentials is a failed password attempt.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken is a bearer token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNoSession is returned by Login and Logout outside the session stage.
	ErrNoSession = errors.New("auth: no session in request context")

	// ErrUnauthorized is returned when authentication is required but not present.
	ErrUnauthorized = errors.New("unauthorized: authentication required")

	// ErrForbidden is returned when authentication is present but insufficient.
	ErrForbidden = errors.New("forbidden: insufficient permissions")
)

// Identity is the authenticated principal of a request.
type Identity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`

	// Strategy names the strategy that produced the identity.
	Strategy        string    `json:"strategy"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// Strategy checks one kind of credentials.
type Strategy interface {
	// Name identifies the strategy in logs and on the Identity.
	Name() string

	// Authenticate returns ErrNoCredentials when the request carries none of
	// the strategy's credentials. Any other error is a failed attempt.
	Authenticate(r *http.Request) (*Identity, error)
}

// Stateless is implemented by strategies whose credentials travel with every
// request. The gate consults them when the session holds no identity.
type Stateless interface {
	Stateless() bool
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached by the gate.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// IsAuthenticated reports whether r carries an identity.
func IsAuthenticated(r *http.Request) bool {
	_, ok := FromContext(r.Context())
	return ok
}

// StatusCode returns the appropriate HTTP status code for an auth error.
// Returns (statusCode, true) for auth errors, (0, false) otherwise.
func StatusCode(err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrNoCredentials):
		return http.StatusUnauthorized, true
	default:
		return 0, false
	}
}
