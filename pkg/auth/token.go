package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of tokens minted by TokenStrategy.Issue.
const DefaultTokenTTL = time.Hour

// Claims are the JWT claims carried by bearer tokens.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenStrategy verifies HS256 bearer tokens.
type TokenStrategy struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenStrategy.
type TokenOption func(*TokenStrategy)

// WithIssuer requires and stamps the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenStrategy) {
		s.issuer = issuer
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenStrategy) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenClock sets the clock used for issuing and validating.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenStrategy) {
		s.now = now
	}
}

// NewTokenStrategy creates a TokenStrategy signing with secret.
func NewTokenStrategy(secret []byte, opts ...TokenOption) (*TokenStrategy, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	s := &TokenStrategy{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements Strategy.
func (s *TokenStrategy) Name() string { return "token" }

// Stateless implements Stateless.
func (s *TokenStrategy) Stateless() bool { return true }

// Authenticate implements Strategy.
func (s *TokenStrategy) Authenticate(r *http.Request) (*Identity, error) {
	raw, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return nil, ErrNoCredentials
	}
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Roles: claims.Roles,
	}, nil
}

// Issue mints a token for id.
func (s *TokenStrategy) Issue(id *Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Name:  id.Name,
		Email: id.Email,
		Roles: id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies raw and returns its claims.
func (s *TokenStrategy) Parse(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
