package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/pkg/session"
)

// Regenerator moves a session to a fresh id. *session.Manager implements it.
type Regenerator interface {
	Regenerate(ctx context.Context, sess *session.Session)
}

// Gate runs the strategy chain and keeps the identity in the session.
type Gate struct {
	strategies []Strategy
	sessions   Regenerator
	logger     zerolog.Logger
	now        func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateClock sets the clock used for AuthenticatedAt.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// WithStrategies appends strategies to the chain, in order.
func WithStrategies(strategies ...Strategy) GateOption {
	return func(g *Gate) {
		g.strategies = append(g.strategies, strategies...)
	}
}

// NewGate creates a Gate. sessions may be nil when no strategy is used for
// Login (token-only deployments).
func NewGate(sessions Regenerator, logger zerolog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		sessions: sessions,
		logger:   logger.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Strategies returns the strategy names in chain order.
func (g *Gate) Strategies() []string {
	names := make([]string, len(g.strategies))
	for i, s := range g.strategies {
		names[i] = s.Name()
	}
	return names
}

// Authenticate tries each strategy once, in order, and returns the first
// success. When none succeeds it returns the first failure, or
// ErrNoCredentials when no strategy found anything to check.
func (g *Gate) Authenticate(r *http.Request) (*Identity, error) {
	return g.authenticate(r, g.strategies)
}

func (g *Gate) authenticate(r *http.Request, strategies []Strategy) (*Identity, error) {
	var failure error
	for _, s := range strategies {
		id, err := s.Authenticate(r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if err != nil {
			if failure == nil {
				failure = fmt.Errorf("%s: %w", s.Name(), err)
			}
			continue
		}
		if id == nil {
			continue
		}
		out := *id
		out.Strategy = s.Name()
		out.AuthenticatedAt = g.now().UTC()
		return &out, nil
	}
	if failure != nil {
		return nil, failure
	}
	return nil, ErrNoCredentials
}

// Login authenticates r, regenerates the session id and stores the identity
// in the session. On failure the session is left untouched.
func (g *Gate) Login(r *http.Request) (*Identity, error) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return nil, ErrNoSession
	}

	id, err := g.Authenticate(r)
	if err != nil {
		g.logger.Info().Err(err).Msg("login rejected")
		return nil, err
	}

	if g.sessions != nil {
		g.sessions.Regenerate(r.Context(), sess)
	}
	if err := sess.Set(SessionKeyIdentity, id); err != nil {
		return nil, fmt.Errorf("auth: store identity: %w", err)
	}

	g.logger.Info().Str("user_id", id.ID).Str("strategy", id.Strategy).Msg("login")
	return id, nil
}

// Logout removes the identity from the session.
func (g *Gate) Logout(r *http.Request) error {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}
	if id, ok := FromContext(r.Context()); ok {
		g.logger.Info().Str("user_id", id.ID).Msg("logout")
	}
	sess.Delete(SessionKeyIdentity)
	return nil
}

// restore reads the identity from the session or, failing that, from the
// stateless strategies. It returns nil for anonymous requests.
func (g *Gate) restore(r *http.Request) *Identity {
	if sess := session.FromContext(r.Context()); sess != nil {
		var id Identity
		found, err := sess.Get(SessionKeyIdentity, &id)
		if err != nil {
			g.logger.Warn().Err(err).Msg("dropping unreadable session identity")
			sess.Delete(SessionKeyIdentity)
		} else if found {
			return &id
		}
	}

	var stateless []Strategy
	for _, s := range g.strategies {
		if st, ok := s.(Stateless); ok && st.Stateless() {
			stateless = append(stateless, s)
		}
	}
	if len(stateless) == 0 {
		return nil
	}

	id, err := g.authenticate(r, stateless)
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			g.logger.Debug().Err(err).Msg("request credentials rejected")
		}
		return nil
	}
	return id
}
