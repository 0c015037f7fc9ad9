package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/pkg/cookie"
	"github.com/delta94/cvmaker/pkg/middleware"
)

// Store operations reported to OnStoreError.
const (
	OpLoad   = "load"
	OpSave   = "save"
	OpDelete = "delete"
)

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// CookieName is the name of the session id cookie.
	CookieName string

	// MaxAge is the cookie lifetime and the document TTL, refreshed on every save.
	MaxAge time.Duration

	// Cookie holds the remaining cookie attributes. HttpOnly is always set.
	Cookie cookie.Options

	// OnStoreError is called for every store failure the manager absorbs.
	OnStoreError func(op string, err error)

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Manager loads and saves sessions around each request.
type Manager struct {
	store        Store
	signer       *cookie.Signer
	name         string
	maxAge       time.Duration
	cookieOpts   cookie.Options
	onStoreError func(op string, err error)
	now          func() time.Time
	logger       zerolog.Logger
}

// NewManager creates a Manager over store. Cookies are signed with signer.
func NewManager(store Store, signer *cookie.Signer, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "cvmaker.sid"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnStoreError == nil {
		cfg.OnStoreError = func(string, error) {}
	}

	opts := cfg.Cookie
	opts.HTTPOnly = true
	opts.MaxAge = cfg.MaxAge

	return &Manager{
		store:        store,
		signer:       signer,
		name:         cfg.CookieName,
		maxAge:       cfg.MaxAge,
		cookieOpts:   opts,
		onStoreError: cfg.OnStoreError,
		now:          cfg.Now,
		logger:       logger,
	}
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string {
	return m.name
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session named by rawCookie, the signed cookie value.
// An empty, unsigned or tampered cookie, a missing or unreadable document,
// and a store failure all yield a new empty session. Load never fails.
func (m *Manager) Load(ctx context.Context, rawCookie string) *Session {
	now := m.now()
	if rawCookie == "" {
		return newSession(now)
	}

	id, ok := m.signer.Unsign(rawCookie)
	if !ok {
		m.logger.Debug().Msg("session cookie signature rejected")
		return newSession(now)
	}

	data, err := m.store.Load(ctx, id)
	if err != nil {
		m.storeError(OpLoad, id, err)
		return newSession(now)
	}
	if data == nil {
		return newSession(now)
	}

	sess, err := decode(id, data)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable session document")
		return newSession(now)
	}
	sess.LastAccess = now
	return sess
}

// Save writes sess back with a refreshed expiry and issues the signed cookie.
// A store failure is logged; the cookie is issued regardless. Destroyed
// sessions are not saved.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) {
	if sess.Destroyed() {
		return
	}

	now := m.now()
	sess.mu.Lock()
	sess.LastAccess = now
	sess.ExpiresAt = now.Add(m.maxAge)
	expiresAt := sess.ExpiresAt
	sess.mu.Unlock()

	data, err := encode(sess)
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", sess.ID).Msg("session encode failed")
	} else if err := m.store.Save(ctx, sess.ID, data, expiresAt); err != nil {
		m.storeError(OpSave, sess.ID, err)
	}

	http.SetCookie(w, m.cookieOpts.Cookie(m.name, m.signer.Sign(sess.ID), now))
}

// Regenerate moves sess to a fresh id, keeping its values, and deletes the
// old document. Called on login to prevent session fixation.
func (m *Manager) Regenerate(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	oldID := sess.ID
	sess.ID = newID()
	sess.CreatedAt = m.now()
	sess.mu.Unlock()

	if err := m.store.Delete(ctx, oldID); err != nil {
		m.storeError(OpDelete, oldID, err)
	}
}

// Destroy deletes the session document and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) {
	sess.mu.Lock()
	sess.destroyed = true
	sess.values = make(map[string]json.RawMessage)
	id := sess.ID
	sess.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		m.storeError(OpDelete, id, err)
	}
	http.SetCookie(w, m.cookieOpts.Expired(m.name))
}

func (m *Manager) storeError(op, id string, err error) {
	if errors.Is(err, context.Canceled) {
		m.logger.Debug().Err(err).Str("op", op).Msg("session store call canceled")
	} else {
		m.logger.Warn().Err(err).Str("op", op).Str("session_id", id).Msg("session store unavailable, continuing without persistence")
	}
	m.onStoreError(op, err)
}

// Middleware loads the session before next runs and saves it right before
// the response is first written, or after next returns if it wrote nothing.
// A panicking handler still gets its session saved before the panic moves on.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := middleware.Cookie(r, m.name)
			sess := m.Load(r.Context(), raw)

			ctx := WithSession(r.Context(), sess)
			sw := &saveWriter{ResponseWriter: w}
			sw.save = func() { m.Save(ctx, w, sess) }

			defer sw.commit()
			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// saveWriter runs save exactly once before headers are sent.
type saveWriter struct {
	http.ResponseWriter
	save func()
	once sync.Once
}

func (w *saveWriter) commit() {
	w.once.Do(w.save)
}

func (w *saveWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *saveWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.commit()
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (w *saveWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
