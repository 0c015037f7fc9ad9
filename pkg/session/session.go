package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state bound to one client.
// Values hold arbitrary JSON documents keyed by name.
type Session struct {
	mu sync.RWMutex

	// ID is the opaque session identifier sent (signed) in the cookie.
	ID string

	CreatedAt  time.Time
	LastAccess time.Time
	ExpiresAt  time.Time

	values    map[string]json.RawMessage
	isNew     bool
	destroyed bool
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:         newID(),
		CreatedAt:  now,
		LastAccess: now,
		values:     make(map[string]json.RawMessage),
		isNew:      true,
	}
}

func newID() string {
	return uuid.NewString()
}

// IsNew reports whether the session was created for this request.
func (s *Session) IsNew() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isNew
}

// Destroyed reports whether the session was invalidated during this request.
func (s *Session) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// Set stores v under key as JSON.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", key, err)
	}
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
	return nil
}

// Get decodes the value under key into dst. found is false when the key is
// absent, in which case dst is untouched.
func (s *Session) Get(key string, dst any) (found bool, err error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("session: decode %q: %w", key, err)
	}
	return true, nil
}

// Has reports whether key is set.
func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Keys returns the set keys in sorted order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every value.
func (s *Session) Clear() {
	s.mu.Lock()
	s.values = make(map[string]json.RawMessage)
	s.mu.Unlock()
}

type contextKey struct{}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by the Manager middleware, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}
