package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store defines the interface for session persistence backends.
// Implementations must be safe for concurrent use. Concurrent saves of the
// same id are last-write-wins.
type Store interface {
	// Save persists the session document, overwriting any existing one.
	// The document becomes unreachable after expiresAt.
	Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error

	// Load retrieves a session document by ID.
	// Returns (nil, nil) if the session doesn't exist or has expired.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("session: store is closed")

// StoreInitError reports that a store backend could not be opened.
type StoreInitError struct {
	Backend string
	Err     error
}

func (e *StoreInitError) Error() string {
	return fmt.Sprintf("session: init %s store: %v", e.Backend, e.Err)
}

func (e *StoreInitError) Unwrap() error {
	return e.Err
}

// Supervisor runs background work for stores. faults.Guard satisfies it.
type Supervisor interface {
	// Go runs fn in a new goroutine.
	Go(name string, fn func())
	// Do runs fn synchronously.
	Do(name string, fn func())
}

type plainSupervisor struct{}

func (plainSupervisor) Go(_ string, fn func()) { go fn() }
func (plainSupervisor) Do(_ string, fn func()) { fn() }
