package session

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps session documents in process memory. Documents are lost
// on restart and are not shared between instances, so it suits development
// and single-instance deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryDoc // nil once closed
	stop chan struct{}
	now  func() time.Time
	sup  Supervisor
}

type memoryDoc struct {
	body    []byte
	expires time.Time
}

func (d memoryDoc) live(now time.Time) bool {
	return now.Before(d.expires)
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*memoryOptions)

type memoryOptions struct {
	sweepEvery time.Duration
	supervisor Supervisor
	now        func() time.Time
}

// WithCleanupInterval sets how often expired documents are swept.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(o *memoryOptions) { o.sweepEvery = d }
}

// WithMemorySupervisor runs the sweep loop under s.
func WithMemorySupervisor(s Supervisor) MemoryStoreOption {
	return func(o *memoryOptions) { o.supervisor = s }
}

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(o *memoryOptions) { o.now = now }
}

// NewMemoryStore creates a MemoryStore and starts its sweep loop. Close stops
// the loop.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	o := memoryOptions{
		sweepEvery: time.Minute,
		supervisor: plainSupervisor{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &MemoryStore{
		docs: make(map[string]memoryDoc),
		stop: make(chan struct{}),
		now:  o.now,
		sup:  o.supervisor,
	}
	o.supervisor.Go("session_memory_cleanup", func() { m.sweepLoop(o.sweepEvery) })
	return m
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		return ErrStoreClosed
	}
	m.docs[sessionID] = memoryDoc{body: bytes.Clone(data), expires: expiresAt}
	return nil
}

// Load returns a copy of the document. Expired documents read as missing even
// before the sweep removes them.
func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.docs == nil {
		return nil, ErrStoreClosed
	}
	doc, ok := m.docs[sessionID]
	if !ok || !doc.live(m.now()) {
		return nil, nil
	}
	return bytes.Clone(doc.body), nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		return ErrStoreClosed
	}
	delete(m.docs, sessionID)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.docs == nil {
		return ErrStoreClosed
	}
	return nil
}

// Close drops every document and stops the sweep loop. It is idempotent.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		return nil
	}
	m.docs = nil
	close(m.stop)
	return nil
}

// Count returns the number of documents held, expired or not.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryStore) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.sup.Do("session_memory_sweep", m.sweep)
		}
	}
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, doc := range m.docs {
		if !doc.live(now) {
			delete(m.docs, id)
		}
	}
}
