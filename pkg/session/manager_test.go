package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta94/cvmaker/pkg/cookie"
)

const testCookie = "test.sid"

func newTestManager(t *testing.T, store Store, clock *offsetClock, onErr func(string, error)) *Manager {
	t.Helper()
	signer, err := cookie.NewSigner("test-secret")
	require.NoError(t, err)
	return NewManager(store, signer, ManagerConfig{
		CookieName:   testCookie,
		MaxAge:       time.Hour,
		OnStoreError: onErr,
		Now:          clock.Now,
	}, zerolog.Nop())
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", testCookie)
	return nil
}

func serve(h http.Handler, c *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestManagerIssuesCookieForNewSession(t *testing.T) {
	clock := &offsetClock{}
	mgr := newTestManager(t, NewMemoryStore(WithMemoryClock(clock.Now)), clock, nil)

	var sess *Session
	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess = FromContext(r.Context())
	}))
	rec := serve(h, nil)

	require.NotNil(t, sess)
	assert.True(t, sess.IsNew())
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.True(t, strings.HasPrefix(c.Value, "s:"+sess.ID+"."))
}

func TestManagerRoundTrip(t *testing.T) {
	clock := &offsetClock{}
	mgr := newTestManager(t, NewMemoryStore(WithMemoryClock(clock.Now)), clock, nil)

	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		var n int
		_, err := sess.Get("visits", &n)
		require.NoError(t, err)
		require.NoError(t, sess.Set("visits", n+1))
		_, _ = w.Write([]byte("ok"))
	}))

	first := serve(h, nil)
	c := sessionCookie(t, first)

	second := serve(h, c)
	assert.Equal(t, c.Value, sessionCookie(t, second).Value)

	var visits int
	sess := mgr.Load(context.Background(), c.Value)
	found, err := sess.Get("visits", &visits)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, visits)
	assert.False(t, sess.IsNew())
}

func TestManagerRejectsInvalidCookies(t *testing.T) {
	clock := &offsetClock{}
	store := NewMemoryStore(WithMemoryClock(clock.Now))
	mgr := newTestManager(t, store, clock, nil)
	ctx := context.Background()

	known := mgr.Load(ctx, "")
	require.NoError(t, known.Set("user", "ada"))
	mgr.Save(ctx, httptest.NewRecorder(), known)

	other, err := cookie.NewSigner("other-secret")
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"unsigned":       known.ID,
		"tampered":       mgr.signer.Sign(known.ID) + "x",
		"foreign secret": other.Sign(known.ID),
		"garbage":        "s:%%%.",
		"unknown id":     mgr.signer.Sign("00000000-0000-0000-0000-000000000000"),
	} {
		t.Run(name, func(t *testing.T) {
			sess := mgr.Load(ctx, raw)
			assert.True(t, sess.IsNew())
			assert.NotEqual(t, known.ID, sess.ID)
			assert.Empty(t, sess.Keys())
		})
	}
}

func TestManagerExpiry(t *testing.T) {
	clock := &offsetClock{}
	mgr := newTestManager(t, NewMemoryStore(WithMemoryClock(clock.Now)), clock, nil)
	ctx := context.Background()

	sess := mgr.Load(ctx, "")
	require.NoError(t, sess.Set("k", 1))
	rec := httptest.NewRecorder()
	mgr.Save(ctx, rec, sess)
	raw := sessionCookie(t, rec).Value

	clock.Advance(30 * time.Minute)
	refreshed := mgr.Load(ctx, raw)
	require.False(t, refreshed.IsNew())
	mgr.Save(ctx, httptest.NewRecorder(), refreshed)

	// The save above pushed expiry out; 45 more minutes is still within it.
	clock.Advance(45 * time.Minute)
	require.False(t, mgr.Load(ctx, raw).IsNew())

	clock.Advance(2 * time.Hour)
	assert.True(t, mgr.Load(ctx, raw).IsNew())
}

// failingStore fails every operation.
type failingStore struct{ err error }

func (s failingStore) Save(context.Context, string, []byte, time.Time) error { return s.err }
func (s failingStore) Load(context.Context, string) ([]byte, error)          { return nil, s.err }
func (s failingStore) Delete(context.Context, string) error                  { return s.err }
func (s failingStore) Ping(context.Context) error                            { return s.err }
func (s failingStore) Close() error                                          { return nil }

func TestManagerDegradesWhenStoreFails(t *testing.T) {
	var mu sync.Mutex
	var ops []string
	onErr := func(op string, err error) {
		mu.Lock()
		ops = append(ops, op)
		mu.Unlock()
	}

	clock := &offsetClock{}
	mgr := newTestManager(t, failingStore{err: errors.New("connection refused")}, clock, onErr)

	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		require.NotNil(t, sess)
		require.NoError(t, sess.Set("k", "v"))
		_, _ = w.Write([]byte("rendered"))
	}))

	stale := &http.Cookie{Name: testCookie, Value: mgr.signer.Sign("some-id")}
	rec := serve(h, stale)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rendered", rec.Body.String())
	sessionCookie(t, rec)
	assert.Equal(t, []string{OpLoad, OpSave}, ops)
}

func TestManagerSavesBeforeFirstWrite(t *testing.T) {
	clock := &offsetClock{}
	store := NewMemoryStore(WithMemoryClock(clock.Now))
	mgr := newTestManager(t, store, clock, nil)

	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		// Values set after the headers are sent are not persisted.
		require.NoError(t, FromContext(r.Context()).Set("late", true))
	}))
	rec := serve(h, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	c := sessionCookie(t, rec)
	assert.Equal(t, 1, store.Count())
	assert.False(t, mgr.Load(context.Background(), c.Value).Has("late"))
}

func TestManagerRegenerate(t *testing.T) {
	clock := &offsetClock{}
	store := NewMemoryStore(WithMemoryClock(clock.Now))
	mgr := newTestManager(t, store, clock, nil)
	ctx := context.Background()

	sess := mgr.Load(ctx, "")
	require.NoError(t, sess.Set("cart", []string{"a"}))
	mgr.Save(ctx, httptest.NewRecorder(), sess)
	oldID := sess.ID

	mgr.Regenerate(ctx, sess)
	assert.NotEqual(t, oldID, sess.ID)
	assert.True(t, sess.Has("cart"))

	data, err := store.Load(ctx, oldID)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestManagerDestroy(t *testing.T) {
	clock := &offsetClock{}
	store := NewMemoryStore(WithMemoryClock(clock.Now))
	mgr := newTestManager(t, store, clock, nil)

	var id string
	h := mgr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := FromContext(r.Context())
		id = sess.ID
		mgr.Destroy(r.Context(), w, sess)
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := serve(h, nil)

	c := sessionCookie(t, rec)
	assert.Equal(t, -1, c.MaxAge)
	assert.Empty(t, c.Value)
	assert.Len(t, rec.Result().Cookies(), 1)

	data, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSessionValues(t *testing.T) {
	sess := newSession(time.Now())

	require.NoError(t, sess.Set("b", map[string]int{"x": 1}))
	require.NoError(t, sess.Set("a", "hello"))
	assert.Equal(t, []string{"a", "b"}, sess.Keys())

	var s string
	found, err := sess.Get("a", &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", s)

	var n int
	found, err = sess.Get("a", &n)
	assert.True(t, found)
	assert.Error(t, err)

	found, err = sess.Get("missing", &s)
	assert.False(t, found)
	assert.NoError(t, err)

	assert.Error(t, sess.Set("bad", make(chan int)))

	sess.Delete("a")
	assert.False(t, sess.Has("a"))
	sess.Clear()
	assert.Empty(t, sess.Keys())
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	_, err := decode("id", []byte(`{"version":99}`))
	assert.Error(t, err)

	_, err = decode("id", []byte(`not json`))
	assert.Error(t, err)

	sess, err := decode("id", []byte(`{"version":1}`))
	require.NoError(t, err)
	assert.Empty(t, sess.Keys())
}
