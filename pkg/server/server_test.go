package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta94/cvmaker/internal/config"
)

func TestServeAndShutdown(t *testing.T) {
	generated := filepath.Join(t.TempDir(), "tools", "generated_files")
	f := newFixture(t, nil, func(cfg *config.Config, _ *Options) {
		cfg.Paths.GeneratedFiles = generated
		cfg.Server.ShutdownTimeout = time.Second
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/nowhere"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(url)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, NotFoundMessage, string(body))

	assert.DirExists(t, generated)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.NoError(t, f.app.Shutdown(context.Background()), "second shutdown is a no-op")

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, f.app.Serve(context.Background(), ln2), ErrServerClosed)
}
