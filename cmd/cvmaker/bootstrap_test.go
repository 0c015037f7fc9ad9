package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/internal/dev"
	"github.com/delta94/cvmaker/pkg/assets"
	"github.com/delta94/cvmaker/pkg/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Session.Secret = "bootstrap-test-secret-0123456789"
	cfg.Paths.Root = t.TempDir()
	cfg.Static.Dir = t.TempDir()
	cfg.Dev.Dir = t.TempDir()
	cfg.Dev.Watch = []string{t.TempDir()}
	return cfg
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func serve(t *testing.T, svc *services, path string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := svc.app.Handler()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBootstrapDevelopment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = config.DevelopmentEnv

	svc, err := bootstrap(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	rec := serve(t, svc, dev.ClientScriptPath)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, svc, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `/main.js`)
	assert.Contains(t, rec.Body.String(), dev.ClientScriptPath)
}

func TestBootstrapProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assets.Manifest = writeManifest(t, `{
		"main.css": "main.1a2b3c4d.css",
		"main.js": "main.5e6f7a8b.js",
		"vendor.js": "vendor.9c0d1e2f.js"
	}`)

	svc, err := bootstrap(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	rec := serve(t, svc, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/public/main.1a2b3c4d.css")
	assert.Contains(t, body, "/public/main.5e6f7a8b.js")
	assert.Contains(t, body, "/public/vendor.9c0d1e2f.js")
	assert.NotContains(t, body, dev.ClientScriptPath)

	rec = serve(t, svc, cfg.Metrics.Path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBootstrapFailures(t *testing.T) {
	t.Run("missing bundle", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Assets.Manifest = writeManifest(t, `{"main.js": "main.5e6f7a8b.js"}`)

		_, err := bootstrap(context.Background(), cfg, zerolog.Nop())
		require.ErrorIs(t, err, assets.ErrMissingEntry)
	})

	t.Run("missing manifest", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Assets.Manifest = filepath.Join(t.TempDir(), "absent.json")

		_, err := bootstrap(context.Background(), cfg, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Env = config.DevelopmentEnv
		cfg.Session.Store = "mongo"

		_, err := bootstrap(context.Background(), cfg, zerolog.Nop())
		var initErr *session.StoreInitError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, "mongo", initErr.Backend)
	})

	t.Run("unknown fault policy", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Env = config.DevelopmentEnv
		cfg.Faults.Policy = "panic"

		_, err := bootstrap(context.Background(), cfg, zerolog.Nop())
		require.Error(t, err)
	})
}

func TestNewGateWithoutTokenSecret(t *testing.T) {
	cfg := testConfig(t)
	gate, tokens, err := newGate(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, gate)
	assert.Nil(t, tokens)

	cfg.Auth.TokenSecret = "token-secret"
	_, tokens, err = newGate(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, tokens)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestCheckConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cvmaker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 70000\nsession:\n  secret: check-config-secret-0123\n"), 0o644))

	cmd := rootCmd()
	cmd.SetArgs([]string{"check-config", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
