package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := New()
	cfg.Session.Secret = "0123456789abcdef0123"
	return cfg
}

func TestNew(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultSessionName, cfg.Session.Name)
	assert.Equal(t, DefaultSessionMaxAge, cfg.Session.Cookie.MaxAge)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, "/public/", cfg.Static.Prefix)
	assert.Equal(t, ModeProduction, cfg.Mode())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cvmaker.yaml")
	yaml := `
port: 8080
env: staging
enable_analytics: true
features:
  templates: true
session:
  name: sid
  secret: file-secret-value-123
  store: sql
  clear_interval: 15m
  cookie:
    max_age: 2h
    same_site: Strict
database:
  url: postgres://localhost/cv
  user_session: sessions
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(LoadOptions{ConfigFile: path, EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.True(t, cfg.EnableAnalytics)
	assert.True(t, cfg.Features["templates"])
	assert.Equal(t, "sid", cfg.Session.Name)
	assert.Equal(t, StoreSQL, cfg.Session.Store)
	assert.Equal(t, 15*time.Minute, cfg.Session.ClearInterval)
	assert.Equal(t, 2*time.Hour, cfg.Session.Cookie.MaxAge)
	assert.Equal(t, "strict", cfg.Session.Cookie.SameSite)
	assert.Equal(t, "sessions", cfg.Database.UserSession)

	// Untouched keys keep their defaults.
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(1<<20), cfg.Server.BodyLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), EnvFiles: []string{}})
	assert.Error(t, err)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("APP_ENV", "development")
	t.Setenv("ENABLE_ANALYTICS", "true")
	t.Setenv("CVMAKER_SESSION_SECRET", "from-env")
	t.Setenv("CVMAKER_SESSION_COOKIE_MAX_AGE", "90m")

	cfg, err := Load(LoadOptions{EnvFiles: []string{}})
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, ModeDevelopment, cfg.Mode())
	assert.True(t, cfg.EnableAnalytics)
	assert.Equal(t, "from-env", cfg.Session.Secret)
	assert.Equal(t, 90*time.Minute, cfg.Session.Cookie.MaxAge)
	assert.Equal(t, "", cfg.Path())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CVMAKER_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CVMAKER_LOG_LEVEL") })

	cfg, err := Load(LoadOptions{EnvFiles: []string{envFile}})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"missing secret", func(c *Config) { c.Session.Secret = "" }, "session.secret"},
		{"short secret in production", func(c *Config) { c.Session.Secret = "short" }, "session.secret"},
		{"short secret in development", func(c *Config) {
			c.Session.Secret = "short"
			c.Env = DevelopmentEnv
		}, ""},
		{"zero max age", func(c *Config) { c.Session.Cookie.MaxAge = 0 }, "session.cookie.max_age"},
		{"zero clear interval", func(c *Config) { c.Session.ClearInterval = 0 }, "session.clear_interval"},
		{"bad cookie name", func(c *Config) { c.Session.Name = "a b" }, "session.name"},
		{"same site none without secure", func(c *Config) { c.Session.Cookie.SameSite = "none" }, "session.cookie.same_site"},
		{"unknown store", func(c *Config) { c.Session.Store = "mongo" }, "session.store"},
		{"sql without url", func(c *Config) { c.Session.Store = StoreSQL }, "database.url"},
		{"sql bad table", func(c *Config) {
			c.Session.Store = StoreSQL
			c.Database.URL = "postgres://x"
			c.Database.UserSession = "drop table;"
		}, "database.user_session"},
		{"production without manifest", func(c *Config) { c.Assets.Manifest = "" }, "assets.manifest"},
		{"bad fault policy", func(c *Config) { c.Faults.Policy = "restart" }, "faults.policy"},
		{"user without hash", func(c *Config) {
			c.Auth.Users = []UserConfig{{Username: "ada"}}
		}, "auth.users[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHelpers(t *testing.T) {
	cfg := validConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9000
	cfg.Paths.Root = "site"

	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
	assert.Equal(t, filepath.Join("site", "sitemap.xml"), cfg.SitemapPath())
	assert.False(t, cfg.IsRemoteManifest())

	cfg.Assets.Manifest = "s3://bucket/manifest.json"
	assert.True(t, cfg.IsRemoteManifest())
	assert.Equal(t, "development", ModeDevelopment.String())
}
