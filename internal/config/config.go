package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name of the configuration file.
	ConfigFileName = "cvmaker"

	// EnvPrefix prefixes every environment variable mapped onto a key.
	EnvPrefix = "CVMAKER"

	// DefaultPort is the default listening port.
	DefaultPort = 3000

	// DevelopmentEnv is the environment tag that selects the development assembly.
	DevelopmentEnv = "development"

	// DefaultSessionName is the default session cookie name.
	DefaultSessionName = "cvmaker.sid"

	// DefaultSessionMaxAge is the default cookie max age and document TTL.
	DefaultSessionMaxAge = 30 * 24 * time.Hour

	// DefaultClearInterval is the default interval between expired-session sweeps.
	DefaultClearInterval = time.Hour
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Mode selects one of the two pipeline assemblies.
type Mode int

const (
	// ModeProduction serves fingerprinted bundles resolved through the manifest.
	ModeProduction Mode = iota
	// ModeDevelopment serves unbundled assets with live reload.
	ModeDevelopment
)

func (m Mode) String() string {
	if m == ModeDevelopment {
		return "development"
	}
	return "production"
}

// Config is the complete server configuration.
type Config struct {
	// Port is the listening port.
	Port int `mapstructure:"port"`

	// Host is the listening host. Empty listens on all interfaces.
	Host string `mapstructure:"host"`

	// Env is the runtime environment tag. "development" selects ModeDevelopment;
	// any other value is passed through to the page as the build env.
	Env string `mapstructure:"env"`

	// EnableAnalytics is forwarded to the render shell.
	EnableAnalytics bool `mapstructure:"enable_analytics"`

	// Features are static feature flags forwarded to the render shell.
	Features map[string]bool `mapstructure:"features"`

	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Static   StaticConfig   `mapstructure:"static"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Render   RenderConfig   `mapstructure:"render"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Faults   FaultsConfig   `mapstructure:"faults"`
	Dev      DevConfig      `mapstructure:"dev"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SessionConfig contains session cookie and store settings.
type SessionConfig struct {
	// Name is the session cookie name.
	Name string `mapstructure:"name"`

	// Secret signs the session id cookie.
	Secret string `mapstructure:"secret"`

	// Store selects the backend: memory, redis or sql.
	Store string `mapstructure:"store"`

	// ClearInterval is how often expired documents are swept.
	ClearInterval time.Duration `mapstructure:"clear_interval"`

	Cookie CookieConfig `mapstructure:"cookie"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// CookieConfig contains session cookie attributes.
type CookieConfig struct {
	// MaxAge is both the cookie lifetime and the stored document TTL.
	MaxAge time.Duration `mapstructure:"max_age"`

	// SameSite is lax, strict or none.
	SameSite string `mapstructure:"same_site"`

	// Secure marks the cookie Secure.
	Secure bool `mapstructure:"secure"`

	// Domain sets the cookie domain. Empty means host-only.
	Domain string `mapstructure:"domain"`
}

// RedisConfig contains settings for the Redis session store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DatabaseConfig contains the SQL database settings.
type DatabaseConfig struct {
	// Driver is the database/sql driver name.
	Driver string `mapstructure:"driver"`

	// URL is the connection string.
	URL string `mapstructure:"url"`

	// UserSession is the table holding session documents.
	UserSession string `mapstructure:"user_session"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig contains authentication strategy settings.
type AuthConfig struct {
	// TokenSecret enables the bearer token strategy when set.
	TokenSecret string `mapstructure:"token_secret"`

	// TokenIssuer is the expected "iss" claim. Empty accepts any issuer.
	TokenIssuer string `mapstructure:"token_issuer"`

	// Users is a static account list for the password strategy.
	Users []UserConfig `mapstructure:"users"`
}

// UserConfig is a static account entry.
type UserConfig struct {
	ID           string   `mapstructure:"id"`
	Username     string   `mapstructure:"username"`
	PasswordHash string   `mapstructure:"password_hash"`
	Name         string   `mapstructure:"name"`
	Email        string   `mapstructure:"email"`
	Roles        []string `mapstructure:"roles"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	// Root is the directory sitemap.xml is served from.
	Root string `mapstructure:"root"`

	// GeneratedFiles is created at startup for generated documents.
	GeneratedFiles string `mapstructure:"generated_files"`
}

// StaticConfig contains production static file settings.
type StaticConfig struct {
	// Dir is the directory containing built bundles.
	Dir string `mapstructure:"dir"`

	// Prefix is the URL prefix static files are served under.
	Prefix string `mapstructure:"prefix"`
}

// AssetsConfig contains build manifest settings.
type AssetsConfig struct {
	// Manifest is a local path or an s3://bucket/key URL.
	Manifest string `mapstructure:"manifest"`

	// Required lists the bundle keys that must be present in the manifest.
	Required []string `mapstructure:"required"`

	// S3Region and S3Endpoint configure remote manifest loading.
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
}

// RenderConfig contains render shell settings.
type RenderConfig struct {
	// Template overrides the embedded page template.
	Template string `mapstructure:"template"`

	// Title is the default document title.
	Title string `mapstructure:"title"`
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// BodyLimit caps parsed request bodies in bytes.
	BodyLimit int64 `mapstructure:"body_limit"`

	// ClientErrorLimit caps client error report bodies in bytes.
	ClientErrorLimit int64 `mapstructure:"client_error_limit"`

	// ClientErrorRate is the sustained per-client report rate per second.
	// Zero disables limiting, so every report is logged.
	ClientErrorRate float64 `mapstructure:"client_error_rate"`

	// ClientErrorBurst is the per-client report burst.
	ClientErrorBurst int `mapstructure:"client_error_burst"`
}

// SecurityConfig contains the static security header policy.
type SecurityConfig struct {
	// HSTSMaxAge enables Strict-Transport-Security when positive.
	HSTSMaxAge time.Duration `mapstructure:"hsts_max_age"`

	// ContentSecurityPolicy is sent verbatim when set.
	ContentSecurityPolicy string `mapstructure:"content_security_policy"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FaultsConfig contains the background fault policy.
type FaultsConfig struct {
	// Policy is "continue" (log and keep running) or "exit".
	Policy string `mapstructure:"policy"`
}

// DevConfig contains development assembly settings.
type DevConfig struct {
	// Dir holds the unbundled client assets served in development.
	Dir string `mapstructure:"dir"`

	// Watch lists directories whose changes trigger a browser reload.
	Watch []string `mapstructure:"watch"`

	// LiveReload enables the reload websocket.
	LiveReload bool `mapstructure:"live_reload"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty, cvmaker.yaml is
	// searched for in the working directory and it is not an error if absent.
	ConfigFile string

	// EnvFiles are loaded before environment binding. Defaults to .env, .env.local.
	EnvFiles []string
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Port:     DefaultPort,
		Env:      "production",
		Features: map[string]bool{},
		Session: SessionConfig{
			Name:          DefaultSessionName,
			Store:         StoreMemory,
			ClearInterval: DefaultClearInterval,
			Cookie: CookieConfig{
				MaxAge:   DefaultSessionMaxAge,
				SameSite: "lax",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "cvmaker:sess:",
			},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			UserSession:     "user_sessions",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Paths: PathsConfig{
			Root:           ".",
			GeneratedFiles: "tools/generated_files",
		},
		Static: StaticConfig{
			Dir:    "dist",
			Prefix: "/public/",
		},
		Assets: AssetsConfig{
			Manifest: "dist/manifest.json",
			Required: []string{"main.css", "main.js", "vendor.js"},
		},
		Render: RenderConfig{
			Title: "CV Maker",
		},
		Server: ServerConfig{
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			BodyLimit:        1 << 20,
			ClientErrorLimit: 16 << 10,
			ClientErrorRate:  0,
			ClientErrorBurst: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Faults: FaultsConfig{
			Policy: "continue",
		},
		Dev: DevConfig{
			Dir:        "web/dist-dev",
			Watch:      []string{"web"},
			LiveReload: true,
		},
	}
}

// Load resolves configuration from defaults, the config file, .env files and
// the environment. The result is not validated.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	for _, f := range envFiles {
		// .env files are optional
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v, New())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range bareEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.configPath = v.ConfigFileUsed()
	cfg.applyDefaults()
	return cfg, nil
}

// bareEnv maps keys to the unprefixed variables a deployment platform sets.
var bareEnv = map[string][]string{
	"port":             {"CVMAKER_PORT", "PORT"},
	"env":              {"CVMAKER_ENV", "APP_ENV"},
	"enable_analytics": {"CVMAKER_ENABLE_ANALYTICS", "ENABLE_ANALYTICS"},
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("port", d.Port)
	v.SetDefault("host", d.Host)
	v.SetDefault("env", d.Env)
	v.SetDefault("enable_analytics", d.EnableAnalytics)

	v.SetDefault("session.name", d.Session.Name)
	v.SetDefault("session.secret", d.Session.Secret)
	v.SetDefault("session.store", d.Session.Store)
	v.SetDefault("session.clear_interval", d.Session.ClearInterval)
	v.SetDefault("session.cookie.max_age", d.Session.Cookie.MaxAge)
	v.SetDefault("session.cookie.same_site", d.Session.Cookie.SameSite)
	v.SetDefault("session.cookie.secure", d.Session.Cookie.Secure)
	v.SetDefault("session.cookie.domain", d.Session.Cookie.Domain)
	v.SetDefault("session.redis.addr", d.Session.Redis.Addr)
	v.SetDefault("session.redis.password", d.Session.Redis.Password)
	v.SetDefault("session.redis.db", d.Session.Redis.DB)
	v.SetDefault("session.redis.prefix", d.Session.Redis.Prefix)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.user_session", d.Database.UserSession)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	v.SetDefault("auth.token_secret", d.Auth.TokenSecret)
	v.SetDefault("auth.token_issuer", d.Auth.TokenIssuer)

	v.SetDefault("paths.root", d.Paths.Root)
	v.SetDefault("paths.generated_files", d.Paths.GeneratedFiles)
	v.SetDefault("static.dir", d.Static.Dir)
	v.SetDefault("static.prefix", d.Static.Prefix)
	v.SetDefault("assets.manifest", d.Assets.Manifest)
	v.SetDefault("assets.required", d.Assets.Required)
	v.SetDefault("assets.s3_region", d.Assets.S3Region)
	v.SetDefault("assets.s3_endpoint", d.Assets.S3Endpoint)
	v.SetDefault("render.template", d.Render.Template)
	v.SetDefault("render.title", d.Render.Title)

	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.client_error_limit", d.Server.ClientErrorLimit)
	v.SetDefault("server.client_error_rate", d.Server.ClientErrorRate)
	v.SetDefault("server.client_error_burst", d.Server.ClientErrorBurst)

	v.SetDefault("security.hsts_max_age", d.Security.HSTSMaxAge)
	v.SetDefault("security.content_security_policy", d.Security.ContentSecurityPolicy)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("faults.policy", d.Faults.Policy)

	v.SetDefault("dev.dir", d.Dev.Dir)
	v.SetDefault("dev.watch", d.Dev.Watch)
	v.SetDefault("dev.live_reload", d.Dev.LiveReload)
}

// applyDefaults fills in values that decoding may have zeroed.
func (c *Config) applyDefaults() {
	if c.Features == nil {
		c.Features = map[string]bool{}
	}
	if c.Env == "" {
		c.Env = "production"
	}
	if c.Paths.Root == "" {
		c.Paths.Root = "."
	}
	if c.Static.Prefix == "" {
		c.Static.Prefix = "/public/"
	}
	if !strings.HasSuffix(c.Static.Prefix, "/") {
		c.Static.Prefix += "/"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	c.Session.Store = strings.ToLower(c.Session.Store)
	c.Session.Cookie.SameSite = strings.ToLower(c.Session.Cookie.SameSite)
	c.Faults.Policy = strings.ToLower(c.Faults.Policy)
}

// Mode returns the assembly selected by the environment tag.
func (c *Config) Mode() Mode {
	if c.Env == DevelopmentEnv {
		return ModeDevelopment
	}
	return ModeProduction
}

// Path returns the path the config was loaded from, or "" when defaults only.
func (c *Config) Path() string {
	return c.configPath
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SitemapPath returns the path of the served sitemap file.
func (c *Config) SitemapPath() string {
	return filepath.Join(c.Paths.Root, "sitemap.xml")
}

// IsRemoteManifest reports whether the manifest is loaded from S3.
func (c *Config) IsRemoteManifest() bool {
	return strings.HasPrefix(c.Assets.Manifest, "s3://")
}
