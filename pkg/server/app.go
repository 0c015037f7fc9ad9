package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/internal/database"
	"github.com/delta94/cvmaker/internal/dev"
	"github.com/delta94/cvmaker/pkg/auth"
	"github.com/delta94/cvmaker/pkg/cookie"
	"github.com/delta94/cvmaker/pkg/faults"
	"github.com/delta94/cvmaker/pkg/middleware"
	"github.com/delta94/cvmaker/pkg/render"
	"github.com/delta94/cvmaker/pkg/session"
)

// Routes registers application routes on r. It is called once while the
// pipeline is assembled; an error aborts startup.
type Routes func(app *App, r chi.Router, cfg *config.Config) error

// Options carries the collaborators built during startup.
type Options struct {
	Logger zerolog.Logger

	// Signer verifies signed cookies in the cookie parsing stage.
	Signer *cookie.Signer

	Sessions *session.Manager
	Gate     *auth.Gate
	Shell    *render.Shell

	// DB is optional and exposed to routes.
	DB *database.Handle

	// Metrics and Gatherer enable instrumentation and the metrics endpoint.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer

	// Guard supervises background work. Defaults to a continue policy.
	Guard *faults.Guard

	// LiveReload is mounted in the development assembly when set.
	LiveReload *dev.LiveReload

	Routes Routes
}

// App is the assembled application.
type App struct {
	cfg      *config.Config
	logger   zerolog.Logger
	signer   *cookie.Signer
	sessions *session.Manager
	gate     *auth.Gate
	shell    *render.Shell
	db       *database.Handle
	metrics  *middleware.Metrics
	gatherer prometheus.Gatherer
	guard    *faults.Guard
	live     *dev.LiveReload
	routes   Routes
	reporter *Reporter

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// New validates the collaborators and creates an App. Nothing is started.
func New(cfg *config.Config, opts Options) (*App, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%w: config", ErrMissingDependency)
	case opts.Signer == nil:
		return nil, fmt.Errorf("%w: cookie signer", ErrMissingDependency)
	case opts.Sessions == nil:
		return nil, fmt.Errorf("%w: session manager", ErrMissingDependency)
	case opts.Gate == nil:
		return nil, fmt.Errorf("%w: auth gate", ErrMissingDependency)
	case opts.Shell == nil:
		return nil, fmt.Errorf("%w: render shell", ErrMissingDependency)
	}

	logger := opts.Logger.With().Str("component", "server").Logger()
	guard := opts.Guard
	if guard == nil {
		guard = faults.NewGuard(faults.Continue, logger)
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		signer:   opts.Signer,
		sessions: opts.Sessions,
		gate:     opts.Gate,
		shell:    opts.Shell,
		db:       opts.DB,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		guard:    guard,
		live:     opts.LiveReload,
		routes:   opts.Routes,
	}

	reporterCfg := ReporterConfig{
		Limit: cfg.Server.ClientErrorLimit,
		Rate:  cfg.Server.ClientErrorRate,
		Burst: cfg.Server.ClientErrorBurst,
	}
	if opts.Metrics != nil {
		reporterCfg.OnReport = opts.Metrics.ClientErrorReport
	}
	app.reporter = NewReporter(reporterCfg, opts.Logger)
	return app, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the server logger.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// DB returns the database pool, or nil when no database is configured.
func (a *App) DB() *sqlx.DB {
	return a.db.DB()
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Gate returns the authentication gate.
func (a *App) Gate() *auth.Gate {
	return a.gate
}

// Shell returns the render shell.
func (a *App) Shell() *render.Shell {
	return a.shell
}

// Guard returns the background task supervisor.
func (a *App) Guard() *faults.Guard {
	return a.guard
}

// Render writes the page shell with state. A render failure goes to the
// error fallback; nothing partial is written.
func (a *App) Render(w http.ResponseWriter, r *http.Request, state any) {
	if err := a.shell.Render(w, state); err != nil {
		middleware.Fail(w, r, fmt.Errorf("render shell: %w", err))
	}
}
