package server

import (
	"compress/flate"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/internal/dev"
	"github.com/delta94/cvmaker/pkg/middleware"
)

// Handler assembles the pipeline for the configured mode and registers the
// built-in and application routes.
func (a *App) Handler() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(
		middleware.Errors(ErrorHandler(a.logger)),
		middleware.Recover(),
	)

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.RequestLogger(a.logger),
	)
	if a.metrics != nil {
		r.Use(a.metrics.Middleware())
	}
	if a.cfg.Tracing.Enabled {
		r.Use(middleware.Tracing())
	}

	r.Use(a.coreStages()...)

	mode := a.cfg.Mode()
	if mode == config.ModeDevelopment {
		r.Use(dev.Assets(a.cfg.Dev.Dir))
	}

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Method(http.MethodPost, ReportClientErrorPath, a.reporter)
	r.Get(SitemapPath, Sitemap(a.cfg.SitemapPath()))

	if a.cfg.Metrics.Enabled && a.gatherer != nil {
		r.Method(http.MethodGet, a.cfg.Metrics.Path, promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	switch mode {
	case config.ModeDevelopment:
		if a.live != nil {
			r.Get(dev.ReloadPath, a.live.Server().HandleWebSocket)
			r.Get(dev.ClientScriptPath, dev.ClientScriptHandler)
		}
	default:
		static := Static(a.cfg.Static.Dir, a.cfg.Static.Prefix)
		r.Get(a.cfg.Static.Prefix+"*", static)
		r.Head(a.cfg.Static.Prefix+"*", static)
	}

	if a.routes != nil {
		if err := a.routes(a, r, a.cfg); err != nil {
			return nil, fmt.Errorf("server: register routes: %w", err)
		}
	}

	a.logger.Debug().Str("mode", mode.String()).Msg("pipeline assembled")
	return r, nil
}

// coreStages returns the fixed request stages between compression and
// authentication, in order.
func (a *App) coreStages() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.Compress(flate.DefaultCompression),
		middleware.SecurityHeaders(a.securityPolicy()),
		middleware.CookieParser(a.signer),
		middleware.MethodOverride(),
		middleware.BodyParser(a.cfg.Server.BodyLimit),
		a.sessions.Middleware(),
		a.gate.Middleware(),
	}
}

func (a *App) securityPolicy() middleware.SecurityPolicy {
	policy := middleware.DefaultSecurityPolicy()
	policy.HSTSMaxAge = a.cfg.Security.HSTSMaxAge
	policy.ContentSecurityPolicy = a.cfg.Security.ContentSecurityPolicy
	return policy
}
