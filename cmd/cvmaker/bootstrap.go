package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/internal/database"
	"github.com/delta94/cvmaker/internal/dev"
	"github.com/delta94/cvmaker/internal/routes"
	"github.com/delta94/cvmaker/pkg/assets"
	"github.com/delta94/cvmaker/pkg/auth"
	"github.com/delta94/cvmaker/pkg/cookie"
	"github.com/delta94/cvmaker/pkg/faults"
	"github.com/delta94/cvmaker/pkg/middleware"
	"github.com/delta94/cvmaker/pkg/render"
	"github.com/delta94/cvmaker/pkg/server"
	"github.com/delta94/cvmaker/pkg/session"
)

// services holds everything bootstrap started that must be released on exit.
type services struct {
	app      *server.App
	store    session.Store
	db       *database.Handle
	guard    *faults.Guard
	registry *prometheus.Registry
}

// Close releases the session store and the database pool.
func (rt *services) Close() error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	errs = append(errs, rt.db.Close())
	return errors.Join(errs...)
}

// bootstrap builds the application from a validated configuration. Any
// failure here is a startup failure: the server never accepts traffic with
// an unusable store or an incomplete manifest.
func bootstrap(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *services, err error) {
	rt := &services{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(middleware.WithRegistry(rt.registry))

	policy, err := faults.ParsePolicy(cfg.Faults.Policy)
	if err != nil {
		return nil, err
	}
	rt.guard = faults.NewGuard(policy, logger, faults.WithFaultHook(metrics.BackgroundFault))

	if cfg.Session.Store == config.StoreSQL || cfg.Database.URL != "" {
		rt.db, err = database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
	}

	rt.store, err = session.OpenStore(ctx, session.StoreConfig{
		Backend:       cfg.Session.Store,
		ClearInterval: cfg.Session.ClearInterval,
		RedisAddr:     cfg.Session.Redis.Addr,
		RedisPassword: cfg.Session.Redis.Password,
		RedisDB:       cfg.Session.Redis.DB,
		RedisPrefix:   cfg.Session.Redis.Prefix,
		DB:            rt.db.DB(),
		Table:         cfg.Database.UserSession,
		CreateTable:   true,
		Supervisor:    rt.guard,
		Logger:        logger.With().Str("component", "session_store").Logger(),
	})
	if err != nil {
		return nil, err
	}

	signer, err := cookie.NewSigner(cfg.Session.Secret)
	if err != nil {
		return nil, fmt.Errorf("session secret: %w", err)
	}
	sessions := session.NewManager(rt.store, signer, session.ManagerConfig{
		CookieName: cfg.Session.Name,
		MaxAge:     cfg.Session.Cookie.MaxAge,
		Cookie: cookie.Options{
			Path:     "/",
			Domain:   cfg.Session.Cookie.Domain,
			Secure:   cfg.Session.Cookie.Secure,
			SameSite: cookie.ParseSameSite(cfg.Session.Cookie.SameSite),
		},
		OnStoreError: metrics.StoreError,
	}, logger.With().Str("component", "session").Logger())

	gate, tokens, err := newGate(cfg, sessions, logger)
	if err != nil {
		return nil, err
	}

	shellCfg, err := shellConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	shellCfg.OnComponentError = metrics.ComponentError
	shell, err := render.NewShell(shellCfg, logger)
	if err != nil {
		return nil, err
	}

	var live *dev.LiveReload
	if cfg.Mode() == config.ModeDevelopment && cfg.Dev.LiveReload {
		live = dev.NewLiveReload(dev.LiveReloadConfig{Watch: cfg.Dev.Watch}, rt.guard, logger)
	}

	routeOpts := routes.Options{}
	if tokens != nil {
		routeOpts.Tokens = tokens
	}

	rt.app, err = server.New(cfg, server.Options{
		Logger:     logger,
		Signer:     signer,
		Sessions:   sessions,
		Gate:       gate,
		Shell:      shell,
		DB:         rt.db,
		Metrics:    metrics,
		Gatherer:   rt.registry,
		Guard:      rt.guard,
		LiveReload: live,
		Routes:     routes.New(routeOpts),
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// newGate builds the strategy chain: password first, then bearer tokens
// when a token secret is configured.
func newGate(cfg *config.Config, sessions *session.Manager, logger zerolog.Logger) (*auth.Gate, *auth.TokenStrategy, error) {
	users := make([]auth.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users = append(users, auth.User{
			ID:           u.ID,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Name:         u.Name,
			Email:        u.Email,
			Roles:        u.Roles,
		})
	}
	strategies := []auth.Strategy{auth.NewPasswordStrategy(auth.NewStaticUsers(users...))}

	var tokens *auth.TokenStrategy
	if cfg.Auth.TokenSecret != "" {
		var opts []auth.TokenOption
		if cfg.Auth.TokenIssuer != "" {
			opts = append(opts, auth.WithIssuer(cfg.Auth.TokenIssuer))
		}
		var err error
		tokens, err = auth.NewTokenStrategy([]byte(cfg.Auth.TokenSecret), opts...)
		if err != nil {
			return nil, nil, err
		}
		strategies = append(strategies, tokens)
	}

	gate := auth.NewGate(sessions, logger.With().Str("component", "auth").Logger(), auth.WithStrategies(strategies...))
	return gate, tokens, nil
}

// shellConfig resolves bundle paths for the configured mode. Outside
// development the manifest must provide every required bundle.
func shellConfig(ctx context.Context, cfg *config.Config) (render.Config, error) {
	rc := render.Config{
		Env:             cfg.Env,
		EnableAnalytics: cfg.EnableAnalytics,
		Features:        cfg.Features,
		Title:           cfg.Render.Title,
		TemplatePath:    cfg.Render.Template,
	}

	if cfg.Mode() == config.ModeDevelopment {
		rc.Bundles = assets.DevBundles()
		rc.Assets = assets.NewPassthroughResolver("/")
		if cfg.Dev.LiveReload {
			rc.Scripts = []string{dev.ClientScriptPath}
		}
		return rc, nil
	}

	manifest, err := assets.LoadSource(ctx, cfg.Assets.Manifest, assets.S3Options{
		Region:   cfg.Assets.S3Region,
		Endpoint: cfg.Assets.S3Endpoint,
	})
	if err != nil {
		return rc, err
	}
	rc.Bundles, err = assets.ResolveBundles(manifest, cfg.Static.Prefix, cfg.Assets.Required)
	if err != nil {
		return rc, err
	}
	rc.Assets = assets.NewResolver(manifest, cfg.Static.Prefix)
	return rc, nil
}
