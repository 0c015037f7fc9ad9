// Package database opens the SQL connection pool shared by the session store
// and the application routes. There is no package-level handle: callers get a
// *Handle from Open and pass it where it is needed.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/delta94/cvmaker/internal/config"
)

// ErrNotConfigured is returned by Open when no database URL is set.
var ErrNotConfigured = errors.New("database: url not configured")

// Handle owns a connection pool.
type Handle struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// Open connects using cfg, applies the pool limits and pings the server.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Handle, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}

	logger = logger.With().Str("component", "database").Str("driver", driver).Logger()
	logger.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("database connected")

	return &Handle{db: db, logger: logger}, nil
}

// New wraps an existing pool.
func New(db *sqlx.DB, logger zerolog.Logger) *Handle {
	return &Handle{db: db, logger: logger}
}

// DB returns the underlying pool.
func (h *Handle) DB() *sqlx.DB {
	if h == nil {
		return nil
	}
	return h.db
}

// Ping checks the connection.
func (h *Handle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close releases the pool. Safe on a nil handle.
func (h *Handle) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	if err := h.db.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("error closing database connection")
		return err
	}
	return nil
}
