package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StoreConfig selects and configures a store backend for OpenStore.
type StoreConfig struct {
	// Backend is "memory", "redis" or "sql".
	Backend string

	// ClearInterval is how often expired documents are swept by backends
	// that need it.
	ClearInterval time.Duration

	// RedisAddr, RedisPassword, RedisDB and RedisPrefix configure the redis backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// DB and Table configure the sql backend.
	DB    *sqlx.DB
	Table string

	// CreateTable creates the sql table when missing.
	CreateTable bool

	Supervisor Supervisor
	Logger     zerolog.Logger
}

// OpenStore builds the configured backend and verifies it is usable before
// the server accepts traffic. Failures are returned as *StoreInitError.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.Supervisor == nil {
		cfg.Supervisor = plainSupervisor{}
	}

	var store Store
	switch cfg.Backend {
	case "", "memory":
		store = NewMemoryStore(
			WithCleanupInterval(orDefault(cfg.ClearInterval, time.Minute)),
			WithMemorySupervisor(cfg.Supervisor),
		)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		opts := []RedisStoreOption{WithRedisOwnership()}
		if cfg.RedisPrefix != "" {
			opts = append(opts, WithRedisPrefix(cfg.RedisPrefix))
		}
		store = NewRedisStore(client, opts...)

	case "sql":
		if cfg.DB == nil {
			return nil, &StoreInitError{Backend: cfg.Backend, Err: errors.New("no database handle")}
		}
		opts := []SQLStoreOption{
			WithSQLClearInterval(cfg.ClearInterval),
			WithSQLSupervisor(cfg.Supervisor),
			WithSQLLogger(cfg.Logger),
		}
		if cfg.Table != "" {
			opts = append(opts, WithSQLTableName(cfg.Table))
		}
		sqlStore := NewSQLStore(cfg.DB, opts...)
		if cfg.CreateTable {
			if err := sqlStore.CreateTable(ctx); err != nil {
				sqlStore.Close()
				return nil, &StoreInitError{Backend: cfg.Backend, Err: err}
			}
		}
		store = sqlStore

	default:
		return nil, &StoreInitError{Backend: cfg.Backend, Err: fmt.Errorf("unknown backend")}
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, &StoreInitError{Backend: cfg.Backend, Err: err}
	}
	cfg.Logger.Info().Str("backend", orName(cfg.Backend)).Msg("session store ready")
	return store, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func orName(backend string) string {
	if backend == "" {
		return "memory"
	}
	return backend
}
