package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SQLStore is a PostgreSQL-backed session store built on sqlx.
// Requires a table with schema (see CreateTable):
//
//	CREATE TABLE user_sessions (
//	    id VARCHAR(64) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
//	    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//	CREATE INDEX idx_user_sessions_expires ON user_sessions(expires_at);
//
// Loads filter on expires_at, so an expired row is unreachable even before
// the periodic sweep deletes it.
type SQLStore struct {
	db            *sqlx.DB
	tableName     string
	clearInterval time.Duration
	supervisor    Supervisor
	logger        zerolog.Logger
	now           func() time.Time
	cron          *cron.Cron
	closed        atomic.Bool
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName     string
	clearInterval time.Duration
	supervisor    Supervisor
	logger        zerolog.Logger
	now           func() time.Time
}

// WithSQLTableName sets the table name for session storage.
// Default: "user_sessions".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLClearInterval sets how often expired rows are swept. Zero disables
// the sweep. Default: 1 hour.
func WithSQLClearInterval(d time.Duration) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.clearInterval = d
	}
}

// WithSQLSupervisor runs the sweep under s.
func WithSQLSupervisor(s Supervisor) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.supervisor = s
	}
}

// WithSQLLogger sets the logger used by the sweep.
func WithSQLLogger(l zerolog.Logger) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.logger = l
	}
}

// WithSQLClock overrides the time source. Used by tests.
func WithSQLClock(now func() time.Time) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.now = now
	}
}

// NewSQLStore creates a new SQL-backed session store and starts the sweep.
func NewSQLStore(db *sqlx.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName:     "user_sessions",
		clearInterval: time.Hour,
		supervisor:    plainSupervisor{},
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &SQLStore{
		db:            db,
		tableName:     cfg.tableName,
		clearInterval: cfg.clearInterval,
		supervisor:    cfg.supervisor,
		logger:        cfg.logger,
		now:           cfg.now,
	}

	if s.clearInterval > 0 {
		s.cron = cron.New()
		spec := fmt.Sprintf("@every %s", s.clearInterval)
		if _, err := s.cron.AddFunc(spec, func() {
			s.supervisor.Do("session_sql_sweep", s.sweep)
		}); err != nil {
			s.logger.Error().Err(err).Str("spec", spec).Msg("session sweep not scheduled")
		} else {
			s.cron.Start()
		}
	}
	return s
}

// Save upserts session data with an expiration time.
func (s *SQLStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := s.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`, s.tableName))

	_, err := s.db.ExecContext(ctx, query, sessionID, data, expiresAt, s.now())
	return err
}

// Load retrieves session data if it exists and hasn't expired.
func (s *SQLStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := s.db.Rebind(fmt.Sprintf(`SELECT data FROM %s WHERE id = ? AND expires_at > ?`, s.tableName))

	var data []byte
	if err := s.db.GetContext(ctx, &data, query, sessionID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a session from the database.
func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.tableName))
	_, err := s.db.ExecContext(ctx, query, sessionID)
	return err
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

// Close stops the sweep. The database handle is shared and stays open.
func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	return nil
}

// DeleteExpired removes every row whose expiry has passed and returns the
// number removed.
func (s *SQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.tableName))
	res, err := s.db.ExecContext(ctx, query, s.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) sweep() {
	if s.closed.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.DeleteExpired(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("table", s.tableName).Msg("expired session sweep failed")
		return
	}
	s.logger.Debug().Int64("deleted", n).Str("table", s.tableName).Msg("expired sessions swept")
}

// CreateTable creates the session table and its expiry index if they don't exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			data BYTEA NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.tableName, err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)`, s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("index %s: %w", s.tableName, err)
	}
	return nil
}
