package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqlTestNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLTestStore(t *testing.T, opts ...SQLStoreOption) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	opts = append([]SQLStoreOption{
		WithSQLClearInterval(0),
		WithSQLClock(func() time.Time { return sqlTestNow }),
	}, opts...)
	store := NewSQLStore(db, opts...)
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func TestSQLStoreSave(t *testing.T) {
	store, mock := newSQLTestStore(t)
	expires := sqlTestNow.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_sessions (id, data, expires_at, updated_at)")).
		WithArgs("sid", []byte("doc"), expires, sqlTestNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), "sid", []byte("doc"), expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoad(t *testing.T) {
	store, mock := newSQLTestStore(t, WithSQLTableName("sessions"))
	query := regexp.QuoteMeta("SELECT data FROM sessions WHERE id = $1 AND expires_at > $2")

	mock.ExpectQuery(query).
		WithArgs("sid", sqlTestNow).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"version":1}`)))
	mock.ExpectQuery(query).
		WithArgs("gone", sqlTestNow).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectQuery(query).
		WithArgs("broken", sqlTestNow).
		WillReturnError(errors.New("connection reset"))

	ctx := context.Background()

	data, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	data, err = store.Load(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = store.Load(ctx, "broken")
	assert.EqualError(t, err, "connection reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreDelete(t *testing.T) {
	store, mock := newSQLTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_sessions WHERE id = $1")).
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "sid"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreDeleteExpired(t *testing.T) {
	store, mock := newSQLTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_sessions WHERE expires_at <= $1")).
		WithArgs(sqlTestNow).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSweepRunsUnderSupervisor(t *testing.T) {
	sup := &recordingSupervisor{}
	store, mock := newSQLTestStore(t, WithSQLSupervisor(sup))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_sessions WHERE expires_at <= $1")).
		WillReturnError(errors.New("db down"))

	// A failed sweep is logged and does not panic.
	store.supervisor.Do("session_sql_sweep", store.sweep)
	assert.Equal(t, []string{"session_sql_sweep"}, sup.names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreScheduledSweep(t *testing.T) {
	store, _ := newSQLTestStore(t, WithSQLClearInterval(time.Hour))
	require.NotNil(t, store.cron)
	require.Len(t, store.cron.Entries(), 1)
}

func TestSQLStoreCreateTable(t *testing.T) {
	store, mock := newSQLTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS user_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_user_sessions_expires ON user_sessions(expires_at)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.CreateTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreClosed(t *testing.T) {
	store, _ := newSQLTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Load(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrStoreClosed)
}
