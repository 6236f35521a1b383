package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createTrackingSQL = regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")
	checkAppliedSQL   = regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")
	recordAppliedSQL  = regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"002_add_index.up.sql":       {Data: []byte("CREATE INDEX idx ON placed_orders (session_id)")},
		"001_create_orders.up.sql":   {Data: []byte("CREATE TABLE placed_orders (id TEXT)")},
		"001_create_orders.down.sql": {Data: []byte("DROP TABLE placed_orders")},
		"README.md":                  {Data: []byte("notes")},
	}
}

func TestPendingMigrations_SortedUpFilesOnly(t *testing.T) {
	names, err := pendingMigrations(testMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_orders.up.sql", "002_add_index.up.sql"}, names)
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("001_create_orders.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("002_add_index.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX idx ON placed_orders (session_id)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordAppliedSQL).WithArgs("002_add_index.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = RunMigrations(context.Background(), mock, testMigrations(), discardLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"001_bad.up.sql": {Data: []byte("CREATE TABLE broken (")},
	}

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(checkAppliedSQL).WithArgs("001_bad.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken (")).
		WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, migrations, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_bad.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_TrackingTableFailure(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnError(errors.New("permission denied for schema public"))

	err = RunMigrations(context.Background(), mock, testMigrations(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema_migrations table")
}

// unreachableDB fails every call the way a down server does.
type unreachableDB struct {
	calls int
}

func (d *unreachableDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	d.calls++
	return pgconn.CommandTag{}, errors.New("dial tcp 127.0.0.1:5432: connection refused")
}

func (d *unreachableDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not reached")
}

func (d *unreachableDB) Begin(context.Context) (pgx.Tx, error) {
	panic("not reached")
}

func TestRunMigrations_CancelledDuringRetry(t *testing.T) {
	db := &unreachableDB{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunMigrations(ctx, db, testMigrations(), discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, db.calls)
}
