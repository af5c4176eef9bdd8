package sqlbase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMigrationManager_AppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	migrations := map[int]string{
		3: "CREATE TABLE three",
		1: "CREATE TABLE one",
		2: "CREATE TABLE two",
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	for _, step := range []struct {
		version int
		sql     string
	}{{2, "CREATE TABLE two"}, {3, "CREATE TABLE three"}} {
		mock.ExpectBegin()
		mock.ExpectExec(step.sql).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(step.version).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	manager := NewMigrationManager(testLogger(), db, migrations)
	assert.Equal(t, 3, manager.LatestVersion())

	require.NoError(t, manager.RunMigrations(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationManager_UpToDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	manager := NewMigrationManager(testLogger(), db, map[int]string{1: "CREATE TABLE one"})

	require.NoError(t, manager.RunMigrations(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationManager_RollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE one").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	manager := NewMigrationManager(testLogger(), db, map[int]string{1: "CREATE TABLE one"})

	err = manager.RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationManager_CreateTableFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnError(errors.New("permission denied"))

	err = NewMigrationManager(testLogger(), db, nil).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_migrations")
}
