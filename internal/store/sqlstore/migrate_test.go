package sqlstore_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

func openUnmigratedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrationsCreatesEntitiesTable(t *testing.T) {
	db := openUnmigratedTestDB(t)
	require.NoError(t, sqlstore.RunMigrations(db, sqlstore.DriverSQLite))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='entities'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "entities", name)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openUnmigratedTestDB(t)
	require.NoError(t, sqlstore.RunMigrations(db, sqlstore.DriverSQLite))
	require.NoError(t, sqlstore.RunMigrations(db, sqlstore.DriverSQLite))
}

func TestRollbackMigrationDropsEntitiesTable(t *testing.T) {
	db := openUnmigratedTestDB(t)
	require.NoError(t, sqlstore.RunMigrations(db, sqlstore.DriverSQLite))
	require.NoError(t, sqlstore.RollbackMigration(db, sqlstore.DriverSQLite))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='entities'`).Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRunMigrationsUnknownDriver(t *testing.T) {
	db := openUnmigratedTestDB(t)
	err := sqlstore.RunMigrations(db, sqlstore.Driver("oracle"))
	assert.Error(t, err)
}
