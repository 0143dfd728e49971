package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/surpluscoord/control-plane/migrations"
)

// gooseDialect maps the database/sql driver name this package registers
// under to the dialect string goose expects.
func gooseDialect(driver Driver) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("sqlstore: no goose dialect for driver %q", driver)
	}
}

// RunMigrations applies every pending migration embedded in migrations/ via
// goose, grounded on the teacher's database.RunMigrations(ctx, pool,
// logger) call in cmd/server/main.go. Mirrors the teacher's own tolerance:
// callers log and continue on error rather than aborting startup, since
// EnsureSchema's idempotent DDL remains a safety net underneath.
func RunMigrations(db *sql.DB, driver Driver) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("sqlstore: goose up: %w", err)
	}
	return nil
}

// MigrationStatus reports the applied/pending state of every embedded
// migration, used by cmd/migrate's "status" subcommand.
func MigrationStatus(db *sql.DB, driver Driver) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: set goose dialect: %w", err)
	}
	return goose.Status(db, ".")
}

// RollbackMigration undoes the most recently applied migration, used by
// cmd/migrate's "down" subcommand.
func RollbackMigration(db *sql.DB, driver Driver) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlstore: set goose dialect: %w", err)
	}
	return goose.Down(db, ".")
}
