package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
	_ "modernc.org/sqlite"             // registers "sqlite" driver
)

// Driver identifies which database/sql driver a *sql.DB was opened with, so
// EnsureSchema can pick dialect-appropriate column types.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "pgx"
)

// OpenSQLite opens (and if necessary creates) a sqlite database file for the
// lite profile, grounded on the teacher's internal/storage/sqlite setup.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(string(DriverSQLite), path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention
	return db, nil
}

// OpenPostgres opens a pooled connection to Postgres for the standard
// profile via pgx's database/sql adapter, grounded on the teacher's
// internal/database/postgres pool sizing.
func OpenPostgres(dsn string, maxOpenConns, maxIdleConns int) (*sql.DB, error) {
	db, err := sql.Open(string(DriverPostgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	return db, nil
}

// EnsureSchema creates the shared entities table and its secondary indexes
// if they do not already exist. One table serves every entity type,
// partitioned by entity_type, so adding a new domain entity never requires
// a migration.
func EnsureSchema(db *sql.DB, driver Driver) error {
	timestampType := "TIMESTAMP"
	if driver == DriverPostgres {
		timestampType = "TIMESTAMPTZ"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities (
			entity_type TEXT NOT NULL,
			id          TEXT NOT NULL,
			version     INTEGER NOT NULL,
			status      TEXT NOT NULL DEFAULT '',
			owner_id    TEXT NOT NULL DEFAULT '',
			geohash     TEXT NOT NULL DEFAULT '',
			created_at  %s NOT NULL,
			updated_at  %s NOT NULL,
			data        TEXT NOT NULL,
			PRIMARY KEY (entity_type, id)
		)`, timestampType, timestampType),
		`CREATE INDEX IF NOT EXISTS idx_entities_status ON entities (entity_type, status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_owner ON entities (entity_type, owner_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_geohash ON entities (entity_type, geohash, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlstore: ensure schema: %w", err)
		}
	}
	return nil
}
