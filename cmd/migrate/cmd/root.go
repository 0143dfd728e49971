// Package cmd implements the migrate CLI's command surface: up, down and
// status subcommands wrapping internal/store/sqlstore's goose-backed
// migration runner. Grounded on the teacher's cmd/migrate, which wraps a
// goose-based migrations.MigrationManager behind its own CLI type;
// generalized here into three flat cobra subcommands since this system
// has no backup/health-check manager to drive alongside goose.
package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surpluscoord/control-plane/internal/config"
	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

var (
	configPath string
	driverFlag string
	dsnFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the control plane's SQL schema migrations",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; env vars and defaults otherwise)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "override the driver (sqlite, pgx); defaults to the loaded config's storage backend")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "override the connection string/file path; defaults to the loaded config's storage settings")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openFromConfig opens the SQL backend named by --driver/--dsn, or by the
// loaded config's storage settings if those flags are unset.
func openFromConfig() (*sql.DB, sqlstore.Driver, error) {
	driver, dsn := sqlstore.Driver(driverFlag), dsnFlag
	if driver == "" || dsn == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		if driver == "" {
			if cfg.Storage.Backend == config.StorageBackendPostgres {
				driver = sqlstore.DriverPostgres
			} else {
				driver = sqlstore.DriverSQLite
			}
		}
		if dsn == "" {
			if driver == sqlstore.DriverPostgres {
				dsn = cfg.GetDatabaseURL()
			} else {
				dsn = cfg.Storage.FilesystemPath
			}
		}
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case sqlstore.DriverSQLite:
		db, err = sqlstore.OpenSQLite(dsn)
	case sqlstore.DriverPostgres:
		db, err = sqlstore.OpenPostgres(dsn, 5, 2)
	default:
		return nil, "", fmt.Errorf("unknown driver %q (must be sqlite or pgx)", driver)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, driver, nil
}
