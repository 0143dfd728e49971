package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, driver, err := openFromConfig()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqlstore.RollbackMigration(db, driver); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("last migration rolled back")
		return nil
	},
}
