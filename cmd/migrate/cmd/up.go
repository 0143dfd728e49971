package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, driver, err := openFromConfig()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqlstore.RunMigrations(db, driver); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}
