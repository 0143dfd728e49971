package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/surpluscoord/control-plane/internal/store/sqlstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the applied/pending state of every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, driver, err := openFromConfig()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqlstore.MigrationStatus(db, driver); err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		return nil
	},
}
