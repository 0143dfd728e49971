// Package cmd implements the control-plane server's command-line surface:
// "serve" runs the HTTP API, "version" prints build metadata. Grounded on
// the teacher's cmd/template-validator/cmd cobra root, generalized from a
// single-purpose validator CLI to a server with one long-running
// subcommand.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "control-plane",
	Short: "Surplus coordination control plane",
	Long: `control-plane is the backend coordination engine for a
surplus-to-need logistics platform: it matches supplier listings against
recipient demand, gates matches through a compliance engine, and tracks
the resulting deliveries through a durable audit trail.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; env vars and defaults otherwise)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("control-plane version %s (commit %s, built %s)\n", version, gitCommit, buildTime)
	},
}
