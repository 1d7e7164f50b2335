package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evlocate/foundation/cmd/foundation/commands"
	"github.com/evlocate/foundation/logger"
)

var rootCmd = &cobra.Command{
	Use:   "foundation",
	Short: "Fetch quality tracking and validation engine",
	Long: `foundation — track, validate, and score external data fetches.

Every fetch routed through foundation is timed, validated against its
source's contract, scored, and recorded. The server exposes per-source
health, recent fetch history, and an aggregate quality dashboard.

Available commands:
  serve     - Start the quality tracking server
  db        - Manage the metadata database
  contracts - Inspect registered source contracts
  version   - Show version information

Examples:
  foundation serve                  # Start the server
  foundation db stats               # Show record counts per source
  foundation contracts list         # List contracts from contracts file`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ContractsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
