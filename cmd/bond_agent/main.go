// Package main provides the bond_agent CLI: the onboarding API server plus
// operator commands for inspecting and driving application step progress.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	databaseURL string
	sqlitePath  string
	registryArg string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "bond_agent",
	Short: "Bond estimation onboarding service",
	Long: "bond_agent tracks per-application step progress for bond estimation onboarding, " +
		"gates submission on the required steps and serves the REST API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL URL (default: $DATABASE_URL); SQLite is used when empty")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file (default: $SQLITE_PATH or data/bond.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print workflow spans and store details to stderr")
	rootCmd.PersistentFlags().StringVar(&registryArg, "registry", "", "Step registry YAML (default: $STEP_REGISTRY or the embedded registry)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
