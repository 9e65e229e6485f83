package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TBMCG/RSS-feed/cmd/newsdash/cmd/users"
	"github.com/TBMCG/RSS-feed/internal/config"
	"github.com/TBMCG/RSS-feed/internal/logging"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "newsdash",
	Short: "News dashboard API server",
	Long: `newsdash serves the news dashboard API. Users sign in with the
organization's identity provider; roles asserted by the provider decide
who may read, manage feeds or administer the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlagOverrides(cmd, cfg)

		logger = logging.NewLogger(cfg.Environment, cfg.Debug)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().String("server-url", "", "Public base URL of this service (env: SERVER_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	// Add subcommands
	rootCmd.AddCommand(users.UsersCmd)
}

// applyFlagOverrides lets explicitly set flags win over the environment.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db-url") {
		c.DatabaseURL, _ = flags.GetString("db-url")
	}
	if flags.Changed("server-addr") {
		c.ServerAddr, _ = flags.GetString("server-addr")
	}
	if flags.Changed("server-url") {
		c.ServerURL, _ = flags.GetString("server-url")
	}
	if flags.Changed("debug") {
		c.Debug, _ = flags.GetBool("debug")
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
