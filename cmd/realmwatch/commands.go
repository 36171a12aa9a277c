package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the bot.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status bot",
		Long: `Run the status bot.

The bot will:
1. Load configuration from the environment (and --config, if given)
2. Start the liveness HTTP server (/, /healthz, /metrics)
3. Connect to Discord
4. Probe the targets immediately and then on every interval, announcing changes

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Run with environment configuration
  DISCORD_BOT_TOKEN=... DISCORD_CHANNEL_ID=... realmwatch serve

  # Run with a config file and debug logging
  realmwatch serve --config realmwatch.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML/JSON5 configuration file (or set REALMWATCH_CONFIG)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

// buildCheckCmd creates the "check" command that probes once and exits.
func buildCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the targets once and print the verdict",
		Long: `Probe every configured target once and print each result and the overall
verdict. Exits 0 when the server is playable and 1 when it is down. Discord is
not contacted, so no bot token is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML/JSON5 configuration file (or set REALMWATCH_CONFIG)")

	return cmd
}

// buildVersionCmd creates the "version" command.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "realmwatch %s (commit: %s, built: %s)\n", version, commit, date)
			return err
		},
	}
}
