// Package main provides the CLI entry point for realmwatch, a Discord bot
// that watches a game server's login and world ports and announces when the
// server becomes playable or goes down.
//
// # Basic Usage
//
// Run the bot:
//
//	realmwatch serve
//
// Probe the configured targets once without touching Discord:
//
//	realmwatch check
//
// # Environment Variables
//
//   - DISCORD_BOT_TOKEN: Discord bot token (required for serve)
//   - DISCORD_CHANNEL_ID: announcement channel (required for serve)
//   - REALMWATCH_TARGETS: comma-separated name=host:port list
//   - REALMWATCH_CONFIG: optional YAML/JSON5 config file
//
// See internal/config for the full list.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotPlayable) {
			slog.Error("command execution failed", "error", err)
		}
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "realmwatch",
		Short: "realmwatch - game server status bot for Discord",
		Long: `realmwatch probes a game server's authentication and world ports and keeps
a Discord guild informed: an announcement on every change, the bot's
presence, and an Online/Down status role.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildCheckCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}
