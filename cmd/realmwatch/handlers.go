package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/realmwatch/internal/channels/discord"
	"github.com/haasonsaas/realmwatch/internal/config"
	"github.com/haasonsaas/realmwatch/internal/gateway"
	"github.com/haasonsaas/realmwatch/internal/monitor"
	"github.com/haasonsaas/realmwatch/internal/observability"
	"github.com/haasonsaas/realmwatch/internal/probe"
	"github.com/haasonsaas/realmwatch/internal/status"
)

// errNotPlayable makes `check` exit non-zero without logging an error.
var errNotPlayable = errors.New("server is not playable")

func resolveConfigPath(path string) string {
	return config.ResolvePath(path)
}

// buildProber returns the probe strategy selected in the configuration.
func buildProber(cfg *config.Config, logger *slog.Logger) probe.Prober {
	tcp := probe.NewTCPProber(logger)
	if cfg.Monitor.Strategy == config.StrategyCommand {
		return probe.NewCommandProber(cfg.Monitor.Command, tcp, logger)
	}
	return tcp
}

// runServe implements the serve command logic.
// It handles configuration loading, service initialization, and graceful shutdown.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	logger.Info("starting realmwatch",
		"version", version,
		"commit", commit,
		"config", configPath,
		"targets", len(cfg.Targets),
		"interval", cfg.Monitor.Interval.String(),
		"strategy", cfg.Monitor.Strategy,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer, shutdownTracing := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "realmwatch",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	notifier, err := discord.NewNotifier(discord.Config{
		Token:          cfg.Discord.Token,
		ChannelID:      cfg.Discord.ChannelID,
		GuildID:        cfg.Discord.GuildID,
		MentionRole:    cfg.Discord.MentionRole,
		RequestTimeout: cfg.Discord.RequestTimeout.Std(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create discord notifier: %w", err)
	}

	loop, err := monitor.New(buildProber(cfg, logger), notifier, monitor.Config{
		Targets:      cfg.Targets,
		Interval:     cfg.Monitor.Interval.Std(),
		ProbeTimeout: cfg.Monitor.ProbeTimeout.Std(),
		Messages:     cfg.StatusMessages(),
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
	})
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	var liveness *gateway.Server
	if cfg.LivenessEnabled() {
		liveness = gateway.NewServer(gateway.Config{
			Addr:       cfg.Server.Addr,
			ServerName: cfg.Messages.ServerName,
			Snapshot:   loop.Snapshot,
			Connected:  notifier.Connected,
			Gatherer:   prometheus.DefaultGatherer,
			Logger:     logger,
		})
		if err := liveness.Start(ctx); err != nil {
			return fmt.Errorf("failed to start liveness server: %w", err)
		}
	}

	runErr := func() error {
		if err := notifier.Start(ctx); err != nil {
			return fmt.Errorf("failed to connect to discord: %w", err)
		}
		return loop.Run(ctx)
	}()

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := notifier.Stop(); err != nil {
		logger.Warn("discord shutdown error", "error", err)
	}
	if liveness != nil {
		_ = liveness.Stop(shutdownCtx)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown error", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("realmwatch stopped gracefully")
	return nil
}

// runCheck probes every target once and prints the results.
func runCheck(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath, config.WithoutDiscord())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  "warn",
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := probe.All(ctx, buildProber(cfg, logger), cfg.Targets, cfg.Monitor.ProbeTimeout.Std())
	verdict := status.Evaluate(results)

	out := cmd.OutOrStdout()
	for _, t := range cfg.Targets {
		result := "closed"
		if results[t] {
			result = "open"
		}
		fmt.Fprintf(out, "%-24s %s\n", t.String(), result)
	}
	fmt.Fprintf(out, "verdict: %s\n", verdict)

	if verdict != status.Up {
		return errNotPlayable
	}
	return nil
}
