package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/haasonsaas/realmwatch/internal/status"
)

// environment holds raw environment values before they are merged into Config.
type environment struct {
	Token       string `env:"DISCORD_BOT_TOKEN"`
	ChannelID   string `env:"DISCORD_CHANNEL_ID"`
	GuildID     string `env:"DISCORD_GUILD_ID"`
	MentionRole string `env:"REALMWATCH_MENTION_ROLE"`
	ChatTimeout string `env:"REALMWATCH_CHAT_TIMEOUT"`

	Targets       string `env:"REALMWATCH_TARGETS"`
	CheckInterval string `env:"REALMWATCH_CHECK_INTERVAL"`
	ProbeTimeout  string `env:"REALMWATCH_PROBE_TIMEOUT"`
	ProbeStrategy string `env:"REALMWATCH_PROBE_STRATEGY"`
	ProbeCommand  string `env:"REALMWATCH_PROBE_COMMAND"`

	ServerName string `env:"REALMWATCH_SERVER_NAME"`
	OnlineRole string `env:"REALMWATCH_ONLINE_ROLE"`
	DownRole   string `env:"REALMWATCH_DOWN_ROLE"`
	Timezone   string `env:"REALMWATCH_TIMEZONE"`

	HTTPAddr  string `env:"REALMWATCH_HTTP_ADDR"`
	LogLevel  string `env:"REALMWATCH_LOG_LEVEL"`
	LogFormat string `env:"REALMWATCH_LOG_FORMAT"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// applyEnv overlays every set environment variable onto cfg.
func applyEnv(cfg *Config) error {
	var raw environment
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	overrideString(&cfg.Discord.Token, raw.Token)
	overrideString(&cfg.Discord.ChannelID, raw.ChannelID)
	overrideString(&cfg.Discord.GuildID, raw.GuildID)
	overrideString(&cfg.Discord.MentionRole, raw.MentionRole)
	overrideString(&cfg.Monitor.Strategy, strings.ToLower(raw.ProbeStrategy))
	overrideString(&cfg.Monitor.Command, raw.ProbeCommand)
	overrideString(&cfg.Messages.ServerName, raw.ServerName)
	overrideString(&cfg.Messages.OnlineRole, raw.OnlineRole)
	overrideString(&cfg.Messages.DownRole, raw.DownRole)
	overrideString(&cfg.Messages.Timezone, raw.Timezone)
	overrideString(&cfg.Server.Addr, raw.HTTPAddr)
	overrideString(&cfg.Logging.Level, raw.LogLevel)
	overrideString(&cfg.Logging.Format, raw.LogFormat)
	overrideString(&cfg.Tracing.Endpoint, raw.OTLPEndpoint)
	if raw.OTLPInsecure {
		cfg.Tracing.Insecure = true
	}

	// An explicitly empty address turns the liveness listener off.
	if v, ok := os.LookupEnv("REALMWATCH_HTTP_ADDR"); ok && strings.TrimSpace(v) == "" {
		cfg.Server.Addr = "off"
	}

	var errs []error
	if raw.Targets != "" {
		targets, err := ParseTargets(raw.Targets)
		if err != nil {
			errs = append(errs, fmt.Errorf("REALMWATCH_TARGETS: %w", err))
		} else {
			cfg.Targets = targets
		}
	}
	errs = append(errs,
		overrideDuration(&cfg.Monitor.Interval, "REALMWATCH_CHECK_INTERVAL", raw.CheckInterval),
		overrideDuration(&cfg.Monitor.ProbeTimeout, "REALMWATCH_PROBE_TIMEOUT", raw.ProbeTimeout),
		overrideDuration(&cfg.Discord.RequestTimeout, "REALMWATCH_CHAT_TIMEOUT", raw.ChatTimeout),
	)
	return errors.Join(errs...)
}

func overrideString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func overrideDuration(dst *Duration, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// ParseTargets parses a comma-separated list of "name=host:port" entries.
// The name is optional and defaults to "host:port".
func ParseTargets(s string) ([]status.Target, error) {
	var targets []status.Target
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, addr, named := strings.Cut(entry, "=")
		if !named {
			addr = name
			name = ""
		}
		name = strings.TrimSpace(name)
		addr = strings.TrimSpace(addr)

		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", entry, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("target %q: invalid port %q", entry, portStr)
		}
		if named && name == "" {
			return nil, fmt.Errorf("target %q: empty name", entry)
		}
		if name == "" {
			name = addr
		}

		t := status.Target{Name: name, Host: host, Port: port}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("target %q: %w", entry, err)
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets given")
	}
	return targets, nil
}
