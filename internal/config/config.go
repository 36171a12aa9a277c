// Package config loads realmwatch settings from an optional YAML/JSON5 file
// and the environment. Environment variables win over the file; defaults
// fill whatever is left.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/realmwatch/internal/status"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "REALMWATCH_CONFIG"

const (
	StrategyTCP     = "tcp"
	StrategyCommand = "command"
)

// DefaultTargets are the Project Epoch authentication and world server ports.
var DefaultTargets = []status.Target{
	{Name: "auth", Host: "game.project-epoch.net", Port: 3724},
	{Name: "world", Host: "game.project-epoch.net", Port: 8085},
}

// Config is the main configuration structure for realmwatch.
type Config struct {
	Discord  DiscordConfig   `yaml:"discord"`
	Targets  []status.Target `yaml:"targets"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Messages MessagesConfig  `yaml:"messages"`
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Tracing  TracingConfig   `yaml:"tracing"`

	location *time.Location
}

type DiscordConfig struct {
	Token          string   `yaml:"token"`
	ChannelID      string   `yaml:"channel_id"`
	GuildID        string   `yaml:"guild_id"`
	MentionRole    string   `yaml:"mention_role"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type MonitorConfig struct {
	Interval     Duration `yaml:"interval"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
	// Strategy is "tcp" (in-process dial) or "command" (external nc with tcp fallback).
	Strategy string `yaml:"strategy"`
	Command  string `yaml:"command"`
}

type MessagesConfig struct {
	ServerName string `yaml:"server_name"`
	OnlineRole string `yaml:"online_role"`
	DownRole   string `yaml:"down_role"`
	Timezone   string `yaml:"timezone"`
}

type ServerConfig struct {
	// Addr is the liveness listener address. "off" disables it.
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Option adjusts how Load validates.
type Option func(*loadOptions)

type loadOptions struct {
	skipDiscord bool
}

// WithoutDiscord skips the Discord credential checks, for commands that only probe.
func WithoutDiscord() Option {
	return func(o *loadOptions) {
		o.skipDiscord = true
	}
}

// Load reads the file at path (if any), applies environment overrides and
// defaults, and validates the result.
func Load(path string, opts ...Option) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}

	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		layers, err := readLayers(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = decodeLayers(layers)
		if err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.validate(options.skipDiscord); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath returns flagValue, or the REALMWATCH_CONFIG path when the flag is empty.
func ResolvePath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

func applyDefaults(cfg *Config) {
	if len(cfg.Targets) == 0 {
		cfg.Targets = append([]status.Target(nil), DefaultTargets...)
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = Duration(15 * time.Second)
	}
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = Duration(5 * time.Second)
	}
	if cfg.Monitor.Strategy == "" {
		cfg.Monitor.Strategy = StrategyTCP
	}
	if cfg.Monitor.Command == "" {
		cfg.Monitor.Command = "nc"
	}
	if cfg.Discord.RequestTimeout == 0 {
		cfg.Discord.RequestTimeout = Duration(10 * time.Second)
	}
	if cfg.Discord.MentionRole == "" {
		cfg.Discord.MentionRole = "Epoch-Status"
	}
	if cfg.Messages.ServerName == "" {
		cfg.Messages.ServerName = status.DefaultServerName
	}
	if cfg.Messages.OnlineRole == "" {
		cfg.Messages.OnlineRole = status.DefaultOnlineRole
	}
	if cfg.Messages.DownRole == "" {
		cfg.Messages.DownRole = status.DefaultDownRole
	}
	if cfg.Messages.Timezone == "" {
		cfg.Messages.Timezone = "America/New_York"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks the configuration. It is called by Load.
func (c *Config) Validate() error {
	return c.validate(false)
}

func (c *Config) validate(skipDiscord bool) error {
	var errs []error

	if !skipDiscord {
		errs = append(errs, c.validateDiscord()...)
	}

	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("at least one target is required"))
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", t, err))
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate target name %q", t.Name))
		}
		seen[t.Name] = true
	}

	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor interval must be positive"))
	}
	if c.Monitor.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}
	if c.Discord.RequestTimeout <= 0 {
		errs = append(errs, errors.New("chat timeout must be positive"))
	}
	switch c.Monitor.Strategy {
	case StrategyTCP, StrategyCommand:
	default:
		errs = append(errs, fmt.Errorf("unknown probe strategy %q (want tcp or command)", c.Monitor.Strategy))
	}

	if c.Messages.OnlineRole == c.Messages.DownRole {
		errs = append(errs, errors.New("online and down roles must differ"))
	}
	loc, err := time.LoadLocation(c.Messages.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("unknown timezone %q: %w", c.Messages.Timezone, err))
	}
	c.location = loc

	return errors.Join(errs...)
}

func (c *Config) validateDiscord() []error {
	var errs []error
	if strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, errors.New("discord token is required (DISCORD_BOT_TOKEN)"))
	}
	if strings.TrimSpace(c.Discord.ChannelID) == "" {
		errs = append(errs, errors.New("discord channel id is required (DISCORD_CHANNEL_ID)"))
	} else if _, err := strconv.ParseUint(c.Discord.ChannelID, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("discord channel id %q must be a numeric snowflake", c.Discord.ChannelID))
	}
	if c.Discord.GuildID != "" {
		if _, err := strconv.ParseUint(c.Discord.GuildID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("discord guild id %q must be a numeric snowflake", c.Discord.GuildID))
		}
	}
	return errs
}

// Location returns the announcement time zone resolved by Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// StatusMessages returns the wording used for announcements, presence and roles.
func (c *Config) StatusMessages() status.Messages {
	return status.Messages{
		ServerName: c.Messages.ServerName,
		OnlineRole: c.Messages.OnlineRole,
		DownRole:   c.Messages.DownRole,
		Location:   c.Location(),
	}
}

// LivenessEnabled reports whether the HTTP liveness listener should run.
func (c *Config) LivenessEnabled() bool {
	return !isDisabled(c.Server.Addr)
}

func isDisabled(addr string) bool {
	switch strings.ToLower(strings.TrimSpace(addr)) {
	case "off", "none", "disabled", "-":
		return true
	}
	return false
}

// Duration is a time.Duration that also accepts a bare number of seconds.
type Duration time.Duration

// ParseDuration parses "15s", "1m30s" or a plain number of seconds such as "15" or "2.5".
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(d), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
