package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const testToken = "MTA0NTY3ODkwMTIzNDU2Nzg5MA.GaBcDe.abcdefghijklmnopqrstuvwxyz0123456789"

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"", false, true},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LogConfig{Level: tt.level, Output: &buf})

			logger.Debug("debug-line")
			logger.Info("info-line")

			if got := strings.Contains(buf.String(), "debug-line"); got != tt.debugSeen {
				t.Errorf("debug seen = %v, want %v", got, tt.debugSeen)
			}
			if got := strings.Contains(buf.String(), "info-line"); got != tt.infoSeen {
				t.Errorf("info seen = %v, want %v", got, tt.infoSeen)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})
	logger.Info("tick complete", "playable", "up")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["msg"] != "tick complete" || record["playable"] != "up" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestNewLogger_RedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf}).With("component", "discord")

	logger.Info("connecting with "+testToken,
		"token", "anything",
		"error", errors.New("auth failed for Bot "+testToken),
		slog.Group("session", slog.String("auth", testToken)),
	)

	out := buf.String()
	if strings.Contains(out, testToken) {
		t.Fatalf("token leaked into logs: %s", out)
	}
	if strings.Contains(out, "anything") {
		t.Errorf("sensitive key not redacted: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") || !strings.Contains(out, "component=discord") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewLogger_WithAttrsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf}).With("authorization", "Bot "+testToken)
	logger.Info("hello")

	if strings.Contains(buf.String(), testToken) {
		t.Errorf("token leaked through With: %s", buf.String())
	}
}

func TestNewLogger_CustomPattern(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, RedactPatterns: []string{`hunter\d`}})
	logger.Info("password is hunter2")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("custom pattern not applied: %s", buf.String())
	}
}

func TestLogLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LogLevelFromString(in); got != want {
			t.Errorf("LogLevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
