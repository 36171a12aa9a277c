package main

import (
	"bytes"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "check", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "realmwatch dev") {
		t.Errorf("output = %q", out.String())
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"REALMWATCH_CONFIG", "REALMWATCH_PROBE_STRATEGY", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestCheckCmd(t *testing.T) {
	clearConfigEnv(t)

	open, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer open.Close()
	go func() {
		for {
			conn, err := open.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closedAddr := closed.Addr().String()
	closed.Close()

	openPort := strconv.Itoa(open.Addr().(*net.TCPAddr).Port)

	tests := []struct {
		name        string
		targets     string
		wantVerdict string
		wantErr     error
	}{
		{"all open", "auth=127.0.0.1:" + openPort, "verdict: up", nil},
		{"one closed", "auth=127.0.0.1:" + openPort + ",world=" + closedAddr, "verdict: down", errNotPlayable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REALMWATCH_TARGETS", tt.targets)
			t.Setenv("REALMWATCH_PROBE_TIMEOUT", "1s")

			cmd := buildRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"check"})

			err := cmd.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantVerdict) {
				t.Errorf("output = %q, want %q", out.String(), tt.wantVerdict)
			}
		})
	}
}

func TestServeCmdRequiresDiscordConfig(t *testing.T) {
	clearConfigEnv(t)

	cmd := buildRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "DISCORD_BOT_TOKEN") {
		t.Fatalf("Execute() error = %v, want missing token error", err)
	}
}
