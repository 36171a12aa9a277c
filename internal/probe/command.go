package probe

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"time"
)

// DefaultCommand is the diagnostic binary CommandProber shells out to.
const DefaultCommand = "nc"

// runFunc executes name with args and returns its error (nil on exit status 0).
type runFunc func(ctx context.Context, name string, args ...string) error

// CommandProber asks an external tool ("nc -z -w N host port" by default)
// and falls back to another Prober when the tool is missing, fails to start,
// or reports the port closed.
type CommandProber struct {
	command  string
	fallback Prober
	logger   *slog.Logger

	lookPath func(string) (string, error)
	run      runFunc
}

// NewCommandProber creates a prober that shells out to command. An empty
// command selects DefaultCommand. fallback may be nil, in which case a
// failed command is final.
func NewCommandProber(command string, fallback Prober, logger *slog.Logger) *CommandProber {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandProber{
		command:  command,
		fallback: fallback,
		logger:   logger.With("component", "probe", "strategy", "command"),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Probe implements Prober.
func (p *CommandProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	path, err := p.lookPath(p.command)
	if err != nil {
		p.logger.Debug("probe command unavailable", "command", p.command, "error", err)
		return p.fallbackProbe(ctx, host, port, timeout)
	}

	// nc's -w only bounds the connect; the context bounds the process.
	runCtx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	secs := int(math.Ceil(timeout.Seconds()))
	err = p.run(runCtx, path, "-z", "-w", strconv.Itoa(secs), host, strconv.Itoa(port))
	if err == nil {
		return true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.logger.Debug("probe command reported closed", "host", host, "port", port, "exit_code", exitErr.ExitCode())
	} else {
		p.logger.Debug("probe command failed", "host", host, "port", port, "error", err)
	}
	if ctx.Err() != nil {
		return false
	}
	return p.fallbackProbe(ctx, host, port, timeout)
}

func (p *CommandProber) fallbackProbe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if p.fallback == nil {
		return false
	}
	return p.fallback.Probe(ctx, host, port, timeout)
}
