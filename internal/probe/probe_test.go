package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haasonsaas/realmwatch/internal/status"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listen(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestTCPProberOpenPort(t *testing.T) {
	host, port := listen(t)
	p := NewTCPProber(quietLogger())
	if !p.Probe(context.Background(), host, port, time.Second) {
		t.Fatal("expected open port to probe true")
	}
}

func TestTCPProberClosedPort(t *testing.T) {
	p := NewTCPProber(quietLogger())
	if p.Probe(context.Background(), "127.0.0.1", closedPort(t), time.Second) {
		t.Fatal("expected closed port to probe false")
	}
}

func TestTCPProberResolveFailure(t *testing.T) {
	p := NewTCPProber(quietLogger())
	p.lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	if p.Probe(context.Background(), "nonexistent.invalid", 80, time.Second) {
		t.Fatal("expected DNS failure to probe false")
	}
}

func TestTCPProberTriesIPv4First(t *testing.T) {
	p := NewTCPProber(quietLogger())
	p.lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return []net.IPAddr{
			{IP: net.ParseIP("2001:db8::1")},
			{IP: net.ParseIP("192.0.2.10")},
			{IP: net.ParseIP("2001:db8::2")},
			{IP: net.ParseIP("192.0.2.11")},
		}, nil
	}

	var mu sync.Mutex
	var dialed []string
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		dialed = append(dialed, address)
		mu.Unlock()
		return nil, errors.New("connection refused")
	}

	if p.Probe(context.Background(), "game.example.net", 3724, time.Second) {
		t.Fatal("expected all-refused probe to be false")
	}

	want := []string{
		"192.0.2.10:3724",
		"192.0.2.11:3724",
		"[2001:db8::1]:3724",
		"[2001:db8::2]:3724",
	}
	if len(dialed) != len(want) {
		t.Fatalf("dialed %v, want %v", dialed, want)
	}
	for i := range want {
		if dialed[i] != want[i] {
			t.Errorf("dial[%d] = %s, want %s", i, dialed[i], want[i])
		}
	}
}

func TestTCPProberFirstSuccessWins(t *testing.T) {
	host, port := listen(t)
	p := NewTCPProber(quietLogger())
	p.lookup = func(ctx context.Context, h string) ([]net.IPAddr, error) {
		return []net.IPAddr{{IP: net.ParseIP(host)}, {IP: net.ParseIP("::1")}}, nil
	}

	var calls atomic.Int32
	var d net.Dialer
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		calls.Add(1)
		return d.DialContext(ctx, network, address)
	}

	if !p.Probe(context.Background(), "game.example.net", port, time.Second) {
		t.Fatal("expected probe true")
	}
	if calls.Load() != 1 {
		t.Errorf("dial calls = %d, want 1", calls.Load())
	}
}

func TestTCPProberTimeoutIsPerAttempt(t *testing.T) {
	p := NewTCPProber(quietLogger())
	p.lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return []net.IPAddr{{IP: net.ParseIP("192.0.2.1")}, {IP: net.ParseIP("192.0.2.2")}}, nil
	}
	var deadlines []time.Duration
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		dl, ok := ctx.Deadline()
		if !ok {
			t.Error("dial context has no deadline")
		}
		deadlines = append(deadlines, time.Until(dl))
		return nil, context.DeadlineExceeded
	}

	p.Probe(context.Background(), "game.example.net", 80, 200*time.Millisecond)
	if len(deadlines) != 2 {
		t.Fatalf("attempts = %d, want 2", len(deadlines))
	}
	for i, d := range deadlines {
		if d <= 0 || d > 200*time.Millisecond {
			t.Errorf("attempt %d deadline = %v, want within (0, 200ms]", i, d)
		}
	}
}

func TestTCPProberCancelledContext(t *testing.T) {
	host, port := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewTCPProber(quietLogger())
	if p.Probe(ctx, host, port, time.Second) {
		t.Fatal("expected cancelled context to probe false")
	}
}

func TestAllProbesEveryTarget(t *testing.T) {
	targets := []status.Target{
		{Name: "auth", Host: "h", Port: 3724},
		{Name: "world", Host: "h", Port: 8085},
		{Name: "extra", Host: "h", Port: 9000},
	}
	p := ProberFunc(func(ctx context.Context, host string, port int, timeout time.Duration) bool {
		return port != 8085
	})

	results := All(context.Background(), p, targets, time.Second)
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if !results[targets[0]] || results[targets[1]] || !results[targets[2]] {
		t.Errorf("results = %v", results)
	}
	if status.Evaluate(results) != status.Down {
		t.Error("expected down when world fails")
	}
}

func TestAllUsesDefaultTimeout(t *testing.T) {
	var got time.Duration
	p := ProberFunc(func(ctx context.Context, host string, port int, timeout time.Duration) bool {
		got = timeout
		return true
	})
	All(context.Background(), p, []status.Target{{Name: "a", Host: "h", Port: 1}}, 0)
	if got != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultTimeout)
	}
}

type countingProber struct {
	calls  atomic.Int32
	result bool
}

func (c *countingProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	c.calls.Add(1)
	return c.result
}

func TestCommandProberSuccess(t *testing.T) {
	fallback := &countingProber{}
	p := NewCommandProber("nc", fallback, quietLogger())
	p.lookPath = func(string) (string, error) { return "/usr/bin/nc", nil }

	var gotArgs []string
	p.run = func(ctx context.Context, name string, args ...string) error {
		gotArgs = append([]string{name}, args...)
		return nil
	}

	if !p.Probe(context.Background(), "game.example.net", 3724, 2500*time.Millisecond) {
		t.Fatal("expected true on exit 0")
	}
	want := []string{"/usr/bin/nc", "-z", "-w", "3", "game.example.net", strconv.Itoa(3724)}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("arg[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
	if fallback.calls.Load() != 0 {
		t.Error("fallback should not run on success")
	}
}

func TestCommandProberMissingBinaryFallsBack(t *testing.T) {
	fallback := &countingProber{result: true}
	p := NewCommandProber("nc", fallback, quietLogger())
	p.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	p.run = func(ctx context.Context, name string, args ...string) error {
		t.Fatal("run should not be called when binary is missing")
		return nil
	}

	if !p.Probe(context.Background(), "h", 1, time.Second) {
		t.Fatal("expected fallback result")
	}
	if fallback.calls.Load() != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls.Load())
	}
}

func TestCommandProberFailureFallsBack(t *testing.T) {
	fallback := &countingProber{result: false}
	p := NewCommandProber("", fallback, quietLogger())
	p.lookPath = func(string) (string, error) { return "/bin/nc", nil }
	p.run = func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	}

	if p.Probe(context.Background(), "h", 1, time.Second) {
		t.Fatal("expected false")
	}
	if fallback.calls.Load() != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls.Load())
	}
}

func TestCommandProberNoFallback(t *testing.T) {
	p := NewCommandProber("nc", nil, quietLogger())
	p.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	if p.Probe(context.Background(), "h", 1, time.Second) {
		t.Fatal("expected false without fallback")
	}
}
