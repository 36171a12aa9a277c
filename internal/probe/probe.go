// Package probe answers one question: did host:port accept a TCP connection
// within the timeout? Failures of any kind are reported as false, never as
// errors, so callers can treat every strategy the same way.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/realmwatch/internal/status"
)

// DefaultTimeout bounds a single connection attempt.
const DefaultTimeout = 5 * time.Second

// Prober checks whether a port accepts connections.
//
// Implementations must be safe for concurrent use and must map every network
// failure (DNS, refusal, timeout, unreachable) to false.
type Prober interface {
	Probe(ctx context.Context, host string, port int, timeout time.Duration) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, host string, port int, timeout time.Duration) bool

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return f(ctx, host, port, timeout)
}

// All probes every target concurrently and waits for all of them.
// Results are independent across targets.
func All(ctx context.Context, p Prober, targets []status.Target, timeout time.Duration) map[status.Target]bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	results := make(map[status.Target]bool, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(t status.Target) {
			defer wg.Done()
			ok := p.Probe(ctx, t.Host, t.Port, timeout)
			mu.Lock()
			results[t] = ok
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	return results
}
