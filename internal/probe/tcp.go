package probe

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"time"
)

// dialFunc matches net.Dialer.DialContext.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// lookupFunc matches net.Resolver.LookupIPAddr.
type lookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// TCPProber dials the target directly.
//
// DNS names are resolved to every A and AAAA record. IPv4 addresses are tried
// first, then IPv6, each with its own timeout; the first completed handshake wins.
type TCPProber struct {
	logger *slog.Logger
	dial   dialFunc
	lookup lookupFunc
}

// NewTCPProber creates a prober using the system resolver.
func NewTCPProber(logger *slog.Logger) *TCPProber {
	if logger == nil {
		logger = slog.Default()
	}
	var d net.Dialer
	return &TCPProber{
		logger: logger.With("component", "probe", "strategy", "tcp"),
		dial:   d.DialContext,
		lookup: net.DefaultResolver.LookupIPAddr,
	}
}

// Probe implements Prober.
func (p *TCPProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ips, err := p.resolve(ctx, host, timeout)
	if err != nil {
		p.logger.Debug("resolve failed", "host", host, "error", err)
		return false
	}

	for _, ip := range ips {
		if ctx.Err() != nil {
			return false
		}
		addr := net.JoinHostPort(ip, strconv.Itoa(port))
		if p.attempt(ctx, addr, timeout) {
			return true
		}
	}
	return false
}

func (p *TCPProber) attempt(ctx context.Context, addr string, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(dialCtx, "tcp", addr)
	if err != nil {
		p.logger.Debug("connect failed", "addr", addr, "error", err,
			"latency_ms", time.Since(start).Milliseconds())
		return false
	}
	_ = conn.Close()
	p.logger.Debug("connect ok", "addr", addr, "latency_ms", time.Since(start).Milliseconds())
	return true
}

// resolve returns candidate IPs with IPv4 ahead of IPv6. Literal IPs are returned as-is.
func (p *TCPProber) resolve(ctx context.Context, host string, timeout time.Duration) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := p.lookup(lookupCtx, host)
	if err != nil {
		return nil, err
	}
	return orderAddrs(addrs), nil
}

func orderAddrs(addrs []net.IPAddr) []string {
	sorted := slices.Clone(addrs)
	slices.SortStableFunc(sorted, func(a, b net.IPAddr) int {
		return family(a.IP) - family(b.IP)
	})

	out := make([]string, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, a := range sorted {
		s := a.IP.String()
		if a.Zone != "" {
			s += "%" + a.Zone
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func family(ip net.IP) int {
	if ip.To4() != nil {
		return 4
	}
	return 6
}
