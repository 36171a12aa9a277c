// Package status holds the playability model: the Up/Down/Unknown state, the
// targets that feed it, the evaluator that reduces probe results into a single
// verdict, and the in-memory store of what has been pushed to Discord.
package status

import (
	"fmt"
	"net"
	"strconv"
)

// Playability is the combined verdict for the monitored server.
type Playability int

const (
	// Unknown is the pre-first-check sentinel. It is never the result of an evaluation.
	Unknown Playability = iota
	// Up means every configured target accepted a connection.
	Up
	// Down means at least one configured target did not.
	Down
)

// String returns the lowercase name of the state.
func (p Playability) String() string {
	switch p {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Known reports whether p is Up or Down.
func (p Playability) Known() bool {
	return p == Up || p == Down
}

// Opposite returns the other known state. Unknown maps to itself.
func (p Playability) Opposite() Playability {
	switch p {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return Unknown
	}
}

// Target is one TCP service that must be reachable for the server to be playable.
type Target struct {
	Name string `yaml:"name" json:"name"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Address renders host:port, bracketing IPv6 literals.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns "name (host:port)".
func (t Target) String() string {
	if t.Name == "" {
		return t.Address()
	}
	return fmt.Sprintf("%s (%s)", t.Name, t.Address())
}

// Validate checks that the target can be dialed.
func (t Target) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("target %q: host is required", t.Name)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("target %q: port %d out of range", t.Name, t.Port)
	}
	return nil
}
