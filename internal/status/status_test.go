package status

import (
	"strings"
	"testing"
	"time"
)

var (
	auth  = Target{Name: "auth", Host: "game.example.net", Port: 3724}
	world = Target{Name: "world", Host: "game.example.net", Port: 8085}
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		results map[Target]bool
		want    Playability
	}{
		{"all up", map[Target]bool{auth: true, world: true}, Up},
		{"auth down", map[Target]bool{auth: false, world: true}, Down},
		{"world down", map[Target]bool{auth: true, world: false}, Down},
		{"both down", map[Target]bool{auth: false, world: false}, Down},
		{"single target up", map[Target]bool{auth: true}, Up},
		{"empty", map[Target]bool{}, Down},
		{"nil", nil, Down},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.results); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateGeneralizesToNTargets(t *testing.T) {
	results := map[Target]bool{}
	for port := 1000; port < 1010; port++ {
		results[Target{Name: "svc", Host: "h", Port: port}] = true
	}
	if got := Evaluate(results); got != Up {
		t.Fatalf("Evaluate() = %v, want up", got)
	}
	for tgt := range results {
		results[tgt] = false
		if got := Evaluate(results); got != Down {
			t.Errorf("Evaluate() with %v failing = %v, want down", tgt, got)
		}
		results[tgt] = true
	}
}

func TestFailedTargets(t *testing.T) {
	failed := FailedTargets([]Target{auth, world}, map[Target]bool{auth: true, world: false})
	if len(failed) != 1 || failed[0] != world {
		t.Fatalf("FailedTargets() = %v, want [world]", failed)
	}
}

func TestTargetAddressAndValidate(t *testing.T) {
	if got := auth.Address(); got != "game.example.net:3724" {
		t.Errorf("Address() = %q", got)
	}
	v6 := Target{Name: "v6", Host: "::1", Port: 80}
	if got := v6.Address(); got != "[::1]:80" {
		t.Errorf("Address() = %q, want [::1]:80", got)
	}
	if err := (Target{Name: "x", Port: 80}).Validate(); err == nil {
		t.Error("expected error for empty host")
	}
	if err := (Target{Name: "x", Host: "h", Port: 70000}).Validate(); err == nil {
		t.Error("expected error for out of range port")
	}
	if err := auth.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestPlayabilityHelpers(t *testing.T) {
	if Unknown.Known() {
		t.Error("Unknown.Known() = true")
	}
	if Up.Opposite() != Down || Down.Opposite() != Up || Unknown.Opposite() != Unknown {
		t.Error("Opposite() mismatch")
	}
	if Up.String() != "up" || Down.String() != "down" || Unknown.String() != "unknown" {
		t.Error("String() mismatch")
	}
}

func TestStoreStartsUnknown(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()
	if snap.Playable != Unknown || snap.Presence != "" || snap.Role != "" {
		t.Fatalf("new store snapshot = %+v", snap)
	}
}

func TestStoreRecords(t *testing.T) {
	s := NewStore()
	s.RecordPlayable(Up)
	s.RecordPresence(Up, PresenceOnline)
	s.RecordRole(Up, "Online")

	if !s.PresenceCurrent(Up, PresenceOnline) {
		t.Error("expected presence to be current for up")
	}
	if s.PresenceCurrent(Down, PresenceOnline) {
		t.Error("presence recorded for up must not count for down")
	}
	if !s.RoleCurrent(Up, "Online") {
		t.Error("expected role to be current")
	}

	s.RecordPlayable(Unknown)
	if s.Playable() != Up {
		t.Errorf("RecordPlayable(Unknown) changed state to %v", s.Playable())
	}
	s.RecordPresence(Unknown, "x")
	if s.Presence() != PresenceOnline {
		t.Errorf("RecordPresence(Unknown) changed presence to %q", s.Presence())
	}
}

func TestMessagesAnnouncement(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	m := Messages{ServerName: "Epoch Server", Location: ny}
	now := time.Date(2025, 1, 15, 20, 5, 0, 0, time.UTC)

	up := m.Announcement(Up, "", now)
	if up != "[2025-01-15 03:05 PM EST] ✅ Epoch Server - Online" {
		t.Errorf("Announcement(Up) = %q", up)
	}

	down := m.Announcement(Down, "<@&42>", now)
	if !strings.HasSuffix(down, "🔴 <@&42> - Down") {
		t.Errorf("Announcement(Down) = %q", down)
	}
}

func TestMessagesDefaults(t *testing.T) {
	var m Messages
	if m.Role(Up) != "Online" || m.Role(Down) != "Down" {
		t.Errorf("Role() defaults = %q/%q", m.Role(Up), m.Role(Down))
	}
	if m.Presence(Up) != PresenceOnline || m.Presence(Down) != PresenceDown {
		t.Error("Presence() mismatch")
	}
	got := m.Announcement(Up, "", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != "[2025-01-01 12:00 AM UTC] ✅ Epoch Server - Online" {
		t.Errorf("Announcement() = %q", got)
	}
}
