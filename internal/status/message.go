package status

import (
	"fmt"
	"time"
)

// TimestampLayout matches the "[2025-03-01 09:15 PM EST]" prefix used on announcements.
const TimestampLayout = "2006-01-02 03:04 PM MST"

const (
	DefaultServerName = "Epoch Server"
	DefaultOnlineRole = "Online"
	DefaultDownRole   = "Down"

	PresenceOnline = "✅ Server Online"
	PresenceDown   = "🔴 Server Down"
)

// Messages renders the user-visible text for each state.
type Messages struct {
	// ServerName is shown when no mention role is available.
	ServerName string
	// OnlineRole and DownRole are the mutually exclusive guild role names.
	OnlineRole string
	DownRole   string
	// Location is the zone announcement timestamps are rendered in. Nil means UTC.
	Location *time.Location
}

// DefaultMessages returns the stock Epoch wording in UTC.
func DefaultMessages() Messages {
	return Messages{
		ServerName: DefaultServerName,
		OnlineRole: DefaultOnlineRole,
		DownRole:   DefaultDownRole,
	}
}

// Announcement renders the channel post for p. When mention is non-empty it
// replaces the server name.
func (m Messages) Announcement(p Playability, mention string, now time.Time) string {
	subject := mention
	if subject == "" {
		subject = m.serverName()
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := now.In(loc).Format(TimestampLayout)
	if p == Up {
		return fmt.Sprintf("[%s] ✅ %s - Online", stamp, subject)
	}
	return fmt.Sprintf("[%s] 🔴 %s - Down", stamp, subject)
}

// Presence returns the activity text for p.
func (m Messages) Presence(p Playability) string {
	if p == Up {
		return PresenceOnline
	}
	return PresenceDown
}

// Role returns the role that should be held in state p.
func (m Messages) Role(p Playability) string {
	if p == Up {
		return m.onlineRole()
	}
	return m.downRole()
}

func (m Messages) serverName() string {
	if m.ServerName == "" {
		return DefaultServerName
	}
	return m.ServerName
}

func (m Messages) onlineRole() string {
	if m.OnlineRole == "" {
		return DefaultOnlineRole
	}
	return m.OnlineRole
}

func (m Messages) downRole() string {
	if m.DownRole == "" {
		return DefaultDownRole
	}
	return m.DownRole
}
