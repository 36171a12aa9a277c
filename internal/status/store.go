package status

// Store is the reconciler's memory of what it last acted on and what it last
// successfully pushed to Discord. It lives for the process lifetime only; a
// restart starts again from Unknown.
//
// Store is not safe for concurrent use. The reconcile loop is its only
// mutator; other goroutines read published Snapshots instead.
type Store struct {
	playable Playability

	presence    string
	presenceFor Playability

	role    string
	roleFor Playability
}

// Snapshot is a copy of the store's fields.
type Snapshot struct {
	Playable Playability
	Presence string
	Role     string
}

// NewStore returns an empty store in the Unknown state.
func NewStore() *Store {
	return &Store{}
}

// Playable returns the last state acted upon.
func (s *Store) Playable() Playability {
	return s.playable
}

// Presence returns the last presence text confirmed by Discord, or "".
func (s *Store) Presence() string {
	return s.presence
}

// Role returns the last role name confirmed as held, or "".
func (s *Store) Role() string {
	return s.role
}

// RecordPlayable marks p as acted upon. Unknown is ignored: the store never
// goes back to the sentinel once a verdict has been recorded.
func (s *Store) RecordPlayable(p Playability) {
	if !p.Known() {
		return
	}
	s.playable = p
}

// RecordPresence stores text as the confirmed presence for state p.
func (s *Store) RecordPresence(p Playability, text string) {
	if !p.Known() {
		return
	}
	s.presence = text
	s.presenceFor = p
}

// RecordRole stores name as the role confirmed as held for state p.
func (s *Store) RecordRole(p Playability, name string) {
	if !p.Known() {
		return
	}
	s.role = name
	s.roleFor = p
}

// PresenceCurrent reports whether the confirmed presence text is text and was
// pushed for state p.
func (s *Store) PresenceCurrent(p Playability, text string) bool {
	return s.presence != "" && s.presenceFor == p && s.presence == text
}

// RoleCurrent reports whether the confirmed role is name and was applied for state p.
func (s *Store) RoleCurrent(p Playability, name string) bool {
	return s.role != "" && s.roleFor == p && s.role == name
}

// Snapshot returns a copy of the current fields.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Playable: s.playable,
		Presence: s.presence,
		Role:     s.role,
	}
}
