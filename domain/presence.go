package domain

// PresenceEvent notifies peers that a user's online status changed.
// Never persisted.
type PresenceEvent struct {
	Identity UserID `json:"identity"`
	Online   bool   `json:"online"`
}

// RosterEntry pairs a known user with its current online status.
// A newly bound connection receives the full roster exactly once.
type RosterEntry struct {
	User   User `json:"user"`
	Online bool `json:"online"`
}
