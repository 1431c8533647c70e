package world

import "sync/atomic"

// SessionTable is the loggedInPlayers slot array: one atomic u64 per heroId,
// written by the HTTP login endpoint, read by the connection manager on every
// admission. Zero means "no valid session".
type SessionTable struct {
	slots [1 << 16]atomic.Uint64
}

func NewSessionTable() *SessionTable {
	return &SessionTable{}
}

// Set installs (or with 0, revokes) the hero's session id.
func (t *SessionTable) Set(heroID uint16, sessionID uint64) {
	t.slots[heroID].Store(sessionID)
}

// Get returns the hero's current session id, 0 when not logged in.
func (t *SessionTable) Get(heroID uint16) uint64 {
	return t.slots[heroID].Load()
}

// Valid reports whether the presented session id matches a live slot.
func (t *SessionTable) Valid(heroID uint16, sessionID uint64) bool {
	return sessionID != 0 && t.slots[heroID].Load() == sessionID
}
