package world

import "github.com/tetraworld/server/internal/tetra"

// Kingdom ties a faction to its seat tile. Kingdoms are created at world
// init and mutated when towers change hands.
type Kingdom struct {
	ID       tetra.ID
	Faction  uint8
	LeaderID uint16 // hero currently holding the crown, 0 = none
	Towers   uint16 // towers currently owned by the faction
	Version  uint8
}

func (k *Kingdom) Bump() {
	k.Version++
}

func (k *Kingdom) Clone() *Kingdom {
	c := *k
	return &c
}
