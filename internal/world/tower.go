package world

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// FinishThreshold is the accumulated damage at which a faction takes a tower.
const FinishThreshold = 600

// MaxLedgerWire caps the damage ledger on the wire.
const MaxLedgerWire = 10

// LedgerEntry records damage dealt to a tower by one faction during one event.
type LedgerEntry struct {
	EventID uint16
	Faction uint8
	Amount  uint16
}

// Tower is a contested structure. It accumulates damage per (eventId,
// faction); when any faction's total reaches FinishThreshold the event
// finishes: ownership flips, the event id increments, the ledger clears.
type Tower struct {
	ID      tetra.ID
	Faction uint8
	EventID uint16
	Version uint8

	Health       uint16
	Constitution uint16

	Ledger []LedgerEntry
}

func (t *Tower) Bump() {
	t.Version++
}

// entry finds or creates the ledger row for (eventId, faction).
func (t *Tower) entry(eventID uint16, faction uint8) *LedgerEntry {
	for i := range t.Ledger {
		if t.Ledger[i].EventID == eventID && t.Ledger[i].Faction == faction {
			return &t.Ledger[i]
		}
	}
	t.Ledger = append(t.Ledger, LedgerEntry{EventID: eventID, Faction: faction})
	return &t.Ledger[len(t.Ledger)-1]
}

// AddDamage credits damage to the attacker faction on the current event and
// reports whether the event finished (ownership flipped).
func (t *Tower) AddDamage(eventID uint16, faction uint8, amount uint16) bool {
	if eventID != t.EventID {
		return false
	}
	e := t.entry(eventID, faction)
	e.Amount += amount
	if e.Amount >= FinishThreshold {
		t.finishEvent(faction)
		return true
	}
	return false
}

// Repair subtracts from opposing ledger rows on the current event; only the
// owning faction repairs. Amounts saturate at zero but rows are kept so the
// (eventId, faction) keys stay distinct.
func (t *Tower) Repair(amount uint16) {
	for i := range t.Ledger {
		if t.Ledger[i].EventID != t.EventID || t.Ledger[i].Faction == t.Faction {
			continue
		}
		if amount >= t.Ledger[i].Amount {
			t.Ledger[i].Amount = 0
		} else {
			t.Ledger[i].Amount -= amount
		}
	}
}

// finishEvent flips ownership to the leading faction, advances the event and
// clears the whole ledger (stale-event rows included).
func (t *Tower) finishEvent(leader uint8) {
	t.Faction = leader
	t.EventID++
	t.Ledger = t.Ledger[:0]
}

func (t *Tower) Clone() *Tower {
	c := *t
	c.Ledger = append([]LedgerEntry(nil), t.Ledger...)
	return &c
}

// EncodeTo writes the 65-byte wire snapshot (packet.TowerSize bytes). The
// ledger is capped at MaxLedgerWire entries on the wire.
func (t *Tower) EncodeTo(b []byte) {
	t.ID.Encode(b[0:6])
	b[6] = t.Faction
	binary.LittleEndian.PutUint16(b[7:9], t.EventID)
	b[9] = t.Version
	binary.LittleEndian.PutUint16(b[10:12], t.Health)
	binary.LittleEndian.PutUint16(b[12:14], t.Constitution)
	n := len(t.Ledger)
	if n > MaxLedgerWire {
		n = MaxLedgerWire
	}
	b[14] = uint8(n)
	off := 15
	for i := 0; i < MaxLedgerWire; i++ {
		var e LedgerEntry
		if i < n {
			e = t.Ledger[i]
		}
		binary.LittleEndian.PutUint16(b[off:], e.EventID)
		b[off+2] = e.Faction
		binary.LittleEndian.PutUint16(b[off+3:], e.Amount)
		off += 5
	}
}

// DecodeTower reads the 65-byte wire snapshot.
func DecodeTower(b []byte) Tower {
	var t Tower
	t.ID = tetra.Decode(b[0:6])
	t.Faction = b[6]
	t.EventID = binary.LittleEndian.Uint16(b[7:9])
	t.Version = b[9]
	t.Health = binary.LittleEndian.Uint16(b[10:12])
	t.Constitution = binary.LittleEndian.Uint16(b[12:14])
	n := int(b[14])
	if n > MaxLedgerWire {
		n = MaxLedgerWire
	}
	off := 15
	for i := 0; i < n; i++ {
		t.Ledger = append(t.Ledger, LedgerEntry{
			EventID: binary.LittleEndian.Uint16(b[off:]),
			Faction: b[off+2],
			Amount:  binary.LittleEndian.Uint16(b[off+3:]),
		})
		off += 5
	}
	return t
}
