package world

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// Mob is a creature instance owned by its region's mob map. A mob at
// health 0 with a lapsed ownership window may be overwritten by a fresh
// spawn on its tile.
type Mob struct {
	ID           uint32
	DefinitionID uint16
	Level        uint8
	Version      uint8

	OwnerID       uint16 // hero who most recently claimed control, 0 = unowned
	OwnershipTime uint32 // wall-clock ms of the last control refresh

	Start tetra.ID
	End   tetra.ID
	Path  [6]uint8
	Time  uint32

	Health uint16

	Buffs []Buff
}

func (m *Mob) Bump() {
	m.Version++
}

// Owned reports whether a control claim is still live against the given
// control window (ms).
func (m *Mob) Owned(nowMs uint32, controlWindowMs uint32) bool {
	if m.OwnerID == 0 {
		return false
	}
	return nowMs < m.OwnershipTime+controlWindowMs
}

func (m *Mob) AddBuff(b Buff) {
	m.Buffs = addBuff(m.Buffs, b)
}

func (m *Mob) BuffSum(stat BuffStat, nowMs uint32) int {
	return sumBuffs(m.Buffs, stat, nowMs)
}

func (m *Mob) ConsumeBuffs(stat BuffStat, nowMs uint32) {
	m.Buffs = consumeBuffs(m.Buffs, stat, nowMs)
}

func (m *Mob) ApplyDamage(dmg uint16) {
	if dmg >= m.Health {
		m.Health = 0
	} else {
		m.Health -= dmg
	}
}

func (m *Mob) Clone() *Mob {
	c := *m
	c.Buffs = append([]Buff(nil), m.Buffs...)
	return &c
}

// EncodeTo writes the 43-byte wire snapshot (packet.MobSize bytes).
func (m *Mob) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], m.ID)
	binary.LittleEndian.PutUint16(b[4:6], m.DefinitionID)
	b[6] = m.Level
	b[7] = m.Version
	binary.LittleEndian.PutUint16(b[8:10], m.OwnerID)
	binary.LittleEndian.PutUint32(b[10:14], m.OwnershipTime)
	m.Start.Encode(b[14:20])
	m.End.Encode(b[20:26])
	copy(b[26:32], m.Path[:])
	binary.LittleEndian.PutUint32(b[32:36], m.Time)
	binary.LittleEndian.PutUint16(b[36:38], m.Health)
	s := buffSummary(m.Buffs)
	copy(b[38:43], s[:])
}

// DecodeMob reads the 43-byte wire snapshot.
func DecodeMob(b []byte) Mob {
	var m Mob
	m.ID = binary.LittleEndian.Uint32(b[0:4])
	m.DefinitionID = binary.LittleEndian.Uint16(b[4:6])
	m.Level = b[6]
	m.Version = b[7]
	m.OwnerID = binary.LittleEndian.Uint16(b[8:10])
	m.OwnershipTime = binary.LittleEndian.Uint32(b[10:14])
	m.Start = tetra.Decode(b[14:20])
	m.End = tetra.Decode(b[20:26])
	copy(m.Path[:], b[26:32])
	m.Time = binary.LittleEndian.Uint32(b[32:36])
	m.Health = binary.LittleEndian.Uint16(b[36:38])
	for i := 0; i < BuffSummarySlots; i++ {
		if b[38+i] != 0 {
			m.Buffs = append(m.Buffs, Buff{ID: b[38+i], Hits: 1, ExpirationTime: ^uint32(0)})
		}
	}
	return m
}
