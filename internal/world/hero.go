package world

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// Hero actions.
const (
	ActionIdle       uint8 = 0
	ActionWalk       uint8 = 1
	ActionAttackTile uint8 = 2
	ActionAttackHero uint8 = 3
	ActionCollect    uint8 = 4
	ActionBuild      uint8 = 5
	ActionTouch      uint8 = 6
	ActionCast       uint8 = 7
	ActionStruggle   uint8 = 8
	ActionTyping     uint8 = 9
)

// Hero flag bits.
const (
	FlagDash             uint8 = 1 << 0
	FlagChat             uint8 = 1 << 1
	FlagInsideTower      uint8 = 1 << 2
	FlagTryingEnterTower uint8 = 1 << 3
)

// Hero is a connected (or persisted) player character. Mutated only by the
// gameplay dispatcher goroutine; reads elsewhere go through cloned deltas.
type Hero struct {
	ID      uint16
	Faction uint8
	Name    [5]uint32

	// Current motion segment.
	Position       tetra.ID
	SecondPosition tetra.ID
	Vertex         int32
	Path           [6]uint8
	Time           uint32

	Action uint8
	Flags  uint8

	Level               uint8
	Experience          uint32
	AvailableSkillPoints uint8

	StrengthPoints     uint8
	DefensePoints      uint8
	IntelligencePoints uint8
	ManaPoints         uint8

	BaseStrength     uint16
	BaseDefense      uint16
	BaseIntelligence uint16
	BaseMana         uint16

	Health uint16

	Items   Inventory
	Cards   Inventory
	Weapons Inventory
	Coins   uint32

	InventoryVersion uint8
	Version          uint8

	Buffs []Buff
}

// Bump marks a mutation: the entity version is monotonically non-decreasing
// and wraps at 255 (clients compare with wraparound in mind).
func (h *Hero) Bump() {
	h.Version++
}

// BumpInventory bumps both the inventory version and the entity version.
func (h *Hero) BumpInventory() {
	h.InventoryVersion++
	h.Version++
}

func (h *Hero) HasFlag(f uint8) bool { return h.Flags&f != 0 }
func (h *Hero) SetFlag(f uint8)      { h.Flags |= f }
func (h *Hero) ClearFlag(f uint8)    { h.Flags &^= f }

// AddBuff replaces any same-id buff.
func (h *Hero) AddBuff(b Buff) {
	h.Buffs = addBuff(h.Buffs, b)
}

// PruneBuffs drops expired buffs; lazy, called at action time.
func (h *Hero) PruneBuffs(nowMs uint32) {
	h.Buffs = pruneBuffs(h.Buffs, nowMs)
}

// BuffSum totals live buff contributions for a stat.
func (h *Hero) BuffSum(stat BuffStat, nowMs uint32) int {
	return sumBuffs(h.Buffs, stat, nowMs)
}

// ConsumeBuffs spends one hit on every live buff feeding the stat.
func (h *Hero) ConsumeBuffs(stat BuffStat, nowMs uint32) {
	h.Buffs = consumeBuffs(h.Buffs, stat, nowMs)
}

// BaseStat returns the base value for a stat kind.
func (h *Hero) BaseStat(stat BuffStat) uint16 {
	switch stat {
	case BuffStrength:
		return h.BaseStrength
	case BuffDefense:
		return h.BaseDefense
	case BuffIntelligence:
		return h.BaseIntelligence
	default:
		return h.BaseMana
	}
}

// StatPoints returns the allocated points for a stat kind.
func (h *Hero) StatPoints(stat BuffStat) uint8 {
	switch stat {
	case BuffStrength:
		return h.StrengthPoints
	case BuffDefense:
		return h.DefensePoints
	case BuffIntelligence:
		return h.IntelligencePoints
	default:
		return h.ManaPoints
	}
}

// ApplyDamage saturates at zero.
func (h *Hero) ApplyDamage(dmg uint16) {
	if dmg >= h.Health {
		h.Health = 0
	} else {
		h.Health -= dmg
	}
}

// Clone deep-copies the hero for delta emission and persistence snapshots.
func (h *Hero) Clone() *Hero {
	c := *h
	c.Items = h.Items.Clone()
	c.Cards = h.Cards.Clone()
	c.Weapons = h.Weapons.Clone()
	c.Buffs = append([]Buff(nil), h.Buffs...)
	return &c
}

// EncodeTo writes the 50-byte wire snapshot (packet.HeroSize bytes).
func (h *Hero) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], h.ID)
	b[2] = h.Faction
	b[3] = h.Level
	b[4] = h.Action
	b[5] = h.Flags
	h.Position.Encode(b[6:12])
	h.SecondPosition.Encode(b[12:18])
	binary.LittleEndian.PutUint32(b[18:22], uint32(h.Vertex))
	copy(b[22:28], h.Path[:])
	binary.LittleEndian.PutUint32(b[28:32], h.Time)
	binary.LittleEndian.PutUint16(b[32:34], h.Health)
	binary.LittleEndian.PutUint32(b[34:38], h.Experience)
	b[38] = h.AvailableSkillPoints
	b[39] = h.StrengthPoints
	b[40] = h.DefensePoints
	b[41] = h.IntelligencePoints
	b[42] = h.ManaPoints
	b[43] = h.InventoryVersion
	b[44] = h.Version
	s := buffSummary(h.Buffs)
	copy(b[45:50], s[:])
}

// DecodeHero reads the 50-byte wire snapshot. Inventories and base stats do
// not travel in the snapshot; they arrive via the inventory reply path.
func DecodeHero(b []byte) Hero {
	var h Hero
	h.ID = binary.LittleEndian.Uint16(b[0:2])
	h.Faction = b[2]
	h.Level = b[3]
	h.Action = b[4]
	h.Flags = b[5]
	h.Position = tetra.Decode(b[6:12])
	h.SecondPosition = tetra.Decode(b[12:18])
	h.Vertex = int32(binary.LittleEndian.Uint32(b[18:22]))
	copy(h.Path[:], b[22:28])
	h.Time = binary.LittleEndian.Uint32(b[28:32])
	h.Health = binary.LittleEndian.Uint16(b[32:34])
	h.Experience = binary.LittleEndian.Uint32(b[34:38])
	h.AvailableSkillPoints = b[38]
	h.StrengthPoints = b[39]
	h.DefensePoints = b[40]
	h.IntelligencePoints = b[41]
	h.ManaPoints = b[42]
	h.InventoryVersion = b[43]
	h.Version = b[44]
	for i := 0; i < BuffSummarySlots; i++ {
		if b[45+i] != 0 {
			h.Buffs = append(h.Buffs, Buff{ID: b[45+i], Hits: 1, ExpirationTime: ^uint32(0)})
		}
	}
	return h
}
