package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
)

func TestHeroEncodeDecode(t *testing.T) {
	h := Hero{
		ID:                   42,
		Faction:              3,
		Level:                7,
		Action:               ActionWalk,
		Flags:                FlagDash | FlagChat,
		Position:             tetra.ID{Area: 2, Sub: 1234, Lod: 9},
		SecondPosition:       tetra.ID{Area: 2, Sub: 1235, Lod: 9},
		Vertex:               -3,
		Path:                 [6]uint8{1, 2, 3, 0, 0, 0},
		Time:                 5500,
		Health:               31,
		Experience:           160,
		AvailableSkillPoints: 2,
		StrengthPoints:       4,
		DefensePoints:        1,
		InventoryVersion:     9,
		Version:              12,
	}

	var b [packet.HeroSize]byte
	h.EncodeTo(b[:])
	got := DecodeHero(b[:])

	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, h.Faction, got.Faction)
	assert.Equal(t, h.Level, got.Level)
	assert.Equal(t, h.Action, got.Action)
	assert.Equal(t, h.Flags, got.Flags)
	assert.Equal(t, h.Position, got.Position)
	assert.Equal(t, h.SecondPosition, got.SecondPosition)
	assert.Equal(t, h.Vertex, got.Vertex)
	assert.Equal(t, h.Path, got.Path)
	assert.Equal(t, h.Time, got.Time)
	assert.Equal(t, h.Health, got.Health)
	assert.Equal(t, h.Experience, got.Experience)
	assert.Equal(t, h.AvailableSkillPoints, got.AvailableSkillPoints)
	assert.Equal(t, h.StrengthPoints, got.StrengthPoints)
	assert.Equal(t, h.InventoryVersion, got.InventoryVersion)
	assert.Equal(t, h.Version, got.Version)
}

func TestHeroDamageSaturates(t *testing.T) {
	h := Hero{Health: 10}
	h.ApplyDamage(4)
	assert.Equal(t, uint16(6), h.Health)
	h.ApplyDamage(100)
	assert.Equal(t, uint16(0), h.Health)
}

func TestHeroCloneIsDeep(t *testing.T) {
	h := Hero{ID: 1}
	h.Items.Add(5, SlotBag, 3)
	h.AddBuff(Buff{ID: 9, Hits: 2, ExpirationTime: 1000})

	c := h.Clone()
	c.Items.Add(5, SlotBag, 10)
	c.Buffs[0].Hits = 1

	assert.Equal(t, uint32(3), h.Items.Count(5, SlotBag))
	assert.Equal(t, uint8(2), h.Buffs[0].Hits)
}

func TestBumpInventoryBumpsBoth(t *testing.T) {
	var h Hero
	h.BumpInventory()
	assert.Equal(t, uint8(1), h.InventoryVersion)
	assert.Equal(t, uint8(1), h.Version)
}

func TestNameRoundTrip(t *testing.T) {
	name := EncodeName("Aldric")
	require.Equal(t, "Aldric", DecodeName(name))

	long := EncodeName("a-name-well-past-twenty-bytes")
	assert.Equal(t, "a-name-well-past-twe", DecodeName(long))
}
