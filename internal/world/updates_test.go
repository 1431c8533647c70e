package world

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
)

func TestChatEntryRoundTrip(t *testing.T) {
	c := ChatEntry{
		HeroID:  7,
		Faction: 2,
		Name:    EncodeName("Mira"),
		Text:    "到塔那邊集合",
	}
	var b [packet.ChatEntrySize]byte
	c.EncodeTo(b[:])
	got := DecodeChatEntry(b[:])
	require.Equal(t, c, got)
}

func TestChatEntryTruncatesLongText(t *testing.T) {
	c := ChatEntry{HeroID: 1, Text: strings.Repeat("x", ChatEntryTextMax+50)}
	var b [packet.ChatEntrySize]byte
	c.EncodeTo(b[:])
	got := DecodeChatEntry(b[:])
	assert.Len(t, got.Text, ChatEntryTextMax)
}

func TestAttackResultRoundTrip(t *testing.T) {
	a := AttackResult{
		TargetKind:   KindHero,
		TargetID:     9,
		AttackerID:   4,
		Result:       ResultCritical,
		Damage:       44,
		HealthAfter:  6,
		VersionAfter: 12,
		CardID:       101,
		XPAwarded:    13,
		LevelAfter:   5,
		SoulItem:     1,
	}
	var b [packet.AttackResultSize]byte
	a.EncodeTo(b[:])
	require.Equal(t, a, DecodeAttackResult(b[:]))
}

func TestTileRoundTripKeepsTerrain(t *testing.T) {
	tile := Tile{
		ID:           tetra.ID{Area: 1, Sub: 555, Lod: 9},
		Prop:         3,
		Faction:      1,
		Built:        true,
		Health:       3,
		Constitution: 2,
		Version:      8,
		Biome:        4,
		Heat:         200,
		Moisture:     90,
		Water:        1,
		Heights:      [4]uint32{10, 11, 12, 13},
		Normals: [4][3]float32{
			{0.5, -0.25, 1},
			{0, 0.75, -1},
			{0.125, 0.125, 0.125},
			{-0.5, 0, 0.5},
		},
	}
	var b [packet.TileSize]byte
	tile.EncodeTo(b[:])
	got := DecodeTile(b[:])

	assert.Equal(t, tile.ID, got.ID)
	assert.True(t, got.Built)
	assert.Equal(t, tile.Health, got.Health)
	assert.Equal(t, tile.Heights, got.Heights)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, tile.Normals[i][j], got.Normals[i][j], 1.0/65536)
		}
	}
}

func TestUpdateConstructorsTagRegions(t *testing.T) {
	h := &Hero{ID: 1, Position: tetra.ID{Area: 2, Sub: 4096, Lod: 9}}
	u := HeroUpdate(h)
	assert.Equal(t, packet.DataHero, u.Type)
	assert.Equal(t, h.Position.RegionKey(), u.Region)
	assert.Equal(t, uint8(0), u.Faction)
	assert.Len(t, u.Payload, packet.HeroSize)

	chat := ChatUpdate(&ChatEntry{HeroID: 1, Faction: 3})
	assert.Equal(t, uint8(3), chat.Faction)
	assert.Equal(t, uint16(0), chat.Region)

	status := StatusUpdate(&ServerStatus{})
	assert.Equal(t, uint16(0), status.Region)
	assert.Equal(t, uint8(0), status.Faction)
}
