package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
)

func TestTowerConquestAtThreshold(t *testing.T) {
	tw := Tower{Faction: 1, EventID: 3}

	assert.False(t, tw.AddDamage(3, 2, FinishThreshold-1))
	assert.Equal(t, uint8(1), tw.Faction)

	// The finishing point flips ownership, advances the event and clears
	// the ledger.
	assert.True(t, tw.AddDamage(3, 2, 1))
	assert.Equal(t, uint8(2), tw.Faction)
	assert.Equal(t, uint16(4), tw.EventID)
	assert.Empty(t, tw.Ledger)
}

func TestTowerStaleEventIgnored(t *testing.T) {
	tw := Tower{Faction: 1, EventID: 5}
	assert.False(t, tw.AddDamage(4, 2, FinishThreshold))
	assert.Empty(t, tw.Ledger)
	assert.Equal(t, uint8(1), tw.Faction)
}

func TestTowerRepairSaturates(t *testing.T) {
	tw := Tower{Faction: 1, EventID: 0}
	tw.AddDamage(0, 2, 100)
	tw.AddDamage(0, 3, 40)

	tw.Repair(60)
	assert.Equal(t, uint16(40), tw.Ledger[0].Amount)
	assert.Equal(t, uint16(0), tw.Ledger[1].Amount)

	// Rows are kept at zero so the keys stay distinct.
	assert.Len(t, tw.Ledger, 2)
}

func TestTowerEncodeDecode(t *testing.T) {
	tw := Tower{
		ID:           tetra.ID{Area: 4, Sub: 99, Lod: 7},
		Faction:      2,
		EventID:      17,
		Version:      5,
		Health:       300,
		Constitution: 600,
	}
	tw.AddDamage(17, 3, 120)
	tw.AddDamage(17, 4, 80)

	var b [packet.TowerSize]byte
	tw.EncodeTo(b[:])
	got := DecodeTower(b[:])

	require.Equal(t, tw.ID, got.ID)
	assert.Equal(t, tw.Faction, got.Faction)
	assert.Equal(t, tw.EventID, got.EventID)
	assert.Equal(t, tw.Ledger, got.Ledger)
}
