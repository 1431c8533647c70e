package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleJoinFillsSlots(t *testing.T) {
	var b Battle
	for i := 0; i < MaxBattleParticipants; i++ {
		slot, joined, ok := b.Join(uint16(100 + i))
		require.True(t, ok)
		require.True(t, joined)
		require.Equal(t, i, slot)
	}

	// Ninth joiner is rejected without mutation.
	before := b.Version
	_, _, ok := b.Join(999)
	assert.False(t, ok)
	assert.Equal(t, before, b.Version)
}

func TestBattleJoinIdempotent(t *testing.T) {
	var b Battle
	b.Join(100)
	v := b.Version
	slot, joined, ok := b.Join(100)
	assert.True(t, ok)
	assert.False(t, joined)
	assert.Equal(t, 0, slot)
	assert.Equal(t, v, b.Version)
}

func TestBattleTurnFlow(t *testing.T) {
	var b Battle
	b.Turn = 1
	b.Join(1)
	b.Join(2)

	assert.True(t, b.PlayTurn(1, 100))
	assert.False(t, b.PlayTurn(1, 100)) // already played
	assert.False(t, b.PlayTurn(3, 100)) // not a participant
	assert.False(t, b.AllPlayed())

	assert.True(t, b.PlayTurn(2, 101))
	assert.True(t, b.AllPlayed())
	assert.Equal(t, uint32(101), b.LastEnemyCard)

	b.Advance(10_000)
	assert.Equal(t, uint8(2), b.Turn)
	assert.Equal(t, uint8(0), b.TurnLog)
	assert.Equal(t, uint32(10_000+TurnDuration), b.TurnTime)
	assert.Equal(t, 2, b.ParticipantCount())
}

func TestBattleAdvanceDropsSilent(t *testing.T) {
	var b Battle
	b.Turn = 1
	b.Join(1)
	b.Join(2)
	b.PlayTurn(1, 100)

	b.Advance(10_000)
	assert.Equal(t, 1, b.ParticipantCount())
	assert.Equal(t, 0, b.Slot(1))
	assert.Equal(t, -1, b.Slot(2))
}
