package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddBuffReplacesSameID(t *testing.T) {
	var h Hero
	h.AddBuff(Buff{ID: 5, Hits: 3, ExpirationTime: 1000, Stat: BuffStrength, Amount: 4})
	h.AddBuff(Buff{ID: 5, Hits: 1, ExpirationTime: 2000, Stat: BuffStrength, Amount: 9})
	assert.Len(t, h.Buffs, 1)
	assert.Equal(t, uint16(9), h.Buffs[0].Amount)
}

func TestBuffSumSkipsExpiredAndOtherStats(t *testing.T) {
	var h Hero
	h.AddBuff(Buff{ID: 1, Hits: 1, ExpirationTime: 500, Stat: BuffStrength, Amount: 3})
	h.AddBuff(Buff{ID: 2, Hits: 1, ExpirationTime: 5000, Stat: BuffStrength, Amount: 7})
	h.AddBuff(Buff{ID: 3, Hits: 1, ExpirationTime: 5000, Stat: BuffDefense, Amount: 11})

	assert.Equal(t, 7, h.BuffSum(BuffStrength, 1000))
	assert.Equal(t, 11, h.BuffSum(BuffDefense, 1000))
}

func TestConsumeBuffsSpendsHits(t *testing.T) {
	var h Hero
	h.AddBuff(Buff{ID: 1, Hits: 2, ExpirationTime: 5000, Stat: BuffStrength, Amount: 3})
	h.AddBuff(Buff{ID: 2, Hits: 1, ExpirationTime: 5000, Stat: BuffStrength, Amount: 4})
	h.AddBuff(Buff{ID: 3, Hits: 1, ExpirationTime: 5000, Stat: BuffDefense, Amount: 5})

	h.ConsumeBuffs(BuffStrength, 1000)

	// Two-hit buff survives with one hit left; one-hit buff is gone; the
	// defense buff is untouched.
	assert.Len(t, h.Buffs, 2)
	assert.Equal(t, uint8(1), h.Buffs[0].Hits)
	assert.Equal(t, BuffDefense, h.Buffs[1].Stat)
}

func TestPruneBuffs(t *testing.T) {
	var h Hero
	h.AddBuff(Buff{ID: 1, Hits: 1, ExpirationTime: 100})
	h.AddBuff(Buff{ID: 2, Hits: 1, ExpirationTime: 900})
	h.PruneBuffs(500)
	assert.Len(t, h.Buffs, 1)
	assert.Equal(t, uint8(2), h.Buffs[0].ID)
}
