package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProgression() *ProgressionTable {
	return NewProgressionTable([]ProgressionLevel{
		{Level: 1, Constitution: 20, XPThreshold: 0, SkillPoints: 0},
		{Level: 2, Constitution: 24, XPThreshold: 10, SkillPoints: 2},
		{Level: 3, Constitution: 28, XPThreshold: 25, SkillPoints: 2},
		{Level: 4, Constitution: 34, XPThreshold: 50, SkillPoints: 3},
	})
}

func TestProgressionLookups(t *testing.T) {
	p := testProgression()
	assert.Equal(t, uint8(4), p.MaxLevel())
	assert.Equal(t, uint16(20), p.Constitution(1))
	assert.Equal(t, uint16(34), p.Constitution(4))
	assert.Equal(t, uint32(25), p.XPThreshold(3))
	assert.Equal(t, uint8(3), p.SkillPoints(4))
}

func TestProgressionClampsOutOfRange(t *testing.T) {
	p := testProgression()
	assert.Equal(t, uint16(20), p.Constitution(0))
	assert.Equal(t, uint16(34), p.Constitution(200))
}

func TestTotalSkillPoints(t *testing.T) {
	p := testProgression()
	// Initial grant plus every level-up credit so far.
	assert.Equal(t, InitialSkillPointGrant, p.TotalSkillPoints(1))
	assert.Equal(t, InitialSkillPointGrant+2, p.TotalSkillPoints(2))
	assert.Equal(t, InitialSkillPointGrant+7, p.TotalSkillPoints(4))
	assert.Equal(t, InitialSkillPointGrant+7, p.TotalSkillPoints(50))
}

func TestEmptyTableFallback(t *testing.T) {
	p := NewProgressionTable(nil)
	assert.Equal(t, uint16(10), p.Constitution(3))
	assert.Equal(t, uint8(0), p.MaxLevel())
}
