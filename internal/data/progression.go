package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InitialSkillPointGrant is handed to every fresh hero before any level-ups.
const InitialSkillPointGrant = 4

// ProgressionLevel is one row of progression.yaml.
type ProgressionLevel struct {
	Level        uint8  `yaml:"level"`
	Constitution uint16 `yaml:"constitution"` // health cap at this level
	XPThreshold  uint32 `yaml:"xp_threshold"` // cumulative xp to reach this level
	SkillPoints  uint8  `yaml:"skill_points"` // points granted on reaching it
}

// ProgressionTable is the per-level growth curve, indexed by level.
type ProgressionTable struct {
	levels []ProgressionLevel // levels[i] holds level i+1
}

func NewProgressionTable(levels []ProgressionLevel) *ProgressionTable {
	return &ProgressionTable{levels: levels}
}

// LoadProgressionTable reads progression.yaml. Rows must be sorted by level
// starting at 1 with no gaps.
func LoadProgressionTable(path string) (*ProgressionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var levels []ProgressionLevel
	if err := yaml.Unmarshal(raw, &levels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, l := range levels {
		if int(l.Level) != i+1 {
			return nil, fmt.Errorf("%s: level rows out of order at index %d", path, i)
		}
	}
	return NewProgressionTable(levels), nil
}

// MaxLevel is the last defined level.
func (t *ProgressionTable) MaxLevel() uint8 {
	return uint8(len(t.levels))
}

// Constitution returns the health cap at a level. Out-of-range levels clamp
// to the nearest defined row.
func (t *ProgressionTable) Constitution(level uint8) uint16 {
	return t.row(level).Constitution
}

// XPThreshold returns the cumulative xp needed to reach a level.
func (t *ProgressionTable) XPThreshold(level uint8) uint32 {
	return t.row(level).XPThreshold
}

// SkillPoints returns the points granted on reaching a level.
func (t *ProgressionTable) SkillPoints(level uint8) uint8 {
	return t.row(level).SkillPoints
}

// TotalSkillPoints sums the initial grant plus every grant up to and
// including the given level: the most points a hero of that level can have
// allocated.
func (t *ProgressionTable) TotalSkillPoints(level uint8) int {
	total := InitialSkillPointGrant
	for l := uint8(1); l <= level && int(l) <= len(t.levels); l++ {
		total += int(t.levels[l-1].SkillPoints)
	}
	return total
}

func (t *ProgressionTable) row(level uint8) ProgressionLevel {
	if len(t.levels) == 0 {
		return ProgressionLevel{Level: 1, Constitution: 10}
	}
	if level < 1 {
		level = 1
	}
	if int(level) > len(t.levels) {
		level = uint8(len(t.levels))
	}
	return t.levels[level-1]
}

// Count returns the number of defined levels.
func (t *ProgressionTable) Count() int {
	return len(t.levels)
}
