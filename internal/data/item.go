package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Item kinds: which of the hero's three inventories a definition lives in.
const (
	KindItem   = "item"
	KindCard   = "card"
	KindWeapon = "weapon"
)

// ItemDef is one entry of item_list.yaml.
type ItemDef struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Cost uint32 `yaml:"cost"` // soft-currency price; 0 = not tradeable

	// Card fields (zero for plain items/weapons).
	StrengthFactor float64 `yaml:"strength_factor"`
	BlockFactor    float64 `yaml:"block_factor"`
	CritChance     float64 `yaml:"crit_chance"`
	StrengthStat   uint8   `yaml:"strength_stat"` // 0=str 1=def 2=int 3=mana

	// Buff conversion (ActivateBuff): card → buff with this code/duration.
	BuffCode       uint8  `yaml:"buff_code"`
	BuffDurationMs uint32 `yaml:"buff_duration_ms"`
	BuffHits       uint8  `yaml:"buff_hits"`
	BuffAmount     uint16 `yaml:"buff_amount"`
}

// ItemTable indexes item definitions by id.
type ItemTable struct {
	byID map[uint32]*ItemDef
}

func (t *ItemTable) Get(id uint32) *ItemDef {
	return t.byID[id]
}

func (t *ItemTable) Count() int {
	return len(t.byID)
}

// NewItemTable builds a table from definitions directly (tests, bootstrap).
func NewItemTable(defs []ItemDef) *ItemTable {
	t := &ItemTable{byID: make(map[uint32]*ItemDef, len(defs))}
	for i := range defs {
		t.byID[defs[i].ID] = &defs[i]
	}
	return t
}

// LoadItemTable reads item_list.yaml.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var defs []ItemDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewItemTable(defs), nil
}
