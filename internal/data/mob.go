package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MobDef is one entry of mob_list.yaml.
type MobDef struct {
	DefinitionID uint16 `yaml:"definition_id"`
	Name         string `yaml:"name"`
	Level        uint8  `yaml:"level"`
	Health       uint16 `yaml:"health"`
	Strength     uint16 `yaml:"strength"`
	Defense      uint16 `yaml:"defense"`
}

// MobTable indexes mob templates by definition id.
type MobTable struct {
	byID map[uint16]*MobDef
}

func (t *MobTable) Get(id uint16) *MobDef {
	return t.byID[id]
}

func (t *MobTable) Count() int {
	return len(t.byID)
}

func NewMobTable(defs []MobDef) *MobTable {
	t := &MobTable{byID: make(map[uint16]*MobDef, len(defs))}
	for i := range defs {
		t.byID[defs[i].DefinitionID] = &defs[i]
	}
	return t
}

// LoadMobTable reads mob_list.yaml.
func LoadMobTable(path string) (*MobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var defs []MobDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewMobTable(defs), nil
}
