// Package scripting hosts the Lua VM that supplies combat balance numbers.
// Damage formula *shape* is Go; the per-card factors feeding it are
// configuration and live in scripts so they can change without a rebuild.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only (the
// gameplay dispatcher); hot-reload would swap the whole engine.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory tree. A missing directory is not an error — the combat resolver
// falls back to the static item table.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"core", "combat", "world"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// CardFactors is the per-card balance block the combat resolver consumes.
type CardFactors struct {
	StrengthFactor float64
	BlockFactor    float64
	CritChance     float64
	StrengthStat   uint8 // 0=str 1=def 2=int 3=mana
}

// CombatFactors calls the Lua combat_factors(card_id) function. Returns
// ok=false when the script or function is absent so the caller can fall back
// to the static table.
func (e *Engine) CombatFactors(cardID uint32) (CardFactors, bool) {
	fn := e.vm.GetGlobal("combat_factors")
	if fn == lua.LNil {
		return CardFactors{}, false
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(cardID)); err != nil {
		e.log.Error("lua combat_factors error", zap.Error(err))
		return CardFactors{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return CardFactors{}, false
	}

	return CardFactors{
		StrengthFactor: float64(lua.LVAsNumber(rt.RawGetString("strength_factor"))),
		BlockFactor:    float64(lua.LVAsNumber(rt.RawGetString("block_factor"))),
		CritChance:     float64(lua.LVAsNumber(rt.RawGetString("crit_chance"))),
		StrengthStat:   uint8(lua.LVAsNumber(rt.RawGetString("strength_stat"))),
	}, true
}

// GrowthFactor calls the Lua growth_factor() tunable (stat points → stat
// value multiplier). Falls back to the conventional 2.2.
func (e *Engine) GrowthFactor() float64 {
	fn := e.vm.GetGlobal("growth_factor")
	if fn == lua.LNil {
		return 2.2
	}
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		e.log.Error("lua growth_factor error", zap.Error(err))
		return 2.2
	}
	v := e.vm.Get(-1)
	e.vm.Pop(1)
	f := float64(lua.LVAsNumber(v))
	if f <= 0 {
		return 2.2
	}
	return f
}
