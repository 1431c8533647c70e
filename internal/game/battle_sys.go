package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/world"
)

// applyBattle resolves one battle-subsystem command.
func (d *Dispatcher) applyBattle(c command.BattleCmd, nowMs uint64) {
	switch c.Op {
	case command.BattleJoin:
		d.battleJoin(c, nowMs)
	case command.BattleTurn:
		d.battleTurn(c, nowMs)
	}
}

// battleJoin admits the hero into the battle anchored at the tile, creating
// the battle on first join. A rejected join (battle full) mutates nothing —
// the version stays put so clients cannot mistake it for progress.
func (d *Dispatcher) battleJoin(c command.BattleCmd, nowMs uint64) {
	var clone *world.Battle
	d.deps.World.WithBattle(c.Battle, true, func(b *world.Battle) {
		if b.Finished() {
			return
		}
		if b.TurnTime == 0 {
			b.TurnTime = uint32(nowMs) + world.TurnDuration
		}
		_, joined, ok := b.Join(c.HeroID)
		if !ok || !joined {
			return
		}
		clone = b.Clone()
	})
	if clone == nil {
		return
	}
	d.emit(world.BattleUpdate(clone))
}

// battleTurn records the hero's move; when the last participant plays, the
// turn advances immediately instead of waiting for the deadline.
func (d *Dispatcher) battleTurn(c command.BattleCmd, nowMs uint64) {
	var clone *world.Battle
	d.deps.World.WithBattle(c.Battle, false, func(b *world.Battle) {
		if b.Finished() {
			return
		}
		// A move that arrives on or after the deadline is late: the
		// sweep owns the turn from there.
		if b.TurnTime != 0 && uint32(nowMs) >= b.TurnTime {
			return
		}
		if !b.PlayTurn(c.HeroID, c.CardID) {
			return
		}
		if b.AllPlayed() {
			b.Advance(uint32(nowMs))
		}
		clone = b.Clone()
	})
	if clone == nil {
		return
	}
	d.emit(world.BattleUpdate(clone))
}

// expireBattleTurns sweeps every region for battles whose turn deadline has
// passed and advances them, dropping participants who stayed silent. A battle
// with nobody left finishes and is removed from its region.
func (d *Dispatcher) expireBattleTurns(nowMs uint64) {
	now32 := uint32(nowMs)
	var expired []*world.Battle
	d.deps.World.EachRegion(func(r *world.Region) {
		r.TileMu.Lock()
		for id, b := range r.Battles {
			if b.Finished() || b.TurnTime == 0 || now32 < b.TurnTime {
				continue
			}
			b.Advance(now32)
			if b.ParticipantsLog == 0 {
				b.Turn = 0
				delete(r.Battles, id)
			}
			expired = append(expired, b.Clone())
		}
		r.TileMu.Unlock()
	})
	for _, b := range expired {
		d.emit(world.BattleUpdate(b))
	}
}
