package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
)

// Tower activity cycle: each tower is attackable for the tail of a 6-minute
// cycle, phase-shifted by its coordinates so the whole map never opens at
// once.
const (
	towerCycleSec  = 360
	towerClosedSec = 60
)

// TowerWindowOpen reports whether the tower's activity window is up at the
// given wall-clock second.
func TowerWindowOpen(id tetra.ID, nowSec uint64) bool {
	phase := (nowSec + uint64(id.Sub+uint32(id.Area))*10) % towerCycleSec
	return phase > towerClosedSec
}

// TowerActive reports whether an attack by the given faction can touch the
// tower right now. Attacks on your own tower never land.
func TowerActive(id tetra.ID, nowSec uint64, attacker, owner uint8) bool {
	if attacker == owner {
		return false
	}
	return TowerWindowOpen(id, nowSec)
}

// applyTower resolves one tower-subsystem command.
func (d *Dispatcher) applyTower(c command.TowerCmd, nowMs uint64) {
	switch c.Op {
	case command.TowerAttack:
		d.towerAttack(c, nowMs)
	case command.TowerRepair:
		d.towerRepair(c)
	}
}

// towerAttack credits conquest damage on the current event. The activity
// check runs at resolve time, so a wind-up that lands after the window
// closes is wasted.
func (d *Dispatcher) towerAttack(c command.TowerCmd, nowMs uint64) {
	if !c.FromDelayed && c.RequiredTime > 0 {
		d.sched.pushTower(nowMs+uint64(c.RequiredTime), c)
		intent := &world.AttackIntent{
			AttackerKind: world.KindHero,
			AttackerID:   uint32(c.HeroID),
			TargetKind:   world.KindTower,
			TargetID:     uint32(c.Tower.RegionKey()),
			RequiredTime: c.RequiredTime,
			Windup:       1,
		}
		d.emit(world.AttackUpdate(intent, c.Tower))
		return
	}

	var clone *world.Tower
	conquered := false
	d.deps.World.WithTower(c.Tower, func(t *world.Tower) {
		if !TowerActive(c.Tower, nowMs/1000, c.Faction, t.Faction) {
			return
		}
		// A stale event id credits nothing: the client saw an old event.
		if c.EventID != t.EventID {
			return
		}
		conquered = t.AddDamage(c.EventID, c.Faction, c.Amount)
		t.Bump()
		clone = t.Clone()
	})
	if clone == nil {
		return
	}
	d.emit(world.TowerUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.TowerChanged(clone)
	}

	if conquered {
		d.recordConquest(c, clone)
	}
}

// recordConquest moves the region's kingdom over to the conquering faction.
func (d *Dispatcher) recordConquest(c command.TowerCmd, t *world.Tower) {
	var kc *world.Kingdom
	d.deps.World.WithKingdom(c.Tower.Region(), func(k *world.Kingdom) {
		k.Faction = t.Faction
		k.LeaderID = c.HeroID
		k.Version++
		cp := *k
		kc = &cp
	})
	if kc != nil && d.deps.Persist != nil {
		d.deps.Persist.KingdomChanged(kc)
	}
}

// towerRepair rolls opposing damage back; only the owning faction repairs.
func (d *Dispatcher) towerRepair(c command.TowerCmd) {
	var clone *world.Tower
	d.deps.World.WithTower(c.Tower, func(t *world.Tower) {
		if t.Faction != c.Faction {
			return
		}
		t.Repair(c.Amount)
		t.Bump()
		clone = t.Clone()
	})
	if clone == nil {
		return
	}
	d.emit(world.TowerUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.TowerChanged(clone)
	}
}
