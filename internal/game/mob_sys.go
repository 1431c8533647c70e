package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// applyMob resolves one mob-subsystem command.
func (d *Dispatcher) applyMob(c command.MobCmd, nowMs uint64) {
	switch c.Op {
	case command.MobSpawn, command.MobCastByMob:
		d.mobSpawn(c, nowMs)
	case command.MobCastByHero:
		d.mobCastByHero(c, nowMs)
	case command.MobMove:
		d.mobMove(c, nowMs)
	case command.MobControl:
		d.mobControl(c, nowMs)
	case command.MobAttacked:
		d.mobAttacked(c, nowMs)
	}
}

// mobSpawn places a fresh mob on a tile. An occupied tile blocks the spawn
// unless its occupant is dead with a lapsed control claim, in which case the
// corpse is replaced.
func (d *Dispatcher) mobSpawn(c command.MobCmd, nowMs uint64) {
	def := d.deps.Mobs.Get(c.DefinitionID)
	if def == nil {
		d.deps.Log.Warn("未知怪物定義", zap.Uint16("definition", c.DefinitionID))
		return
	}
	now32 := uint32(nowMs)

	var clone *world.Mob
	r := d.deps.World.RegionFor(c.Tile)
	r.MobMu.Lock()
	if prev, ok := r.MobPositions[c.Tile]; ok {
		m := r.Mobs[prev]
		if m != nil && (m.Health > 0 || m.Owned(now32, d.deps.ControlWindowMs)) {
			r.MobMu.Unlock()
			return
		}
		delete(r.Mobs, prev)
	}
	m := &world.Mob{
		ID:           d.deps.World.NextMobID(),
		DefinitionID: c.DefinitionID,
		Level:        def.Level,
		OwnerID:      c.HeroID,
		Start:        c.Tile,
		End:          c.Tile,
		Health:       def.Health,
	}
	if c.HeroID != 0 {
		m.OwnershipTime = now32
	}
	r.Mobs[m.ID] = m
	r.MobPositions[c.Tile] = m.ID
	clone = m.Clone()
	r.MobMu.Unlock()

	d.emit(world.MobUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.MobChanged(r.ID, clone)
	}
}

// mobCastByHero is a spawn paid for with a summon card.
func (d *Dispatcher) mobCastByHero(c command.MobCmd, nowMs uint64) {
	paid := false
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !h.Cards.Remove(c.CardID, world.SlotBag, 1) {
			return false
		}
		h.BumpInventory()
		paid = true
		return true
	})
	if !paid {
		return
	}
	d.mobSpawn(c, nowMs)
}

// mobMove accepts a path segment from the mob's live controller only.
func (d *Dispatcher) mobMove(c command.MobCmd, nowMs uint64) {
	now32 := uint32(nowMs)
	var clone *world.Mob
	d.deps.World.WithMob(c.Start, c.MobID, func(m *world.Mob) {
		if m.Health == 0 {
			return
		}
		if m.OwnerID != c.HeroID || !m.Owned(now32, d.deps.ControlWindowMs) {
			return
		}
		m.Start = c.Start
		m.End = c.End
		m.Path = c.Path
		m.Time = c.Time
		m.Bump()
		clone = m.Clone()
	})
	if clone == nil {
		return
	}
	// Keep the tile index on the segment's destination.
	r := d.deps.World.RegionFor(c.Start)
	r.MobMu.Lock()
	for tile, id := range r.MobPositions {
		if id == c.MobID {
			delete(r.MobPositions, tile)
		}
	}
	r.MobPositions[c.End] = c.MobID
	r.MobMu.Unlock()

	d.emit(world.MobUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.MobChanged(r.ID, clone)
	}
}

// mobControl claims or refreshes control. A live claim by another hero wins;
// the claimant refreshing their own window always succeeds.
func (d *Dispatcher) mobControl(c command.MobCmd, nowMs uint64) {
	now32 := uint32(nowMs)
	var clone *world.Mob
	d.deps.World.WithMob(c.Start, c.MobID, func(m *world.Mob) {
		if m.Health == 0 {
			return
		}
		if m.OwnerID != c.HeroID && m.Owned(now32, d.deps.ControlWindowMs) {
			return
		}
		m.OwnerID = c.HeroID
		m.OwnershipTime = now32
		m.Bump()
		clone = m.Clone()
	})
	if clone == nil {
		return
	}
	d.emit(world.MobUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.MobChanged(d.deps.World.RegionFor(c.Start).ID, clone)
	}
}

// mobAttacked resolves a hero's attack on a mob. The attacker's stats are
// snapshotted under the hero guard, the mob mutated under its region guard,
// and kill rewards re-enter the hero guard — never two guards at once.
func (d *Dispatcher) mobAttacked(c command.MobCmd, nowMs uint64) {
	if !c.FromDelayed && c.RequiredTime > 0 {
		d.sched.pushMob(nowMs+uint64(c.RequiredTime), c)
		intent := &world.AttackIntent{
			AttackerKind: world.KindHero,
			AttackerID:   uint32(c.HeroID),
			TargetKind:   world.KindMob,
			TargetID:     c.MobID,
			CardID:       c.CardID,
			RequiredTime: c.RequiredTime,
			Windup:       1,
		}
		if c.Missed {
			intent.Missed = 1
		}
		d.emit(world.AttackUpdate(intent, c.Start))
		return
	}

	f := d.cardFactors(c.CardID)
	growth := d.growth()
	now32 := uint32(nowMs)

	var atkStat, atkBuff int
	var atkLevel uint8
	var attClone *world.Hero
	d.deps.World.WithHero(c.HeroID, func(att *world.Hero) {
		if att.Health == 0 {
			return
		}
		att.PruneBuffs(now32)
		atkStat = statValue(att.BaseStat(buffStat(f.StrengthStat)), att.StatPoints(buffStat(f.StrengthStat)), growth)
		atkBuff = att.BuffSum(world.BuffStrength, now32)
		att.ConsumeBuffs(world.BuffStrength, now32)
		atkLevel = att.Level
		att.Bump()
		attClone = att.Clone()
	})
	if attClone == nil {
		return
	}

	var mobClone *world.Mob
	var result world.AttackResult
	var mobLevel uint8
	killed := false
	d.deps.World.WithMob(c.Start, c.MobID, func(m *world.Mob) {
		if m.Health == 0 {
			return
		}
		mdef := d.deps.Mobs.Get(m.DefinitionID)
		defStat := 0
		if mdef != nil {
			defStat = int(mdef.Defense)
		}
		defBuff := m.BuffSum(world.BuffDefense, now32)

		out := resolveHit(atkStat, atkBuff, defStat, defBuff, f, c.Missed, d.deps.Rand)
		m.ApplyDamage(out.Damage)
		m.ConsumeBuffs(world.BuffDefense, now32)
		m.Bump()

		result = world.AttackResult{
			TargetKind:   world.KindMob,
			TargetID:     m.ID,
			AttackerID:   uint32(c.HeroID),
			Result:       out.Result,
			Damage:       out.Damage,
			HealthAfter:  m.Health,
			VersionAfter: m.Version,
			CardID:       c.CardID,
		}
		mobLevel = m.Level
		killed = m.Health == 0
		mobClone = m.Clone()
	})
	if mobClone == nil {
		return
	}

	if killed {
		xp := killExperience(mobLevel, atkLevel)
		d.mutateHero(c.HeroID, func(h *world.Hero) bool {
			d.grantExperience(h, xp)
			h.Items.Add(SoulItemID, world.SlotBag, 1)
			h.BumpInventory()
			result.XPAwarded = xp
			result.LevelAfter = h.Level
			result.SoulItem = uint16(SoulItemID)
			return true
		})
		d.emit(world.RewardUpdate(&world.Reward{
			HeroID: c.HeroID, ItemID: SoulItemID, Amount: 1,
			Slot: world.SlotBag,
		}, c.Start))
	}

	d.emit(world.AttackResultUpdate(&result, c.Start))
	d.emit(world.HeroUpdate(attClone))
	d.emit(world.MobUpdate(mobClone))
	if d.deps.Persist != nil {
		d.deps.Persist.HeroChanged(attClone)
		d.deps.Persist.MobChanged(d.deps.World.RegionFor(c.Start).ID, mobClone)
	}
}
