package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// applyHero resolves one hero-subsystem command. Guards are released before
// any delta is emitted.
func (d *Dispatcher) applyHero(c command.HeroCmd, nowMs uint64) {
	switch c.Op {
	case command.HeroMove:
		d.heroMove(c)
	case command.HeroAction:
		d.heroAction(c, nowMs)
	case command.HeroGreet:
		d.heroGreet(c)
	case command.HeroRespawn:
		d.heroRespawn(c)
	case command.HeroBuyItem:
		d.heroBuy(c)
	case command.HeroSellItem:
		d.heroSell(c)
	case command.HeroUseItem:
		d.heroUse(c)
	case command.HeroEquipItem:
		d.heroEquip(c)
	case command.HeroActivateBuff:
		d.heroActivateBuff(c, nowMs)
	case command.HeroAttackHero:
		d.heroAttackHero(c, nowMs)
	case command.HeroAttackedByMob:
		d.mobAttacksHero(c, nowMs)
	case command.HeroEnterTower:
		d.heroEnterTower(c, nowMs)
	case command.HeroExitTower:
		d.heroExitTower(c)
	case command.HeroCraftCard:
		d.heroCraftCard(c)
	case command.HeroInventoryRequest:
		d.heroInventory(c)
	case command.HeroDisconnect:
		d.heroDisconnect(c)
	}
}

// mutateHero runs fn under the hero guard and, when fn reports a mutation,
// emits the delta clone and feeds the persistence queue after release.
func (d *Dispatcher) mutateHero(id uint16, fn func(h *world.Hero) bool) {
	var clone *world.Hero
	d.deps.World.WithHero(id, func(h *world.Hero) {
		if fn(h) {
			clone = h.Clone()
		}
	})
	if clone == nil {
		return
	}
	d.emit(world.HeroUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.HeroChanged(clone)
	}
}

func (d *Dispatcher) heroMove(c command.HeroCmd) {
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if h.HasFlag(world.FlagInsideTower) {
			return false // no walking inside a tower
		}
		h.Position = c.Position
		h.SecondPosition = c.SecondPosition
		h.Vertex = c.Vertex
		h.Path = c.Path
		h.Time = c.Time
		h.Action = world.ActionWalk
		h.Bump()
		return true
	})
}

func (d *Dispatcher) heroAction(c command.HeroCmd, nowMs uint64) {
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		h.Action = c.Action
		if c.Action == world.ActionTyping {
			h.SetFlag(world.FlagChat)
		} else {
			h.ClearFlag(world.FlagChat)
		}
		h.PruneBuffs(uint32(nowMs))
		h.Bump()
		return true
	})
}

func (d *Dispatcher) heroGreet(c command.HeroCmd) {
	var p *world.Presentation
	var region = c.Position
	d.deps.World.WithHero(c.HeroID, func(h *world.Hero) {
		p = &world.Presentation{HeroID: h.ID, Name: h.Name}
		region = h.Position
	})
	if p != nil {
		d.emit(world.PresentationUpdate(p, region))
	}
}

func (d *Dispatcher) heroRespawn(c command.HeroCmd) {
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		h.Health = d.deps.Progression.Constitution(h.Level)
		h.Action = world.ActionIdle
		h.Position = c.Position
		h.SecondPosition = c.Position
		h.Time = 0
		h.Bump()
		return true
	})
}

func (d *Dispatcher) heroBuy(c command.HeroCmd) {
	def := d.deps.Items.Get(c.ItemID)
	if def == nil || def.Cost == 0 || c.Amount == 0 {
		return
	}
	var reward *world.Reward
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		total := def.Cost * c.Amount
		if h.Coins < total {
			return false // buy without funds resolves to no-op
		}
		h.Coins -= total
		d.inventoryFor(h, def.Kind).Add(c.ItemID, world.SlotBag, c.Amount)
		h.BumpInventory()
		reward = &world.Reward{
			HeroID: h.ID, ItemID: c.ItemID, Amount: c.Amount,
			Slot: world.SlotBag, InventoryVersion: h.InventoryVersion,
		}
		return true
	})
	if reward != nil {
		d.emit(world.RewardUpdate(reward, c.Position))
	}
}

func (d *Dispatcher) heroSell(c command.HeroCmd) {
	def := d.deps.Items.Get(c.ItemID)
	if def == nil || def.Cost == 0 || c.Amount == 0 {
		return
	}
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !d.inventoryFor(h, def.Kind).Remove(c.ItemID, world.SlotBag, c.Amount) {
			return false
		}
		h.Coins += def.Cost * c.Amount
		h.BumpInventory()
		return true
	})
}

func (d *Dispatcher) heroUse(c command.HeroCmd) {
	def := d.deps.Items.Get(c.ItemID)
	if def == nil {
		return
	}
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !d.inventoryFor(h, def.Kind).Remove(c.ItemID, c.FromSlot, 1) {
			return false
		}
		h.BumpInventory()
		return true
	})
}

// heroEquip moves one unit between slots, honoring equip caps.
func (d *Dispatcher) heroEquip(c command.HeroCmd) {
	def := d.deps.Items.Get(c.ItemID)
	if def == nil {
		return
	}
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		inv := d.inventoryFor(h, def.Kind)
		if c.ToSlot == world.SlotEquipped {
			limit := uint32(world.MaxEquippedCards)
			if def.Kind == data.KindWeapon {
				limit = world.MaxEquippedWeapons
			}
			if inv.CountSlot(world.SlotEquipped) >= limit {
				return false // slot at capacity, inventory unchanged
			}
		}
		if !inv.Move(c.ItemID, c.FromSlot, c.ToSlot, 1) {
			return false
		}
		h.BumpInventory()
		return true
	})
}

func (d *Dispatcher) heroActivateBuff(c command.HeroCmd, nowMs uint64) {
	def := d.deps.Items.Get(c.ItemID)
	if def == nil || def.Kind != data.KindCard || def.BuffCode == 0 {
		return
	}
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !h.Cards.Remove(c.ItemID, c.FromSlot, 1) {
			return false
		}
		h.AddBuff(world.Buff{
			ID:             def.BuffCode,
			Hits:           def.BuffHits,
			ExpirationTime: uint32(nowMs) + def.BuffDurationMs,
			Stat:           buffStat(def.StrengthStat),
			Amount:         def.BuffAmount,
		})
		h.BumpInventory()
		return true
	})
}

// heroAttackHero resolves hero-vs-hero combat: immediately for
// requiredTime 0, otherwise it schedules the delayed resolution and lets
// everyone see the wind-up.
func (d *Dispatcher) heroAttackHero(c command.HeroCmd, nowMs uint64) {
	if !c.FromDelayed && c.RequiredTime > 0 {
		d.sched.pushHero(nowMs+uint64(c.RequiredTime), c)
		intent := &world.AttackIntent{
			AttackerKind: world.KindHero,
			AttackerID:   uint32(c.HeroID),
			TargetKind:   world.KindHero,
			TargetID:     uint32(c.TargetID),
			CardID:       c.CardID,
			RequiredTime: c.RequiredTime,
			Windup:       1,
		}
		if c.Missed {
			intent.Missed = 1
		}
		d.emit(world.AttackUpdate(intent, c.Position))
		return
	}

	f := d.cardFactors(c.CardID)
	growth := d.growth()
	now32 := uint32(nowMs)

	var attClone, defClone *world.Hero
	var result world.AttackResult
	d.deps.World.WithTwoHeroes(c.HeroID, c.TargetID, func(att, def *world.Hero) {
		// Preconditions re-checked at resolve time: the target may have
		// died or holed up during the wind-up.
		if def.Health == 0 || def.HasFlag(world.FlagInsideTower) {
			return
		}
		att.PruneBuffs(now32)
		def.PruneBuffs(now32)

		atkStat := statValue(att.BaseStat(buffStat(f.StrengthStat)), att.StatPoints(buffStat(f.StrengthStat)), growth)
		atkBuff := att.BuffSum(world.BuffStrength, now32)
		defStat := statValue(def.BaseDefense, def.DefensePoints, growth)
		defBuff := def.BuffSum(world.BuffDefense, now32)

		out := resolveHit(atkStat, atkBuff, defStat, defBuff, f, c.Missed, d.deps.Rand)
		def.ApplyDamage(out.Damage)

		att.ConsumeBuffs(world.BuffStrength, now32)
		def.ConsumeBuffs(world.BuffDefense, now32)

		att.Bump()
		def.Bump()

		result = world.AttackResult{
			TargetKind:   world.KindHero,
			TargetID:     uint32(def.ID),
			AttackerID:   uint32(att.ID),
			Result:       out.Result,
			Damage:       out.Damage,
			HealthAfter:  def.Health,
			VersionAfter: def.Version,
			CardID:       c.CardID,
		}

		if def.Health == 0 {
			xp := killExperience(def.Level, att.Level)
			d.grantExperience(att, xp)
			att.Items.Add(SoulItemID, world.SlotBag, 1)
			att.InventoryVersion++
			result.XPAwarded = xp
			result.LevelAfter = att.Level
			result.SoulItem = uint16(SoulItemID)
		}

		attClone = att.Clone()
		defClone = def.Clone()
	})
	if defClone == nil {
		return
	}

	d.emit(world.AttackResultUpdate(&result, defClone.Position))
	d.emit(world.HeroUpdate(attClone))
	d.emit(world.HeroUpdate(defClone))
	if result.XPAwarded > 0 {
		d.emit(world.RewardUpdate(&world.Reward{
			HeroID: attClone.ID, ItemID: SoulItemID, Amount: 1,
			Slot: world.SlotBag, InventoryVersion: attClone.InventoryVersion,
		}, attClone.Position))
	}
	if d.deps.Persist != nil {
		d.deps.Persist.HeroChanged(attClone)
		d.deps.Persist.HeroChanged(defClone)
	}
}

// mobAttacksHero mirrors hero attacks with a mob as the aggressor. The mob's
// stats are snapshotted under its region guard first; the two guards are
// never held together.
func (d *Dispatcher) mobAttacksHero(c command.HeroCmd, nowMs uint64) {
	if !c.FromDelayed && c.RequiredTime > 0 {
		d.sched.pushHero(nowMs+uint64(c.RequiredTime), c)
		intent := &world.AttackIntent{
			AttackerKind: world.KindMob,
			AttackerID:   c.MobID,
			TargetKind:   world.KindHero,
			TargetID:     uint32(c.HeroID),
			CardID:       c.CardID,
			RequiredTime: c.RequiredTime,
			Windup:       1,
		}
		d.emit(world.AttackUpdate(intent, c.Position))
		return
	}

	var atkStat, atkBuff int
	now32 := uint32(nowMs)
	found := d.deps.World.WithMob(c.Position, c.MobID, func(m *world.Mob) {
		if m.Health == 0 {
			return
		}
		def := d.deps.Mobs.Get(m.DefinitionID)
		if def == nil {
			return
		}
		atkStat = int(def.Strength)
		atkBuff = m.BuffSum(world.BuffStrength, now32)
		m.ConsumeBuffs(world.BuffStrength, now32)
	})
	if !found || atkStat == 0 {
		return
	}

	f := d.cardFactors(c.CardID)
	growth := d.growth()

	var defClone *world.Hero
	var result world.AttackResult
	d.deps.World.WithHero(c.HeroID, func(def *world.Hero) {
		if def.Health == 0 || def.HasFlag(world.FlagInsideTower) {
			return
		}
		def.PruneBuffs(now32)
		defStat := statValue(def.BaseDefense, def.DefensePoints, growth)
		defBuff := def.BuffSum(world.BuffDefense, now32)

		out := resolveHit(atkStat, atkBuff, defStat, defBuff, f, c.Missed, d.deps.Rand)
		def.ApplyDamage(out.Damage)
		def.ConsumeBuffs(world.BuffDefense, now32)
		def.Bump()

		result = world.AttackResult{
			TargetKind:   world.KindHero,
			TargetID:     uint32(def.ID),
			AttackerID:   c.MobID,
			Result:       out.Result,
			Damage:       out.Damage,
			HealthAfter:  def.Health,
			VersionAfter: def.Version,
			CardID:       c.CardID,
		}
		defClone = def.Clone()
	})
	if defClone == nil {
		return
	}
	d.emit(world.AttackResultUpdate(&result, defClone.Position))
	d.emit(world.HeroUpdate(defClone))
	if d.deps.Persist != nil {
		d.deps.Persist.HeroChanged(defClone)
	}
}

func (d *Dispatcher) heroEnterTower(c command.HeroCmd, nowMs uint64) {
	var towerFaction uint8
	var haveTower bool
	d.deps.World.WithTower(c.TowerID, func(t *world.Tower) {
		towerFaction = t.Faction
		haveTower = true
	})
	if !haveTower {
		return
	}
	// Entry follows the attack rule: the owner faction never sees its own
	// tower as active, everyone else only during the activity window.
	if !TowerActive(c.TowerID, nowMs/1000, c.Faction, towerFaction) {
		d.deps.Log.Debug("塔未激活，拒絕進入",
			zap.String("tower", c.TowerID.String()),
			zap.Uint16("hero", c.HeroID))
		return
	}
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		h.SetFlag(world.FlagInsideTower)
		h.ClearFlag(world.FlagTryingEnterTower)
		h.Position = c.TowerID
		h.Bump()
		return true
	})
}

func (d *Dispatcher) heroExitTower(c command.HeroCmd) {
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !h.HasFlag(world.FlagInsideTower) {
			return false
		}
		h.ClearFlag(world.FlagInsideTower)
		h.Bump()
		return true
	})
}

// CraftCost is the soul-item price of one crafted card.
const CraftCost uint32 = 3

func (d *Dispatcher) heroCraftCard(c command.HeroCmd) {
	def := d.deps.Items.Get(c.CardID)
	if def == nil || def.Kind != data.KindCard {
		return
	}
	var reward *world.Reward
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		if !h.Items.Remove(SoulItemID, world.SlotBag, CraftCost) {
			return false
		}
		h.Cards.Add(c.CardID, world.SlotBag, 1)
		h.BumpInventory()
		reward = &world.Reward{
			HeroID: h.ID, ItemID: c.CardID, Amount: 1,
			Slot: world.SlotBag, InventoryVersion: h.InventoryVersion,
		}
		return true
	})
	if reward != nil && c.ReplyAddr != "" {
		d.sendDirect(c.ReplyAddr, c.ReplyWS, []world.Update{
			world.RewardUpdate(reward, c.Position),
		})
	}
}

// heroInventory answers an inventory request over the direct path: one
// reward entry per row, which is exactly the tuple the client reconciles.
func (d *Dispatcher) heroInventory(c command.HeroCmd) {
	var rows []world.Update
	d.deps.World.WithHero(c.HeroID, func(h *world.Hero) {
		for _, inv := range []*world.Inventory{&h.Items, &h.Cards, &h.Weapons} {
			for _, row := range inv.Rows {
				rows = append(rows, world.RewardUpdate(&world.Reward{
					HeroID: h.ID, ItemID: row.ID, Amount: row.Amount,
					Slot: row.Slot, InventoryVersion: h.InventoryVersion,
				}, h.Position))
			}
		}
	})
	if c.ReplyAddr != "" {
		d.sendDirect(c.ReplyAddr, c.ReplyWS, rows)
	}
}

func (d *Dispatcher) heroDisconnect(c command.HeroCmd) {
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		h.Action = world.ActionIdle
		h.Bump()
		return true
	})
}

// inventoryFor picks the hero inventory a definition kind lives in.
func (d *Dispatcher) inventoryFor(h *world.Hero, kind string) *world.Inventory {
	switch kind {
	case data.KindCard:
		return &h.Cards
	case data.KindWeapon:
		return &h.Weapons
	default:
		return &h.Items
	}
}
