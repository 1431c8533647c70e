package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/world"
)

// BuildWork is the constitution a structure needs to stand, and therefore the
// number of build (or extract) actions a prop takes to raise or fell.
const BuildWork uint16 = 3

// applyTile resolves one tile-subsystem command.
func (d *Dispatcher) applyTile(c command.TileCmd, nowMs uint64) {
	switch c.Op {
	case command.TileExtract:
		d.tileExtract(c)
	case command.TileLayFoundation:
		d.tileLayFoundation(c)
	case command.TileBuild:
		d.tileBuild(c)
	case command.TileBuildWall:
		d.tileBuildWall(c)
	case command.TileAttackWalker:
		d.tileAttackWalker(c, nowMs)
	}
}

// mutateTile mirrors mutateHero for tiles.
func (d *Dispatcher) mutateTile(id command.TileCmd, create bool, fn func(t *world.Tile) bool) *world.Tile {
	var clone *world.Tile
	d.deps.World.WithTile(id.Tile, create, func(t *world.Tile) {
		if fn(t) {
			clone = t.Clone()
		}
	})
	if clone == nil {
		return nil
	}
	d.emit(world.TileUpdate(clone))
	if d.deps.Persist != nil {
		d.deps.Persist.TileChanged(clone)
	}
	return clone
}

// tileExtract chips one unit of constitution off a standing prop. The swing
// that fells it demolishes the tile and pays out the prop's yield item.
func (d *Dispatcher) tileExtract(c command.TileCmd) {
	var reward *world.Reward
	prop := uint8(0)
	demolished := false
	d.mutateTile(c, false, func(t *world.Tile) bool {
		if !t.Standing() {
			return false
		}
		prop = t.Prop
		t.Constitution--
		if t.Constitution == 0 {
			t.Demolish()
			demolished = true
		}
		t.Bump()
		return true
	})
	if !demolished {
		return
	}

	itemID := uint32(prop) + CollectRewardOffset
	d.mutateHero(c.HeroID, func(h *world.Hero) bool {
		h.Items.Add(itemID, world.SlotBag, 1)
		h.BumpInventory()
		reward = &world.Reward{
			HeroID: h.ID, ItemID: itemID, Amount: 1,
			Slot: world.SlotBag, InventoryVersion: h.InventoryVersion,
		}
		return true
	})
	if reward != nil {
		d.emit(world.RewardUpdate(reward, c.Tile))
	}
}

// tileLayFoundation claims an empty tile: the prop goes up as a foundation
// with full target health and zero constitution.
func (d *Dispatcher) tileLayFoundation(c command.TileCmd) {
	if c.Prop == 0 {
		return
	}
	d.mutateTile(c, true, func(t *world.Tile) bool {
		if t.Prop != 0 {
			return false // occupied
		}
		t.Prop = c.Prop
		t.Faction = c.Faction
		t.Built = false
		t.Health = BuildWork
		t.Constitution = 0
		t.Bump()
		return true
	})
}

// tileBuild adds one unit of constitution to a same-faction foundation; the
// unit that reaches the construction target raises the structure.
func (d *Dispatcher) tileBuild(c command.TileCmd) {
	d.mutateTile(c, false, func(t *world.Tile) bool {
		if t.Prop == 0 || t.Faction != c.Faction {
			return false
		}
		if t.Built {
			return false // already standing
		}
		t.Constitution++
		if t.Constitution >= t.Health {
			t.Built = true
		}
		t.Bump()
		return true
	})
}

// tileBuildWall lays a wall foundation at the target tile, anchored on a
// standing same-faction structure at the origin.
func (d *Dispatcher) tileBuildWall(c command.TileCmd) {
	anchored := false
	d.deps.World.WithTile(c.Origin, false, func(t *world.Tile) {
		anchored = t.Standing() && t.Faction == c.Faction
	})
	if !anchored {
		return
	}
	wall := c
	wall.Tile = c.Target
	d.mutateTile(wall, true, func(t *world.Tile) bool {
		if t.Prop != 0 {
			return false
		}
		t.Prop = c.Prop
		t.Faction = c.Faction
		t.Built = false
		t.Health = BuildWork
		t.Constitution = 0
		t.Bump()
		return true
	})
}

// tileAttackWalker is a trap shot from a tile against whatever mob occupies
// the target tile when the wind-up lands.
func (d *Dispatcher) tileAttackWalker(c command.TileCmd, nowMs uint64) {
	if !c.FromDelayed && c.RequiredTime > 0 {
		d.sched.pushTile(nowMs+uint64(c.RequiredTime), c)
		intent := &world.AttackIntent{
			AttackerKind: world.KindTile,
			AttackerID:   uint32(c.Tile.RegionKey()),
			TargetKind:   world.KindMob,
			CardID:       0,
			RequiredTime: c.RequiredTime,
			Windup:       1,
		}
		d.emit(world.AttackUpdate(intent, c.Tile))
		return
	}

	r := d.deps.World.RegionFor(c.Target)
	r.MobMu.Lock()
	mobID, occupied := r.MobPositions[c.Target]
	r.MobMu.Unlock()
	if !occupied {
		return
	}

	hit := command.MobCmd{
		Op:          command.MobAttacked,
		HeroID:      c.HeroID,
		Faction:     c.Faction,
		MobID:       mobID,
		Start:       c.Target,
		FromDelayed: true,
	}
	d.mobAttacked(hit, nowMs)
}
