package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
)

// testRig is a dispatcher over an in-memory world with a capturing emit.
type testRig struct {
	d       *Dispatcher
	world   *world.State
	queues  *command.Queues
	updates []world.Update
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		world: world.NewState(),
		queues: command.NewQueues(command.Sizes{
			Hero: 64, Mob: 64, Tile: 64, Tower: 64, Battle: 64, Chat: 64, Direct: 64,
		}),
	}
	items := data.NewItemTable([]data.ItemDef{
		{ID: 1, Name: "soul fragment", Kind: data.KindItem},
		{ID: 3, Name: "timber", Kind: data.KindItem, Cost: 2},
		{ID: 4, Name: "stone", Kind: data.KindItem, Cost: 3},
		{ID: 100, Name: "strike card", Kind: data.KindCard, Cost: 10, StrengthFactor: 1.0},
		{ID: 110, Name: "stoneskin card", Kind: data.KindCard, Cost: 15,
			BuffCode: 11, BuffDurationMs: 30_000, BuffHits: 3, BuffAmount: 8, StrengthStat: 1},
		{ID: 200, Name: "iron sword", Kind: data.KindWeapon, Cost: 40},
	})
	mobs := data.NewMobTable([]data.MobDef{
		{DefinitionID: 1, Name: "wolf", Level: 2, Health: 30, Strength: 14, Defense: 6},
	})
	progression := data.NewProgressionTable([]data.ProgressionLevel{
		{Level: 1, Constitution: 20, XPThreshold: 0, SkillPoints: 0},
		{Level: 2, Constitution: 24, XPThreshold: 10, SkillPoints: 2},
		{Level: 3, Constitution: 28, XPThreshold: 25, SkillPoints: 2},
	})
	rig.d = NewDispatcher(Deps{
		World:       rig.world,
		Queues:      rig.queues,
		Items:       items,
		Mobs:        mobs,
		Progression: progression,
		Emit:        func(us []world.Update) { rig.updates = append(rig.updates, us...) },
		Rand:        rand.New(rand.NewSource(1)),
	})
	return rig
}

func (r *testRig) reset() {
	r.updates = r.updates[:0]
}

func (r *testRig) byType(dt packet.DataType) []world.Update {
	var out []world.Update
	for _, u := range r.updates {
		if u.Type == dt {
			out = append(out, u)
		}
	}
	return out
}

func (r *testRig) addHero(id uint16, faction uint8, pos tetra.ID) *world.Hero {
	h := &world.Hero{
		ID:           id,
		Faction:      faction,
		Position:     pos,
		Level:        1,
		Health:       20,
		BaseStrength: 20,
		BaseDefense:  5,
	}
	r.world.PutHero(h)
	return h
}

func (r *testRig) hero(id uint16) world.Hero {
	var out world.Hero
	r.world.WithHero(id, func(h *world.Hero) { out = *h.Clone() })
	return out
}

var testTile = tetra.ID{Area: 2, Sub: 4096, Lod: 9}

func TestMovementUpdatesHero(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)

	dest := tetra.ID{Area: 2, Sub: 4097, Lod: 9}
	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroMove, HeroID: 1,
		Position: testTile, SecondPosition: dest,
		Vertex: 2, Time: 1200,
	})
	rig.d.Tick(1000)

	h := rig.hero(1)
	assert.Equal(t, dest, h.SecondPosition)
	assert.Equal(t, world.ActionWalk, h.Action)
	assert.Equal(t, uint8(1), h.Version)
	assert.Len(t, rig.byType(packet.DataHero), 1)
}

func TestMovementRejectedInsideTower(t *testing.T) {
	rig := newRig(t)
	h := rig.addHero(1, 1, testTile)
	h.SetFlag(world.FlagInsideTower)

	rig.queues.SendHero(command.HeroCmd{Op: command.HeroMove, HeroID: 1, Position: testTile})
	rig.d.Tick(1000)

	assert.Equal(t, uint8(0), rig.hero(1).Version)
	assert.Empty(t, rig.byType(packet.DataHero))
}

func TestAttackWindupResolvesOnTime(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	rig.addHero(2, 2, testTile)

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroAttackHero, HeroID: 1, Faction: 1,
		Position: testTile, TargetID: 2, RequiredTime: 500,
	})

	// Tick at t=1000: wind-up broadcast, no damage yet.
	rig.d.Tick(1000)
	require.Len(t, rig.byType(packet.DataAttack), 1)
	assert.Empty(t, rig.byType(packet.DataAttackResult))
	assert.Equal(t, uint16(20), rig.hero(2).Health)

	// t=1400: still in flight.
	rig.reset()
	rig.d.Tick(1400)
	assert.Empty(t, rig.byType(packet.DataAttackResult))

	// t=1500: resolves. damage = round(20×1.0) − 5 = 15.
	rig.reset()
	rig.d.Tick(1500)
	results := rig.byType(packet.DataAttackResult)
	require.Len(t, results, 1)
	res := world.DecodeAttackResult(results[0].Payload)
	assert.Equal(t, world.ResultNormal, res.Result)
	assert.Equal(t, uint16(15), res.Damage)
	assert.Equal(t, uint16(5), rig.hero(2).Health)
	assert.Equal(t, uint8(1), rig.hero(1).Version)
	assert.Equal(t, uint8(1), rig.hero(2).Version)
}

func TestAttackAgainstSuperiorDefense(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	def := rig.addHero(2, 2, testTile)
	def.BaseDefense = 50

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroAttackHero, HeroID: 1, Faction: 1,
		Position: testTile, TargetID: 2,
	})
	rig.d.Tick(1000)

	results := rig.byType(packet.DataAttackResult)
	require.Len(t, results, 1)
	res := world.DecodeAttackResult(results[0].Payload)
	assert.Equal(t, uint16(0), res.Damage)
	assert.Equal(t, uint16(20), rig.hero(2).Health)
	// Zero damage is still a resolved hit: versions move.
	assert.Equal(t, uint8(1), rig.hero(2).Version)
}

func TestKillGrantsExperienceAndSoul(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	def := rig.addHero(2, 2, testTile)
	def.Level = 3
	def.Health = 10

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroAttackHero, HeroID: 1, Faction: 1,
		Position: testTile, TargetID: 2,
	})
	rig.d.Tick(1000)

	att := rig.hero(1)
	// xp = ceil((3+1) × 1.1^(3−1)) = ceil(4.84) = 5.
	assert.Equal(t, uint32(5), att.Experience)
	assert.Equal(t, uint32(1), att.Items.Count(SoulItemID, world.SlotBag))
	assert.Equal(t, uint16(0), rig.hero(2).Health)
	require.Len(t, rig.byType(packet.DataReward), 1)
}

func TestAttackOnHeroInsideTowerIsNoop(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	def := rig.addHero(2, 2, testTile)
	def.SetFlag(world.FlagInsideTower)

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroAttackHero, HeroID: 1, Faction: 1,
		Position: testTile, TargetID: 2,
	})
	rig.d.Tick(1000)

	assert.Empty(t, rig.byType(packet.DataAttackResult))
	assert.Equal(t, uint16(20), rig.hero(2).Health)
}

func TestCollectTileInThreeSwings(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	// A natural resource prop: already standing, three points of
	// constitution to chip through.
	rig.world.WithTile(testTile, true, func(tl *world.Tile) {
		tl.Prop = 2
		tl.Built = true
		tl.Health = 3
		tl.Constitution = 3
	})

	for i := 0; i < 2; i++ {
		rig.queues.SendTile(command.TileCmd{Op: command.TileExtract, HeroID: 1, Tile: testTile})
		rig.d.Tick(uint64(1000 + i*100))
		assert.Empty(t, rig.byType(packet.DataReward))
		rig.reset()
	}

	rig.queues.SendTile(command.TileCmd{Op: command.TileExtract, HeroID: 1, Tile: testTile})
	rig.d.Tick(1300)

	// Third swing fells the prop: tile empty, yield item = prop+2.
	rig.world.WithTile(testTile, false, func(tl *world.Tile) {
		assert.Equal(t, uint8(0), tl.Prop)
	})
	require.Len(t, rig.byType(packet.DataReward), 1)
	reward := world.DecodeReward(rig.byType(packet.DataReward)[0].Payload)
	assert.Equal(t, uint32(4), reward.ItemID)
	got := rig.hero(1)
	assert.Equal(t, uint32(1), got.Items.Count(4, world.SlotBag))
}

func TestFoundationAndBuild(t *testing.T) {
	rig := newRig(t)
	rig.queues.SendTile(command.TileCmd{
		Op: command.TileLayFoundation, HeroID: 1, Faction: 1, Tile: testTile, Prop: 5,
	})
	rig.d.Tick(1000)

	rig.world.WithTile(testTile, false, func(tl *world.Tile) {
		assert.Equal(t, uint8(5), tl.Prop)
		assert.False(t, tl.Built)
		assert.False(t, tl.Standing())
	})

	for i := 0; i < int(BuildWork); i++ {
		rig.queues.SendTile(command.TileCmd{Op: command.TileBuild, HeroID: 1, Faction: 1, Tile: testTile})
	}
	rig.d.Tick(1100)

	rig.world.WithTile(testTile, false, func(tl *world.Tile) {
		assert.True(t, tl.Built)
		assert.True(t, tl.Standing())
	})
}

func TestStandingStructureDemolition(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	rig.queues.SendTile(command.TileCmd{
		Op: command.TileLayFoundation, HeroID: 1, Faction: 1, Tile: testTile, Prop: 5,
	})
	for i := 0; i < int(BuildWork); i++ {
		rig.queues.SendTile(command.TileCmd{Op: command.TileBuild, HeroID: 1, Faction: 1, Tile: testTile})
	}
	rig.d.Tick(1000)
	rig.world.WithTile(testTile, false, func(tl *world.Tile) {
		require.True(t, tl.Standing())
	})

	// A standing structure is felled by the same number of swings that
	// raised it; every swing up to the last leaves it standing.
	for i := 0; i < int(BuildWork)-1; i++ {
		rig.reset()
		rig.queues.SendTile(command.TileCmd{Op: command.TileExtract, HeroID: 1, Tile: testTile})
		rig.d.Tick(uint64(1100 + i*100))
		rig.world.WithTile(testTile, false, func(tl *world.Tile) {
			assert.True(t, tl.Standing())
		})
		assert.Empty(t, rig.byType(packet.DataReward))
	}

	rig.reset()
	rig.queues.SendTile(command.TileCmd{Op: command.TileExtract, HeroID: 1, Tile: testTile})
	rig.d.Tick(1400)

	rig.world.WithTile(testTile, false, func(tl *world.Tile) {
		assert.Equal(t, uint8(0), tl.Prop)
		assert.False(t, tl.Built)
	})
	require.Len(t, rig.byType(packet.DataReward), 1)
	reward := world.DecodeReward(rig.byType(packet.DataReward)[0].Payload)
	assert.Equal(t, uint32(7), reward.ItemID)
}

func TestTowerConquest(t *testing.T) {
	rig := newRig(t)
	towerID := tetra.ID{Area: 0, Sub: 0, Lod: 7}
	rig.world.PutTower(&world.Tower{ID: towerID, Faction: 1})

	// nowSec=100 puts the activity window open for this tower's phase.
	now := uint64(100_000)
	require.True(t, TowerWindowOpen(towerID, now/1000))

	rig.queues.SendTower(command.TowerCmd{
		Op: command.TowerAttack, HeroID: 1, Faction: 2,
		Tower: towerID, EventID: 0, Amount: world.FinishThreshold,
	})
	rig.d.Tick(now)

	rig.world.WithTower(towerID, func(tw *world.Tower) {
		assert.Equal(t, uint8(2), tw.Faction)
		assert.Equal(t, uint16(1), tw.EventID)
		assert.Empty(t, tw.Ledger)
	})
	assert.Len(t, rig.byType(packet.DataTower), 1)
}

func TestTowerAttackByOwnerIsNoop(t *testing.T) {
	rig := newRig(t)
	towerID := tetra.ID{Area: 0, Sub: 0, Lod: 7}
	rig.world.PutTower(&world.Tower{ID: towerID, Faction: 2})

	rig.queues.SendTower(command.TowerCmd{
		Op: command.TowerAttack, HeroID: 1, Faction: 2,
		Tower: towerID, EventID: 0, Amount: 100,
	})
	rig.d.Tick(100_000)

	rig.world.WithTower(towerID, func(tw *world.Tower) {
		assert.Empty(t, tw.Ledger)
	})
	assert.Empty(t, rig.byType(packet.DataTower))
}

func TestEnterTowerFollowsActivity(t *testing.T) {
	rig := newRig(t)
	towerID := tetra.ID{Area: 0, Sub: 0, Lod: 7}
	rig.world.PutTower(&world.Tower{ID: towerID, Faction: 1})
	rig.addHero(1, 1, testTile)
	rig.addHero(2, 2, testTile)

	// The owner faction never sees its own tower as active, even with the
	// window wide open.
	require.True(t, TowerWindowOpen(towerID, 100))
	rig.queues.SendHero(command.HeroCmd{Op: command.HeroEnterTower, HeroID: 1, Faction: 1, TowerID: towerID})
	rig.d.Tick(100_000)
	owner := rig.hero(1)
	assert.False(t, owner.HasFlag(world.FlagInsideTower))
	assert.Empty(t, rig.byType(packet.DataHero))

	// An enemy is turned away while the window is closed.
	require.False(t, TowerWindowOpen(towerID, 30))
	rig.queues.SendHero(command.HeroCmd{Op: command.HeroEnterTower, HeroID: 2, Faction: 2, TowerID: towerID})
	rig.d.Tick(30_000)
	enemy := rig.hero(2)
	assert.False(t, enemy.HasFlag(world.FlagInsideTower))

	// And admitted once it opens.
	rig.reset()
	rig.queues.SendHero(command.HeroCmd{Op: command.HeroEnterTower, HeroID: 2, Faction: 2, TowerID: towerID})
	rig.d.Tick(100_000)
	h := rig.hero(2)
	assert.True(t, h.HasFlag(world.FlagInsideTower))
	assert.Equal(t, towerID, h.Position)
	assert.Len(t, rig.byType(packet.DataHero), 1)
}

func TestBuySellAndEquipCaps(t *testing.T) {
	rig := newRig(t)
	h := rig.addHero(1, 1, testTile)
	h.Coins = 100

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroBuyItem, HeroID: 1, ItemID: 100, Amount: 2, Position: testTile,
	})
	rig.d.Tick(1000)

	got := rig.hero(1)
	assert.Equal(t, uint32(80), got.Coins)
	assert.Equal(t, uint32(2), got.Cards.Count(100, world.SlotBag))

	// Buying past the purse is a no-op.
	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroBuyItem, HeroID: 1, ItemID: 100, Amount: 50, Position: testTile,
	})
	rig.d.Tick(1100)
	assert.Equal(t, uint32(80), rig.hero(1).Coins)

	// Equip one card, sell the other.
	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroEquipItem, HeroID: 1, ItemID: 100,
		FromSlot: world.SlotBag, ToSlot: world.SlotEquipped,
	})
	rig.queues.SendHero(command.HeroCmd{Op: command.HeroSellItem, HeroID: 1, ItemID: 100, Amount: 1})
	rig.d.Tick(1200)

	got = rig.hero(1)
	assert.Equal(t, uint32(1), got.Cards.Count(100, world.SlotEquipped))
	assert.Equal(t, uint32(0), got.Cards.Count(100, world.SlotBag))
	assert.Equal(t, uint32(90), got.Coins)
}

func TestEquipWeaponCap(t *testing.T) {
	rig := newRig(t)
	h := rig.addHero(1, 1, testTile)
	h.Weapons.Add(200, world.SlotBag, 2)
	h.Weapons.Add(200, world.SlotEquipped, 1)

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroEquipItem, HeroID: 1, ItemID: 200,
		FromSlot: world.SlotBag, ToSlot: world.SlotEquipped,
	})
	rig.d.Tick(1000)

	got := rig.hero(1)
	assert.Equal(t, uint32(1), got.Weapons.Count(200, world.SlotEquipped))
	assert.Equal(t, uint32(2), got.Weapons.Count(200, world.SlotBag))
}

func TestActivateBuffConsumesCard(t *testing.T) {
	rig := newRig(t)
	h := rig.addHero(1, 1, testTile)
	h.Cards.Add(110, world.SlotBag, 1)

	rig.queues.SendHero(command.HeroCmd{
		Op: command.HeroActivateBuff, HeroID: 1, ItemID: 110, FromSlot: world.SlotBag,
	})
	rig.d.Tick(1000)

	got := rig.hero(1)
	assert.Equal(t, uint32(0), got.Cards.Count(110, world.SlotBag))
	require.Len(t, got.Buffs, 1)
	assert.Equal(t, uint8(11), got.Buffs[0].ID)
	assert.Equal(t, world.BuffDefense, got.Buffs[0].Stat)
	assert.Equal(t, uint32(31_000), got.Buffs[0].ExpirationTime)
}

func TestMobSpawnAndAttack(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)

	rig.queues.SendMob(command.MobCmd{
		Op: command.MobSpawn, HeroID: 1, DefinitionID: 1, Tile: testTile,
	})
	rig.d.Tick(1000)

	mobUpdates := rig.byType(packet.DataMob)
	require.Len(t, mobUpdates, 1)
	m := world.DecodeMob(mobUpdates[0].Payload)
	assert.Equal(t, uint16(30), m.Health)

	// Occupied tile blocks a second spawn.
	rig.reset()
	rig.queues.SendMob(command.MobCmd{
		Op: command.MobSpawn, HeroID: 1, DefinitionID: 1, Tile: testTile,
	})
	rig.d.Tick(1100)
	assert.Empty(t, rig.byType(packet.DataMob))

	// Hero hits it: damage = round(20×1.0) − 6 = 14.
	rig.reset()
	rig.queues.SendMob(command.MobCmd{
		Op: command.MobAttacked, HeroID: 1, MobID: m.ID, Start: testTile,
	})
	rig.d.Tick(1200)

	results := rig.byType(packet.DataAttackResult)
	require.Len(t, results, 1)
	res := world.DecodeAttackResult(results[0].Payload)
	assert.Equal(t, uint16(14), res.Damage)
	assert.Equal(t, uint16(16), res.HealthAfter)
}

func TestMobControlWindow(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	rig.addHero(2, 1, testTile)

	rig.queues.SendMob(command.MobCmd{Op: command.MobSpawn, HeroID: 1, DefinitionID: 1, Tile: testTile})
	rig.d.Tick(1000)
	m := world.DecodeMob(rig.byType(packet.DataMob)[0].Payload)

	// Inside the 60s window another hero cannot take control.
	rig.queues.SendMob(command.MobCmd{Op: command.MobControl, HeroID: 2, MobID: m.ID, Start: testTile})
	rig.d.Tick(30_000)
	rig.world.WithMob(testTile, m.ID, func(mm *world.Mob) {
		assert.Equal(t, uint16(1), mm.OwnerID)
	})

	// After the window lapses the claim succeeds.
	rig.queues.SendMob(command.MobCmd{Op: command.MobControl, HeroID: 2, MobID: m.ID, Start: testTile})
	rig.d.Tick(62_000)
	rig.world.WithMob(testTile, m.ID, func(mm *world.Mob) {
		assert.Equal(t, uint16(2), mm.OwnerID)
	})
}

func TestBattleLifecycle(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	rig.addHero(2, 2, testTile)

	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleJoin, HeroID: 1, Battle: testTile})
	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleJoin, HeroID: 2, Battle: testTile})
	rig.d.Tick(1000)
	assert.Len(t, rig.byType(packet.DataBattle), 2)

	// Both play: the turn advances immediately.
	rig.reset()
	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleTurn, HeroID: 1, Battle: testTile, CardID: 100})
	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleTurn, HeroID: 2, Battle: testTile, CardID: 100})
	rig.d.Tick(2000)

	rig.world.WithBattle(testTile, false, func(b *world.Battle) {
		assert.Equal(t, uint8(2), b.Turn)
		assert.Equal(t, 2, b.ParticipantCount())
	})

	// Nobody plays turn 2: the deadline sweep drops everyone and ends the
	// battle.
	rig.reset()
	rig.d.Tick(2000 + world.TurnDuration + 100)
	finals := rig.byType(packet.DataBattle)
	require.Len(t, finals, 1)
	b := world.DecodeBattle(finals[0].Payload)
	assert.True(t, b.Finished())
	assert.False(t, rig.world.WithBattle(testTile, false, func(*world.Battle) {}))
}

func TestBattleTurnAfterDeadlineIsLate(t *testing.T) {
	rig := newRig(t)
	rig.addHero(1, 1, testTile)
	rig.addHero(2, 2, testTile)

	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleJoin, HeroID: 1, Battle: testTile})
	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleJoin, HeroID: 2, Battle: testTile})
	rig.d.Tick(1000) // deadline = 1000 + TurnDuration

	// A move landing exactly on the deadline tick does not count: the sweep
	// drops both silent participants and the battle ends.
	rig.reset()
	rig.queues.SendBattle(command.BattleCmd{Op: command.BattleTurn, HeroID: 1, Battle: testTile, CardID: 100})
	rig.d.Tick(uint64(1000 + world.TurnDuration))

	finals := rig.byType(packet.DataBattle)
	require.Len(t, finals, 1)
	b := world.DecodeBattle(finals[0].Payload)
	assert.True(t, b.Finished())
	assert.Equal(t, 0, b.ParticipantCount())
	assert.False(t, rig.world.WithBattle(testTile, false, func(*world.Battle) {}))
}

func TestServerStatusEveryTenthTick(t *testing.T) {
	rig := newRig(t)
	for i := 1; i <= 9; i++ {
		rig.d.Tick(uint64(i * 100))
	}
	assert.Empty(t, rig.byType(packet.DataServerStatus))

	rig.d.Tick(1000)
	require.Len(t, rig.byType(packet.DataServerStatus), 1)
}
