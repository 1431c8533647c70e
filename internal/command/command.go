// Package command defines the typed intents flowing from the protocol router
// to the gameplay dispatcher: one bounded queue per subsystem, each with an
// atomic free-capacity gauge. The dispatcher is the sole consumer; sustained
// low gauges mean the tick is stalling.
package command

import (
	"github.com/tetraworld/server/internal/tetra"
)

// HeroOp selects the hero-subsystem operation.
type HeroOp uint8

const (
	HeroMove HeroOp = iota
	HeroAction
	HeroGreet
	HeroRespawn
	HeroBuyItem
	HeroSellItem
	HeroUseItem
	HeroEquipItem
	HeroActivateBuff
	HeroAttackHero
	HeroAttackedByMob
	HeroEnterTower
	HeroExitTower
	HeroCraftCard
	HeroInventoryRequest
	HeroDisconnect
)

// HeroCmd is one hero-subsystem command. HeroID is the issuing (or for
// HeroAttackedByMob, the defending) hero.
type HeroCmd struct {
	Op      HeroOp
	HeroID  uint16
	Faction uint8

	// Movement.
	Position       tetra.ID
	SecondPosition tetra.ID
	Vertex         int32
	Path           [6]uint8
	Time           uint32

	Action uint8

	// Items and cards.
	ItemID   uint32
	Amount   uint32
	FromSlot uint8
	ToSlot   uint8

	// Combat.
	TargetID     uint16
	MobID        uint32
	CardID       uint32
	RequiredTime uint32
	Missed       bool

	// Towers.
	TowerID tetra.ID

	// Direct reply routing for InventoryRequest / CraftCard.
	ReplyAddr string
	ReplyWS   bool

	FromDelayed bool
}

// MobOp selects the mob-subsystem operation.
type MobOp uint8

const (
	MobSpawn MobOp = iota
	MobMove
	MobControl
	MobAttacked   // hero attacks mob
	MobCastByHero // hero summons a mob
	MobCastByMob  // mob spawns a mob
)

type MobCmd struct {
	Op      MobOp
	HeroID  uint16
	Faction uint8

	MobID        uint32
	DefinitionID uint16
	Tile         tetra.ID

	Start tetra.ID
	End   tetra.ID
	Path  [6]uint8
	Time  uint32

	CardID       uint32
	RequiredTime uint32
	Missed       bool

	FromDelayed bool
}

// TileOp selects the tile-subsystem operation.
type TileOp uint8

const (
	TileExtract TileOp = iota
	TileLayFoundation
	TileBuild
	TileBuildWall
	TileAttackWalker
)

type TileCmd struct {
	Op      TileOp
	HeroID  uint16
	Faction uint8

	Tile   tetra.ID
	Prop   uint8
	Origin tetra.ID // wall origin / caster tile
	Target tetra.ID // wall target / walker tile

	RequiredTime uint32
	FromDelayed  bool
}

// TowerOp selects the tower-subsystem operation.
type TowerOp uint8

const (
	TowerAttack TowerOp = iota
	TowerRepair
)

type TowerCmd struct {
	Op      TowerOp
	HeroID  uint16
	Faction uint8

	Tower   tetra.ID
	EventID uint16
	Amount  uint16

	RequiredTime uint32
	FromDelayed  bool
}

// BattleOp selects the battle-subsystem operation.
type BattleOp uint8

const (
	BattleJoin BattleOp = iota
	BattleTurn
)

type BattleCmd struct {
	Op      BattleOp
	HeroID  uint16
	Faction uint8

	Battle tetra.ID
	CardID uint32
}

// ChatCmd is one pending chat line. Faction 0 is the global bucket.
type ChatCmd struct {
	HeroID  uint16
	Faction uint8
	Text    string
}

// DirectCmd is a point-to-point reply (ping echo, inventory response,
// craft-card result) addressed by transport key.
type DirectCmd struct {
	Addr string
	WS   bool
	Data []byte
}
