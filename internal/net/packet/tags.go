package packet

// Client protocol tags. Byte 0 of every datagram / binary WebSocket message.
// Authenticated packets carry [tag][sessionId u64][heroId u16][faction u8]
// before the payload; Login and Ping are the exceptions.
const (
	TagLogin              byte = 1
	TagPing               byte = 2
	TagHeroMovement       byte = 3
	TagResourceExtraction byte = 4
	TagLayFoundation      byte = 5
	TagBuild              byte = 6
	TagTileAttacksWalker  byte = 7
	TagSpawnMob           byte = 8
	TagMobMoves           byte = 9
	TagControlMob         byte = 10
	TagAttackMob          byte = 11
	TagMissingPackets     byte = 12
	TagAttackTower        byte = 13
	TagRepairTower        byte = 14
	TagChatMessage        byte = 15
	TagBuildWall          byte = 16
	TagSellItem           byte = 17
	TagBuyItem            byte = 18
	TagUseItem            byte = 19
	TagEquipItem          byte = 20
	TagRespawn            byte = 21
	TagCharacterAction    byte = 22
	TagGreet              byte = 23
	TagActivateBuff       byte = 24
	TagCastMobFromHero    byte = 25
	TagCastMobFromMob     byte = 26
	TagMobAttacksHero     byte = 27
	TagHeroAttacksHero    byte = 28
	TagEnterTower         byte = 29
	TagExitTower          byte = 30
	TagCraftCard          byte = 31
	TagInventoryRequest   byte = 32
	TagBattleJoin         byte = 33
	TagBattleTurn         byte = 34

	// Server → client frame tag.
	TagGlobalState byte = 40
)

// AuthHeaderSize is [tag][sessionId u64][heroId u16][faction u8].
const AuthHeaderSize = 12

// MaxDatagram is the maximum safe UDP payload used system-wide.
const MaxDatagram = 508

// DataType identifies one entry inside a GlobalState frame. Each type has a
// fixed payload size; a frame is a run of [DataType][payload] terminated by
// NoData.
type DataType byte

const (
	NoData           DataType = 0
	DataHero         DataType = 1
	DataMob          DataType = 2
	DataTile         DataType = 3
	DataTower        DataType = 4
	DataAttack       DataType = 5
	DataAttackResult DataType = 6
	DataReward       DataType = 7
	DataPresentation DataType = 8
	DataChatEntry    DataType = 9
	DataServerStatus DataType = 10
	DataBattle       DataType = 11
)

// Fixed payload sizes per DataType, excluding the leading type byte.
const (
	HeroSize         = 50
	MobSize          = 43
	TileSize         = 69
	TowerSize        = 65
	AttackSize       = 21
	AttackResultSize = 26
	RewardSize       = 12
	PresentationSize = 22
	ChatEntrySize    = 414
	ServerStatusSize = 20
	BattleSize       = 34
)

// PayloadSize returns the fixed payload size for a DataType, or -1 for
// unknown types (including NoData, which carries no payload).
func PayloadSize(t DataType) int {
	switch t {
	case DataHero:
		return HeroSize
	case DataMob:
		return MobSize
	case DataTile:
		return TileSize
	case DataTower:
		return TowerSize
	case DataAttack:
		return AttackSize
	case DataAttackResult:
		return AttackResultSize
	case DataReward:
		return RewardSize
	case DataPresentation:
		return PresentationSize
	case DataChatEntry:
		return ChatEntrySize
	case DataServerStatus:
		return ServerStatusSize
	case DataBattle:
		return BattleSize
	default:
		return -1
	}
}
