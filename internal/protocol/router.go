// Package protocol decodes client packets and turns them into typed commands
// on the per-subsystem queues. Decoding is the only work done on the network
// goroutines; everything stateful happens on the gameplay tick.
package protocol

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/tetraworld/server/internal/command"
	gamenet "github.com/tetraworld/server/internal/net"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// Router implements the transport Handler: auth validation, tag dispatch,
// and the inline ping path. One router serves both sockets.
type Router struct {
	queues   *command.Queues
	sessions *world.SessionTable
	log      *zap.Logger

	// MissingPackets requests are acknowledged by counting them; deltas are
	// full snapshots, so the next tick repairs the client anyway.
	missingReported atomic.Int64
}

func NewRouter(q *command.Queues, sessions *world.SessionTable, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{queues: q, sessions: sessions, log: log}
}

// MissingReported returns the count of packet ids clients asked after.
func (rt *Router) MissingReported() int64 {
	return rt.missingReported.Load()
}

// Admit validates the auth header of a first packet from an unknown source.
func (rt *Router) Admit(data []byte) (uint16, uint8, uint64, bool) {
	if len(data) < packet.AuthHeaderSize {
		return 0, 0, 0, false
	}
	tag := data[0]
	if tag == packet.TagPing || tag < packet.TagLogin || tag > packet.TagBattleTurn {
		return 0, 0, 0, false
	}
	r := packet.NewReader(data)
	sessionID := r.ReadQ()
	heroID := r.ReadH()
	faction := r.ReadC()
	if !rt.sessions.Valid(heroID, sessionID) {
		return 0, 0, 0, false
	}
	return heroID, faction, sessionID, true
}

// Disconnected settles the hero of a departed client.
func (rt *Router) Disconnected(c *gamenet.Client) {
	if c.HeroID == 0 {
		return
	}
	rt.queues.SendHero(command.HeroCmd{
		Op:      command.HeroDisconnect,
		HeroID:  c.HeroID,
		Faction: c.Faction,
	})
}

// HandlePacket routes one inbound packet. A panic while decoding one packet
// is contained to that packet.
func (rt *Router) HandlePacket(c *gamenet.Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Error("封包處理異常",
				zap.Uint8("tag", data[0]),
				zap.Uint16("hero", c.HeroID),
				zap.Any("panic", r))
		}
	}()

	if len(data) == 0 {
		return
	}
	if data[0] == packet.TagPing {
		rt.handlePing(c, data)
		return
	}
	if len(data) < packet.AuthHeaderSize {
		return
	}

	r := packet.NewReader(data)
	sessionID := r.ReadQ()
	heroID := r.ReadH()
	faction := r.ReadC()
	if sessionID != c.SessionID || heroID != c.HeroID {
		rt.log.Debug("會話不匹配", zap.Uint16("hero", heroID), zap.String("key", c.Key))
		return
	}

	switch data[0] {
	case packet.TagLogin:
		// The session was minted over HTTP; the login packet binds this
		// transport and announces the hero to its region.
		rt.queues.SendHero(command.HeroCmd{Op: command.HeroGreet, HeroID: heroID, Faction: faction})

	case packet.TagHeroMovement:
		cmd := command.HeroCmd{Op: command.HeroMove, HeroID: heroID, Faction: faction}
		cmd.Position = r.ReadTetra()
		cmd.SecondPosition = r.ReadTetra()
		cmd.Vertex = r.ReadDS()
		copy(cmd.Path[:], r.ReadBytes(6))
		cmd.Time = r.ReadD()
		// Movement doubles as the subscription refresh.
		c.SetRegions([gamenet.RegionSlots]uint16{
			cmd.Position.RegionKey(),
			cmd.SecondPosition.RegionKey(),
			0,
		})
		rt.queues.SendHero(cmd)

	case packet.TagResourceExtraction:
		rt.queues.SendTile(command.TileCmd{
			Op: command.TileExtract, HeroID: heroID, Faction: faction,
			Tile: r.ReadTetra(),
		})

	case packet.TagLayFoundation:
		rt.queues.SendTile(command.TileCmd{
			Op: command.TileLayFoundation, HeroID: heroID, Faction: faction,
			Tile: r.ReadTetra(), Prop: r.ReadC(),
		})

	case packet.TagBuild:
		rt.queues.SendTile(command.TileCmd{
			Op: command.TileBuild, HeroID: heroID, Faction: faction,
			Tile: r.ReadTetra(),
		})

	case packet.TagTileAttacksWalker:
		cmd := command.TileCmd{Op: command.TileAttackWalker, HeroID: heroID, Faction: faction}
		cmd.Origin = r.ReadTetra()
		cmd.Target = r.ReadTetra()
		cmd.Tile = cmd.Origin
		cmd.RequiredTime = r.ReadD()
		rt.queues.SendTile(cmd)

	case packet.TagSpawnMob:
		rt.queues.SendMob(command.MobCmd{
			Op: command.MobSpawn, HeroID: heroID, Faction: faction,
			DefinitionID: r.ReadH(), Tile: r.ReadTetra(),
		})

	case packet.TagMobMoves:
		cmd := command.MobCmd{Op: command.MobMove, HeroID: heroID, Faction: faction}
		cmd.MobID = r.ReadD()
		cmd.Start = r.ReadTetra()
		cmd.End = r.ReadTetra()
		copy(cmd.Path[:], r.ReadBytes(6))
		cmd.Time = r.ReadD()
		rt.queues.SendMob(cmd)

	case packet.TagControlMob:
		rt.queues.SendMob(command.MobCmd{
			Op: command.MobControl, HeroID: heroID, Faction: faction,
			MobID: r.ReadD(), Start: r.ReadTetra(),
		})

	case packet.TagAttackMob:
		cmd := command.MobCmd{Op: command.MobAttacked, HeroID: heroID, Faction: faction}
		cmd.MobID = r.ReadD()
		cmd.Start = r.ReadTetra()
		cmd.CardID = r.ReadD()
		cmd.RequiredTime = r.ReadD()
		cmd.Missed = r.ReadC() != 0
		rt.queues.SendMob(cmd)

	case packet.TagMissingPackets:
		n := int(r.ReadH())
		for i := 0; i < n && r.Remaining() >= 8; i++ {
			r.ReadQ()
		}
		rt.missingReported.Add(int64(n))

	case packet.TagAttackTower:
		cmd := command.TowerCmd{Op: command.TowerAttack, HeroID: heroID, Faction: faction}
		cmd.Tower = r.ReadTetra()
		cmd.EventID = r.ReadH()
		cmd.Amount = r.ReadH()
		cmd.RequiredTime = r.ReadD()
		rt.queues.SendTower(cmd)

	case packet.TagRepairTower:
		rt.queues.SendTower(command.TowerCmd{
			Op: command.TowerRepair, HeroID: heroID, Faction: faction,
			Tower: r.ReadTetra(), Amount: r.ReadH(),
		})

	case packet.TagChatMessage:
		n := int(r.ReadH())
		if n > world.ChatEntryTextMax {
			n = world.ChatEntryTextMax
		}
		rt.queues.SendChat(command.ChatCmd{
			HeroID: heroID, Faction: faction,
			Text: string(r.ReadBytes(n)),
		})

	case packet.TagBuildWall:
		cmd := command.TileCmd{Op: command.TileBuildWall, HeroID: heroID, Faction: faction}
		cmd.Origin = r.ReadTetra()
		cmd.Target = r.ReadTetra()
		cmd.Prop = r.ReadC()
		cmd.Tile = cmd.Target
		rt.queues.SendTile(cmd)

	case packet.TagSellItem:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroSellItem, HeroID: heroID, Faction: faction,
			ItemID: r.ReadD(), Amount: r.ReadD(),
		})

	case packet.TagBuyItem:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroBuyItem, HeroID: heroID, Faction: faction,
			ItemID: r.ReadD(), Amount: r.ReadD(),
		})

	case packet.TagUseItem:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroUseItem, HeroID: heroID, Faction: faction,
			ItemID: r.ReadD(), FromSlot: r.ReadC(),
		})

	case packet.TagEquipItem:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroEquipItem, HeroID: heroID, Faction: faction,
			ItemID: r.ReadD(), FromSlot: r.ReadC(), ToSlot: r.ReadC(),
		})

	case packet.TagRespawn:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroRespawn, HeroID: heroID, Faction: faction,
			Position: r.ReadTetra(),
		})

	case packet.TagCharacterAction:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroAction, HeroID: heroID, Faction: faction,
			Action: r.ReadC(),
		})

	case packet.TagGreet:
		rt.queues.SendHero(command.HeroCmd{Op: command.HeroGreet, HeroID: heroID, Faction: faction})

	case packet.TagActivateBuff:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroActivateBuff, HeroID: heroID, Faction: faction,
			ItemID: r.ReadD(), FromSlot: r.ReadC(),
		})

	case packet.TagCastMobFromHero:
		rt.queues.SendMob(command.MobCmd{
			Op: command.MobCastByHero, HeroID: heroID, Faction: faction,
			CardID: r.ReadD(), DefinitionID: r.ReadH(), Tile: r.ReadTetra(),
		})

	case packet.TagCastMobFromMob:
		cmd := command.MobCmd{Op: command.MobCastByMob, HeroID: heroID, Faction: faction}
		cmd.MobID = r.ReadD()
		cmd.DefinitionID = r.ReadH()
		cmd.Tile = r.ReadTetra()
		rt.queues.SendMob(cmd)

	case packet.TagMobAttacksHero:
		cmd := command.HeroCmd{Op: command.HeroAttackedByMob, Faction: faction}
		cmd.MobID = r.ReadD()
		cmd.Position = r.ReadTetra()
		cmd.HeroID = r.ReadH() // defender
		cmd.CardID = r.ReadD()
		cmd.RequiredTime = r.ReadD()
		cmd.Missed = r.ReadC() != 0
		rt.queues.SendHero(cmd)

	case packet.TagHeroAttacksHero:
		cmd := command.HeroCmd{Op: command.HeroAttackHero, HeroID: heroID, Faction: faction}
		cmd.Position = r.ReadTetra()
		cmd.TargetID = r.ReadH()
		cmd.CardID = r.ReadD()
		cmd.RequiredTime = r.ReadD()
		cmd.Missed = r.ReadC() != 0
		rt.queues.SendHero(cmd)

	case packet.TagEnterTower:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroEnterTower, HeroID: heroID, Faction: faction,
			TowerID: r.ReadTetra(),
		})

	case packet.TagExitTower:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroExitTower, HeroID: heroID, Faction: faction,
		})

	case packet.TagCraftCard:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroCraftCard, HeroID: heroID, Faction: faction,
			CardID: r.ReadD(), ReplyAddr: c.Key, ReplyWS: c.WS,
		})

	case packet.TagInventoryRequest:
		rt.queues.SendHero(command.HeroCmd{
			Op: command.HeroInventoryRequest, HeroID: heroID, Faction: faction,
			ReplyAddr: c.Key, ReplyWS: c.WS,
		})

	case packet.TagBattleJoin:
		rt.queues.SendBattle(command.BattleCmd{
			Op: command.BattleJoin, HeroID: heroID, Faction: faction,
			Battle: r.ReadTetra(),
		})

	case packet.TagBattleTurn:
		rt.queues.SendBattle(command.BattleCmd{
			Op: command.BattleTurn, HeroID: heroID, Faction: faction,
			Battle: r.ReadTetra(), CardID: r.ReadD(),
		})

	default:
		rt.log.Debug("未知封包標籤", zap.Uint8("tag", data[0]))
	}
}

// handlePing answers [Ping][echoId u16] with a compressed
// [Ping][echoId u16][serverTimeMs u64] on the same transport, bypassing the
// tick entirely.
func (rt *Router) handlePing(c *gamenet.Client, data []byte) {
	r := packet.NewReader(data)
	echo := r.ReadH()

	w := packet.NewWriterWithTag(packet.TagPing)
	w.WriteH(echo)
	w.WriteQ(uint64(time.Now().UnixMilli()))

	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, zlib.BestCompression)
	if err != nil {
		return
	}
	if _, err := zw.Write(w.Bytes()); err != nil {
		return
	}
	if err := zw.Close(); err != nil {
		return
	}
	c.Send(out.Bytes())
}
