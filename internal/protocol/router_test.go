package protocol

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/command"
	gamenet "github.com/tetraworld/server/internal/net"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/pack"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
)

const (
	testHero    uint16 = 7
	testFaction uint8  = 2
	testSession uint64 = 0xDEADBEEF
)

func newTestRouter() (*Router, *command.Queues, *world.SessionTable) {
	q := command.NewQueues(command.Sizes{
		Hero: 16, Mob: 16, Tile: 16, Tower: 16, Battle: 16, Chat: 16, Direct: 16,
	})
	sessions := world.NewSessionTable()
	sessions.Set(testHero, testSession)
	return NewRouter(q, sessions, nil), q, sessions
}

func newTestClient(sent *[][]byte) *gamenet.Client {
	c := gamenet.NewClient("10.0.0.1:7777", false, func(data []byte) bool {
		if sent != nil {
			*sent = append(*sent, data)
		}
		return true
	})
	c.HeroID = testHero
	c.Faction = testFaction
	c.SessionID = testSession
	return c
}

// authPacket builds [tag][sessionId][heroId][faction] with the given body.
func authPacket(tag byte, body func(w *packet.Writer)) []byte {
	w := packet.NewWriterWithTag(tag)
	w.WriteQ(testSession)
	w.WriteH(testHero)
	w.WriteC(testFaction)
	if body != nil {
		body(w)
	}
	return w.Bytes()
}

func TestAdmitValidatesSession(t *testing.T) {
	rt, _, sessions := newTestRouter()

	data := authPacket(packet.TagHeroMovement, nil)
	hero, faction, session, ok := rt.Admit(data)
	require.True(t, ok)
	assert.Equal(t, testHero, hero)
	assert.Equal(t, testFaction, faction)
	assert.Equal(t, testSession, session)

	// Wrong session id.
	bad := authPacket(packet.TagHeroMovement, nil)
	bad[1] ^= 0xFF
	_, _, _, ok = rt.Admit(bad)
	assert.False(t, ok)

	// Revoked hero.
	sessions.Set(testHero, 0)
	_, _, _, ok = rt.Admit(data)
	assert.False(t, ok)
}

func TestAdmitRejectsShortAndUnknownTags(t *testing.T) {
	rt, _, _ := newTestRouter()

	_, _, _, ok := rt.Admit([]byte{packet.TagHeroMovement, 1, 2})
	assert.False(t, ok)

	// Ping never admits; it has no auth header.
	_, _, _, ok = rt.Admit(authPacket(packet.TagPing, nil))
	assert.False(t, ok)

	_, _, _, ok = rt.Admit(authPacket(99, nil))
	assert.False(t, ok)
}

func TestMovementPacketDecodes(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)

	pos := tetra.ID{Area: 2, Sub: 4096, Lod: 9}
	dest := tetra.ID{Area: 2, Sub: 4097, Lod: 9}
	data := authPacket(packet.TagHeroMovement, func(w *packet.Writer) {
		w.WriteTetra(pos)
		w.WriteTetra(dest)
		w.WriteDS(-3)
		w.WriteBytes([]byte{1, 2, 3, 4, 5, 6})
		w.WriteD(1500)
	})
	rt.HandlePacket(c, data)

	var cmd command.HeroCmd
	select {
	case cmd = <-q.Hero:
	default:
		t.Fatal("no hero command queued")
	}
	assert.Equal(t, command.HeroMove, cmd.Op)
	assert.Equal(t, testHero, cmd.HeroID)
	assert.Equal(t, pos, cmd.Position)
	assert.Equal(t, dest, cmd.SecondPosition)
	assert.Equal(t, int32(-3), cmd.Vertex)
	assert.Equal(t, [6]uint8{1, 2, 3, 4, 5, 6}, cmd.Path)
	assert.Equal(t, uint32(1500), cmd.Time)

	// Movement refreshed the fan-out subscription: the client now receives
	// its region and nothing else.
	assert.True(t, c.Wants(&pack.Frame{Region: pos.RegionKey()}))
	assert.False(t, c.Wants(&pack.Frame{Region: 0x7FF}))
}

func TestSessionMismatchDropsPacket(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)
	c.SessionID = 12345 // client bound under a different session

	rt.HandlePacket(c, authPacket(packet.TagGreet, nil))

	select {
	case <-q.Hero:
		t.Fatal("mismatched session must not queue commands")
	default:
	}
}

func TestAttackPacketsDecode(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)
	pos := tetra.ID{Area: 1, Sub: 300, Lod: 9}

	rt.HandlePacket(c, authPacket(packet.TagHeroAttacksHero, func(w *packet.Writer) {
		w.WriteTetra(pos)
		w.WriteH(42)   // target hero
		w.WriteD(101)  // card
		w.WriteD(500)  // required time
		w.WriteC(0)    // not missed
	}))

	cmd := <-q.Hero
	assert.Equal(t, command.HeroAttackHero, cmd.Op)
	assert.Equal(t, uint16(42), cmd.TargetID)
	assert.Equal(t, uint32(101), cmd.CardID)
	assert.Equal(t, uint32(500), cmd.RequiredTime)
	assert.False(t, cmd.Missed)

	rt.HandlePacket(c, authPacket(packet.TagAttackMob, func(w *packet.Writer) {
		w.WriteD(9) // mob id
		w.WriteTetra(pos)
		w.WriteD(100)
		w.WriteD(0)
		w.WriteC(1)
	}))

	mc := <-q.Mob
	assert.Equal(t, command.MobAttacked, mc.Op)
	assert.Equal(t, uint32(9), mc.MobID)
	assert.Equal(t, pos, mc.Start)
	assert.True(t, mc.Missed)
}

func TestCraftCarriesReplyAddress(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)

	rt.HandlePacket(c, authPacket(packet.TagCraftCard, func(w *packet.Writer) {
		w.WriteD(100)
	}))

	cmd := <-q.Hero
	assert.Equal(t, command.HeroCraftCard, cmd.Op)
	assert.Equal(t, c.Key, cmd.ReplyAddr)
	assert.False(t, cmd.ReplyWS)
}

func TestChatPacketTruncates(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)

	long := bytes.Repeat([]byte("a"), world.ChatEntryTextMax+100)
	rt.HandlePacket(c, authPacket(packet.TagChatMessage, func(w *packet.Writer) {
		w.WriteH(uint16(len(long)))
		w.WriteBytes(long)
	}))

	cmd := <-q.Chat
	assert.Len(t, cmd.Text, world.ChatEntryTextMax)
	assert.Equal(t, testFaction, cmd.Faction)
}

func TestPingRepliesWithServerTime(t *testing.T) {
	rt, _, _ := newTestRouter()
	var sent [][]byte
	c := newTestClient(&sent)

	w := packet.NewWriterWithTag(packet.TagPing)
	w.WriteH(777)
	before := time.Now().UnixMilli()
	rt.HandlePacket(c, w.Bytes())
	after := time.Now().UnixMilli()

	require.Len(t, sent, 1)
	zr, err := zlib.NewReader(bytes.NewReader(sent[0]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	r := packet.NewReader(raw)
	assert.Equal(t, packet.TagPing, r.Tag())
	assert.Equal(t, uint16(777), r.ReadH())
	ts := r.ReadQ()
	assert.GreaterOrEqual(t, int64(ts), before)
	assert.LessOrEqual(t, int64(ts), after)
}

func TestMissingPacketsCounted(t *testing.T) {
	rt, _, _ := newTestRouter()
	c := newTestClient(nil)

	rt.HandlePacket(c, authPacket(packet.TagMissingPackets, func(w *packet.Writer) {
		w.WriteH(3)
		w.WriteQ(10)
		w.WriteQ(11)
		w.WriteQ(12)
	}))
	assert.Equal(t, int64(3), rt.MissingReported())
}

func TestDisconnectedQueuesSettle(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)

	rt.Disconnected(c)
	cmd := <-q.Hero
	assert.Equal(t, command.HeroDisconnect, cmd.Op)
	assert.Equal(t, testHero, cmd.HeroID)

	// A never-admitted client settles nothing.
	anon := gamenet.NewClient("10.0.0.2:1", false, func([]byte) bool { return true })
	rt.Disconnected(anon)
	select {
	case <-q.Hero:
		t.Fatal("anonymous disconnect must not queue commands")
	default:
	}
}

func TestTruncatedPayloadIsContained(t *testing.T) {
	rt, q, _ := newTestRouter()
	c := newTestClient(nil)

	// Movement with the body cut off mid-tetra: zero-value fields, no panic.
	data := authPacket(packet.TagHeroMovement, func(w *packet.Writer) {
		w.WriteBytes([]byte{0x01, 0x02})
	})
	rt.HandlePacket(c, data)

	cmd := <-q.Hero
	assert.Equal(t, command.HeroMove, cmd.Op)
	assert.Equal(t, tetra.Zero, cmd.SecondPosition)
}
