package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
)

func tileUpdate(sub uint32, version uint8) world.Update {
	tile := &world.Tile{
		ID:      tetra.ID{Area: 1, Sub: sub, Lod: 9},
		Prop:    2,
		Version: version,
	}
	return world.TileUpdate(tile)
}

func TestPackSplitsLargeBatches(t *testing.T) {
	p := NewPacker(5000)

	// 500 tiles in one region: 70 bytes per entry forces multiple frames.
	region := tetra.ID{Area: 1, Sub: 4096, Lod: 9}
	updates := make([]world.Update, 0, 500)
	for i := 0; i < 500; i++ {
		updates = append(updates, tileUpdate(region.Sub, uint8(i)))
	}

	frames, err := p.Pack(1000, updates)
	require.NoError(t, err)
	require.Greater(t, len(frames), 1)

	var entries []Entry
	for i, f := range frames {
		// Packet ids are dense starting at 1.
		assert.Equal(t, uint64(i+1), f.PacketID)
		assert.Equal(t, region.RegionKey(), f.Region)

		id, ts, es, err := DecodeFrame(f.Data)
		require.NoError(t, err)
		assert.Equal(t, f.PacketID, id)
		assert.Equal(t, uint32(1000), ts)
		assert.Equal(t, f.GamePackets, len(es))

		// Every frame respects the uncompressed cap.
		assert.LessOrEqual(t, 14+len(es)*(1+packet.TileSize), 5000)
		entries = append(entries, es...)
	}

	// Concatenating the frames yields the input, in order.
	require.Len(t, entries, 500)
	for i, e := range entries {
		assert.Equal(t, packet.DataTile, e.Type)
		assert.Equal(t, updates[i].Payload, e.Payload)
	}
}

func TestPackGroupsByFactionAndRegion(t *testing.T) {
	p := NewPacker(5000)

	chatA := world.ChatUpdate(&world.ChatEntry{HeroID: 1, Faction: 1, Text: "a"})
	chatB := world.ChatUpdate(&world.ChatEntry{HeroID: 2, Faction: 2, Text: "b"})
	tile := tileUpdate(77, 1)

	frames, err := p.Pack(50, []world.Update{chatA, chatB, tile})
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, uint8(1), frames[0].Faction)
	assert.Equal(t, uint8(2), frames[1].Faction)
	assert.Equal(t, uint8(0), frames[2].Faction)
	assert.NotEqual(t, uint16(0), frames[2].Region)
}

func TestPackEmptyBatch(t *testing.T) {
	p := NewPacker(5000)
	frames, err := p.Pack(0, nil)
	require.NoError(t, err)
	assert.Nil(t, frames)
	assert.Equal(t, uint64(0), p.Seq())
}

func TestEncodeDirectRoundTrip(t *testing.T) {
	reward := &world.Reward{HeroID: 3, ItemID: 9, Amount: 2, Slot: 0, InventoryVersion: 4}
	u := world.RewardUpdate(reward, tetra.ID{Area: 1, Sub: 5, Lod: 8})

	data, err := EncodeDirect(99, 777, []world.Update{u})
	require.NoError(t, err)

	id, ts, entries, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), id)
	assert.Equal(t, uint32(777), ts)
	require.Len(t, entries, 1)
	assert.Equal(t, packet.DataReward, entries[0].Type)
	assert.Equal(t, *reward, world.DecodeReward(entries[0].Payload))
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeFrame([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}
