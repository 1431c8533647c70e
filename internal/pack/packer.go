// Package pack assembles state deltas into compressed GlobalState frames.
// A frame is [tag][packetId u64][timestamp u32 seconds] followed by
// [DataType][payload] entries and a NoData terminator, deflated as a whole.
// Frames stay under a configured uncompressed cap so the WebSocket path never
// ships oversized messages and the UDP path keeps fragmentation bounded.
package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/world"
)

// frameHeaderSize is [tag][packetId u64][timestamp u32].
const frameHeaderSize = 1 + 8 + 4

// Frame is one compressed outbound frame plus the routing tags the fan-out
// filter matches against subscriptions.
type Frame struct {
	PacketID    uint64
	Faction     uint8
	Region      uint16
	GamePackets int // entries inside, for telemetry
	Data        []byte
}

// Packer owns the packet-id sequence and a reusable deflate writer. One
// packer per emitting goroutine; it is not safe for concurrent use.
type Packer struct {
	maxFrame int
	seq      uint64

	raw bytes.Buffer
	out bytes.Buffer
	zw  *zlib.Writer
}

// NewPacker creates a packer with the given uncompressed frame cap.
func NewPacker(maxFrameBytes int) *Packer {
	p := &Packer{maxFrame: maxFrameBytes}
	p.zw, _ = zlib.NewWriterLevel(&p.out, zlib.BestCompression)
	return p
}

// Seq returns the last packet id handed out.
func (p *Packer) Seq() uint64 { return p.seq }

type groupKey struct {
	faction uint8
	region  uint16
}

// Pack groups updates by (faction, region) and encodes each group into one
// or more frames, splitting whenever the uncompressed size would pass the
// cap. Packet ids are dense across the returned frames: a client tracking
// the sequence can name exactly which frames it missed.
func (p *Packer) Pack(nowSec uint32, updates []world.Update) ([]Frame, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	// Group while preserving arrival order inside each group.
	order := make([]groupKey, 0, 8)
	groups := make(map[groupKey][]world.Update, 8)
	for _, u := range updates {
		k := groupKey{faction: u.Faction, region: u.Region}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], u)
	}

	var frames []Frame
	for _, k := range order {
		fs, err := p.packGroup(nowSec, k, groups[k])
		if err != nil {
			return nil, err
		}
		frames = append(frames, fs...)
	}
	return frames, nil
}

func (p *Packer) packGroup(nowSec uint32, k groupKey, updates []world.Update) ([]Frame, error) {
	var frames []Frame
	start := 0
	size := frameHeaderSize + 1
	count := 0
	for i, u := range updates {
		entry := 1 + len(u.Payload)
		if count > 0 && size+entry > p.maxFrame {
			f, err := p.encodeFrame(nowSec, k, updates[start:i])
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
			start = i
			size = frameHeaderSize + 1
			count = 0
		}
		size += entry
		count++
	}
	f, err := p.encodeFrame(nowSec, k, updates[start:])
	if err != nil {
		return nil, err
	}
	return append(frames, f), nil
}

// encodeFrame builds and deflates one frame from the given entries.
func (p *Packer) encodeFrame(nowSec uint32, k groupKey, updates []world.Update) (Frame, error) {
	p.seq++
	p.raw.Reset()

	var hdr [frameHeaderSize]byte
	hdr[0] = packet.TagGlobalState
	binary.LittleEndian.PutUint64(hdr[1:9], p.seq)
	binary.LittleEndian.PutUint32(hdr[9:13], nowSec)
	p.raw.Write(hdr[:])

	for _, u := range updates {
		p.raw.WriteByte(byte(u.Type))
		p.raw.Write(u.Payload)
	}
	p.raw.WriteByte(byte(packet.NoData))

	p.out.Reset()
	p.zw.Reset(&p.out)
	if _, err := p.zw.Write(p.raw.Bytes()); err != nil {
		return Frame{}, fmt.Errorf("deflate frame %d: %w", p.seq, err)
	}
	if err := p.zw.Close(); err != nil {
		return Frame{}, fmt.Errorf("deflate frame %d: %w", p.seq, err)
	}

	data := make([]byte, p.out.Len())
	copy(data, p.out.Bytes())
	return Frame{
		PacketID:    p.seq,
		Faction:     k.faction,
		Region:      k.region,
		GamePackets: len(updates),
		Data:        data,
	}, nil
}

// EncodeDirect builds one compressed frame outside any packer sequence, for
// point-to-point replies. Direct frames ignore the frame cap: an inventory
// dump is allowed to run long since it only ever rides the requesting
// client's connection.
func EncodeDirect(packetID uint64, nowSec uint32, updates []world.Update) ([]byte, error) {
	var raw bytes.Buffer
	var hdr [frameHeaderSize]byte
	hdr[0] = packet.TagGlobalState
	binary.LittleEndian.PutUint64(hdr[1:9], packetID)
	binary.LittleEndian.PutUint32(hdr[9:13], nowSec)
	raw.Write(hdr[:])
	for _, u := range updates {
		raw.WriteByte(byte(u.Type))
		raw.Write(u.Payload)
	}
	raw.WriteByte(byte(packet.NoData))

	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Entry is one decoded frame entry.
type Entry struct {
	Type    packet.DataType
	Payload []byte
}

// DecodeFrame inflates and parses a frame (client-side mirror, used in
// tests). Returns the packet id, server timestamp, and entries in order.
func DecodeFrame(data []byte) (uint64, uint32, []Entry, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("inflate frame: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("inflate frame: %w", err)
	}
	if len(raw) < frameHeaderSize+1 || raw[0] != packet.TagGlobalState {
		return 0, 0, nil, fmt.Errorf("malformed frame: %d bytes", len(raw))
	}
	packetID := binary.LittleEndian.Uint64(raw[1:9])
	ts := binary.LittleEndian.Uint32(raw[9:13])

	var entries []Entry
	off := frameHeaderSize
	for {
		if off >= len(raw) {
			return 0, 0, nil, fmt.Errorf("frame %d: missing terminator", packetID)
		}
		t := packet.DataType(raw[off])
		off++
		if t == packet.NoData {
			break
		}
		n := packet.PayloadSize(t)
		if n < 0 || off+n > len(raw) {
			return 0, 0, nil, fmt.Errorf("frame %d: bad entry type %d", packetID, t)
		}
		entries = append(entries, Entry{Type: t, Payload: raw[off : off+n]})
		off += n
	}
	return packetID, ts, entries, nil
}
