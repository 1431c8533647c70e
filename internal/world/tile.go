package world

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// Tile is a map entity keyed by a tetra id at LOD 7+ inside its region.
//
// Structures are two-phase: an unbuilt tile is a foundation, its constitution
// being raised toward health; once built, constitution acts as hit points
// chipped back down to zero, at which point the tile reverts to empty ground.
// Prop 0 = empty.
type Tile struct {
	ID tetra.ID

	Prop         uint8
	Faction      uint8
	Built        bool
	Health       uint16
	Constitution uint16
	Version      uint8

	// Terrain block. Generated at world init, immutable during play.
	Biome    uint8
	Heat     uint8
	Moisture uint8
	Water    uint8
	Heights  [4]uint32
	Normals  [4][3]float32
}

func (t *Tile) Bump() {
	t.Version++
}

// tileBuiltBit rides the unused high bit of the health word on the wire.
const tileBuiltBit uint16 = 0x8000

// Standing reports whether the tile is a finished structure. The built state
// is tracked, not derived: a standing structure keeps standing while its
// constitution is chipped below the construction target.
func (t *Tile) Standing() bool {
	return t.Prop != 0 && t.Built
}

// Demolish reverts the tile to empty ground.
func (t *Tile) Demolish() {
	t.Prop = 0
	t.Faction = 0
	t.Built = false
	t.Health = 0
	t.Constitution = 0
}

func (t *Tile) Clone() *Tile {
	c := *t
	return &c
}

// encodeF3 packs a float into 3 bytes: signed 24-bit fixed point with 16
// fraction bits, little-endian. Two's complement keeps the sign for
// fractional negatives.
func encodeF3(b []byte, f float32) {
	v := int32(f * 65536)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func decodeF3(b []byte) float32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	v = v << 8 >> 8 // sign-extend from 24 bits
	return float32(v) / 65536
}

// EncodeTo writes the 69-byte wire snapshot (packet.TileSize bytes).
func (t *Tile) EncodeTo(b []byte) {
	t.ID.Encode(b[0:6])
	b[6] = t.Prop
	b[7] = t.Faction
	h := t.Health &^ tileBuiltBit
	if t.Built {
		h |= tileBuiltBit
	}
	binary.LittleEndian.PutUint16(b[8:10], h)
	binary.LittleEndian.PutUint16(b[10:12], t.Constitution)
	b[12] = t.Version
	b[13] = t.Biome
	b[14] = t.Heat
	b[15] = t.Moisture
	b[16] = t.Water
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(b[17+4*i:], t.Heights[i])
	}
	off := 33
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			encodeF3(b[off:off+3], t.Normals[i][j])
			off += 3
		}
	}
}

// DecodeTile reads the 69-byte wire snapshot.
func DecodeTile(b []byte) Tile {
	var t Tile
	t.ID = tetra.Decode(b[0:6])
	t.Prop = b[6]
	t.Faction = b[7]
	h := binary.LittleEndian.Uint16(b[8:10])
	t.Built = h&tileBuiltBit != 0
	t.Health = h &^ tileBuiltBit
	t.Constitution = binary.LittleEndian.Uint16(b[10:12])
	t.Version = b[12]
	t.Biome = b[13]
	t.Heat = b[14]
	t.Moisture = b[15]
	t.Water = b[16]
	for i := 0; i < 4; i++ {
		t.Heights[i] = binary.LittleEndian.Uint32(b[17+4*i:])
	}
	off := 33
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			t.Normals[i][j] = decodeF3(b[off : off+3])
			off += 3
		}
	}
	return t
}
