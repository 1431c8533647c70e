package tetra

import (
	"encoding/binary"
	"fmt"
)

// WireSize is the on-wire size of an ID: area u8, sub u32 LE, lod u8.
const WireSize = 6

// RegionLod is the subdivision depth at which a tile becomes a region — the
// unit of spatial partitioning, locking, and persistence.
const RegionLod = 7

// ID is a hierarchical spatial key: a path from one of 20 top-level areas
// down to a tetrahedron at some level of detail. It is a comparable value
// type; it is hashed and compared at very high frequency, so it carries no
// pointers.
type ID struct {
	Area uint8
	Sub  uint32
	Lod  uint8
}

// Zero is the null key. It doubles as the "global" region on the wire.
var Zero ID

// Parent returns the immediate ancestor: each subdivision step appends two
// bits to Sub, so the parent drops them and backs off one LOD.
func (id ID) Parent() ID {
	if id.Lod == 0 {
		return id
	}
	return ID{Area: id.Area, Sub: id.Sub >> 2, Lod: id.Lod - 1}
}

// Region returns the LOD-7 ancestor of the key. Keys coarser than LOD 7
// return themselves unchanged.
func (id ID) Region() ID {
	if id.Lod <= RegionLod {
		return id
	}
	shift := 2 * uint(id.Lod-RegionLod)
	return ID{Area: id.Area, Sub: id.Sub >> shift, Lod: RegionLod}
}

// RegionKey compacts the LOD-7 region into the u16 tag carried on outbound
// frames and in client subscription slots. Collisions are tolerated: they can
// only widen delivery, never filter a frame a client should have received.
// Zero is reserved for "global".
func (id ID) RegionKey() uint16 {
	r := id.Region()
	if r == Zero {
		return 0
	}
	k := uint16(r.Area)<<11 ^ uint16(r.Sub&0x07FF)
	if k == 0 {
		k = uint16(r.Area) | 0x8000
	}
	return k
}

// IsZero reports whether the key is the null key.
func (id ID) IsZero() bool {
	return id == Zero
}

// Encode writes the 6-byte wire form into b. b must hold WireSize bytes.
func (id ID) Encode(b []byte) {
	b[0] = id.Area
	binary.LittleEndian.PutUint32(b[1:5], id.Sub)
	b[5] = id.Lod
}

// Decode reads the 6-byte wire form from b.
func Decode(b []byte) ID {
	return ID{
		Area: b[0],
		Sub:  binary.LittleEndian.Uint32(b[1:5]),
		Lod:  b[5],
	}
}

func (id ID) String() string {
	return fmt.Sprintf("t%d:%d@%d", id.Area, id.Sub, id.Lod)
}
