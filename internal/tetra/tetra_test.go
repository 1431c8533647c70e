package tetra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParent(t *testing.T) {
	id := ID{Area: 3, Sub: 0b110110, Lod: 3}
	p := id.Parent()
	assert.Equal(t, ID{Area: 3, Sub: 0b1101, Lod: 2}, p)

	root := ID{Area: 3, Sub: 0, Lod: 0}
	assert.Equal(t, root, root.Parent())
}

func TestRegion(t *testing.T) {
	// LOD 10 key: three subdivision steps below its region.
	id := ID{Area: 5, Sub: 0x3F0F3, Lod: 10}
	r := id.Region()
	assert.Equal(t, uint8(RegionLod), r.Lod)
	assert.Equal(t, id.Sub>>6, r.Sub)
	assert.Equal(t, id.Area, r.Area)

	// Coarser-than-region keys are their own region.
	coarse := ID{Area: 5, Sub: 0xF, Lod: 4}
	assert.Equal(t, coarse, coarse.Region())
}

func TestRegionKeyReservesZero(t *testing.T) {
	assert.Equal(t, uint16(0), Zero.RegionKey())

	// A key whose hash would collapse to zero still maps to a non-zero tag.
	id := ID{Area: 0, Sub: 0, Lod: 7}
	assert.NotEqual(t, uint16(0), id.RegionKey())
}

func TestRegionKeyStableAcrossLods(t *testing.T) {
	region := ID{Area: 7, Sub: 0x155, Lod: 7}
	deep := ID{Area: 7, Sub: 0x155<<4 | 0x9, Lod: 9}
	assert.Equal(t, region.RegionKey(), deep.RegionKey())
}

func TestEncodeDecode(t *testing.T) {
	id := ID{Area: 19, Sub: 0xDEADBEEF, Lod: 14}
	var b [WireSize]byte
	id.Encode(b[:])
	require.Equal(t, id, Decode(b[:]))
}

func TestString(t *testing.T) {
	assert.Equal(t, "t2:77@7", ID{Area: 2, Sub: 77, Lod: 7}.String())
}
