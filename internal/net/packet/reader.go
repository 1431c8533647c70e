package packet

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// Reader reads protocol fields from a raw datagram payload.
// Byte 0 is always the tag. Out-of-range reads return zero values; the
// router rejects short packets by checking Remaining up front.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip tag byte
}

func (r *Reader) Tag() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian uint32.
func (r *Reader) ReadD() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadDS reads 4 bytes as little-endian int32.
func (r *Reader) ReadDS() int32 {
	return int32(r.ReadD())
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadTetra reads a 6-byte tetrahedron id block.
func (r *Reader) ReadTetra() tetra.ID {
	if r.off+tetra.WireSize > len(r.data) {
		return tetra.Zero
	}
	id := tetra.Decode(r.data[r.off:])
	r.off += tetra.WireSize
	return id
}

// ReadF3 reads a 3-byte fixed-point float: signed 24-bit two's complement
// with 16 fraction bits, little-endian.
func (r *Reader) ReadF3() float32 {
	if r.off+3 > len(r.data) {
		return 0
	}
	v := int32(r.data[r.off]) | int32(r.data[r.off+1])<<8 | int32(r.data[r.off+2])<<16
	v = v << 8 >> 8
	r.off += 3
	return float32(v) / 65536
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
