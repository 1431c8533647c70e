package packet

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/tetra"
)

// Writer builds an outbound packet. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

func NewWriterWithTag(tag byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 128)}
	w.WriteC(tag)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteDS writes 4 bytes little-endian from a signed value.
func (w *Writer) WriteDS(v int32) {
	w.WriteD(uint32(v))
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteTetra writes the 6-byte tetrahedron id block.
func (w *Writer) WriteTetra(id tetra.ID) {
	var b [tetra.WireSize]byte
	id.Encode(b[:])
	w.buf = append(w.buf, b[:]...)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}
