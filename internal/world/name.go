package world

import "encoding/binary"

// NameBytes is the fixed width of a hero name on the wire: five u32 words.
const NameBytes = 20

// EncodeName packs a UTF-8 name into the fixed 5×u32 block, truncating at
// NameBytes.
func EncodeName(s string) [5]uint32 {
	var raw [NameBytes]byte
	copy(raw[:], s)
	var name [5]uint32
	for i := 0; i < 5; i++ {
		name[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return name
}

// DecodeName unpacks the 5×u32 block back into a string, trimming trailing
// zero bytes.
func DecodeName(name [5]uint32) string {
	var raw [NameBytes]byte
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(raw[4*i:], name[i])
	}
	n := NameBytes
	for n > 0 && raw[n-1] == 0 {
		n--
	}
	return string(raw[:n])
}
