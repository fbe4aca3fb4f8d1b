// Package chunk implements the PNG chunk layer: framing, CRC validation,
// type dispatch, ordering rules, and the payload decoders for the
// recognized chunk kinds.
package chunk

import "fmt"

// Chunk defines the chunk layout as specified by PNG datastream structure.
type Chunk struct {
	Length uint32 // A four-byte unsigned integer giving the number of bytes in the chunk's data field.
	Type   Tag    // A sequence of four bytes defining the chunk type.
	Data   []byte // The data bytes of the relevant chunk type; can be zero length.
	Crc    uint32 // A four-byte CRC calculated on the chunk type and data, but NOT length.
}

// Tag is a chunk type: the four ASCII type bytes read as a big-endian
// 32-bit magic number.
type Tag uint32

// Recognized chunk tags.
const (
	TagIHDR Tag = 0x49484452 // "IHDR"
	TagPLTE Tag = 0x504C5445 // "PLTE"
	TagIDAT Tag = 0x49444154 // "IDAT"
	TagIEND Tag = 0x49454E44 // "IEND"
	TagGAMA Tag = 0x67414D41 // "gAMA"
	TagBKGD Tag = 0x624B4744 // "bKGD"
)

func (t Tag) String() string {
	return string([]byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)})
}

// Critical reports whether the chunk is a critical type. Criticality is
// bit 5 of the first type byte: clear means critical.
func (t Tag) Critical() bool {
	return byte(t>>24)&0x20 == 0
}

// Recognized reports whether this decoder knows the chunk type.
func (t Tag) Recognized() bool {
	switch t {
	case TagIHDR, TagPLTE, TagIDAT, TagIEND, TagGAMA, TagBKGD:
		return true
	}
	return false
}

// cardinality rules for the recognized chunk set.
type cardinality int

const (
	exactlyOne cardinality = iota
	zeroOrOne
	oneOrMore
)

var cardinalities = map[Tag]cardinality{
	TagIHDR: exactlyOne,
	TagIEND: exactlyOne,
	TagPLTE: zeroOrOne,
	TagBKGD: zeroOrOne,
	TagGAMA: zeroOrOne,
	TagIDAT: oneOrMore,
}

func (c cardinality) String() string {
	switch c {
	case exactlyOne:
		return "exactly one"
	case zeroOrOne:
		return "at most one"
	case oneOrMore:
		return "one or more"
	}
	return fmt.Sprintf("cardinality(%d)", int(c))
}
