package chunk

import (
	"encoding/binary"
	"fmt"

	"pngdec.adpollak.net/internal/pngerr"
)

// ColorType is the IHDR colour type field.
type ColorType uint8

const (
	Grayscale      ColorType = 0
	Truecolor      ColorType = 2
	Indexed        ColorType = 3
	GrayscaleAlpha ColorType = 4
	TruecolorAlpha ColorType = 6
)

func (c ColorType) String() string {
	switch c {
	case Grayscale:
		return "grayscale"
	case Truecolor:
		return "truecolor"
	case Indexed:
		return "indexed"
	case GrayscaleAlpha:
		return "grayscale+alpha"
	case TruecolorAlpha:
		return "truecolor+alpha"
	}
	return fmt.Sprintf("colortype(%d)", uint8(c))
}

// IHDR holds the image header fields. It is parsed from the first chunk and
// immutable thereafter.
type IHDR struct {
	Width             uint32
	Height            uint32
	BitDepth          uint8
	ColorType         ColorType
	CompressionMethod uint8
	FilterMethod      uint8
	InterlaceMethod   uint8
}

// Interlace methods.
const (
	InterlaceNone  = 0
	InterlaceAdam7 = 1
)

// ParseIHDR decodes and validates the fixed 13-byte IHDR payload.
func ParseIHDR(data []byte) (IHDR, error) {
	if len(data) != 13 {
		return IHDR{}, pngerr.FormatError(fmt.Sprintf("invalid length for IHDR: %d", len(data)))
	}
	h := IHDR{
		Width:             binary.BigEndian.Uint32(data[0:4]),
		Height:            binary.BigEndian.Uint32(data[4:8]),
		BitDepth:          data[8],
		ColorType:         ColorType(data[9]),
		CompressionMethod: data[10],
		FilterMethod:      data[11],
		InterlaceMethod:   data[12],
	}
	if h.Width == 0 || h.Height == 0 {
		return IHDR{}, pngerr.FormatError("non-positive dimension")
	}
	if h.CompressionMethod != 0 {
		return IHDR{}, pngerr.FormatError(fmt.Sprintf("bad compression method: %d", h.CompressionMethod))
	}
	if h.FilterMethod != 0 {
		return IHDR{}, pngerr.FormatError(fmt.Sprintf("bad filter method: %d", h.FilterMethod))
	}
	if h.InterlaceMethod != InterlaceNone && h.InterlaceMethod != InterlaceAdam7 {
		return IHDR{}, pngerr.FormatError(fmt.Sprintf("bad interlace method: %d", h.InterlaceMethod))
	}
	if !depthValid(h.ColorType, h.BitDepth) {
		return IHDR{}, pngerr.FormatError(fmt.Sprintf("bad bit depth %d for %s", h.BitDepth, h.ColorType))
	}
	return h, nil
}

// depthValid reports whether the (colour type, bit depth) pair is one the
// PNG spec allows.
func depthValid(c ColorType, depth uint8) bool {
	switch c {
	case Grayscale:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case Indexed:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case Truecolor, GrayscaleAlpha, TruecolorAlpha:
		return depth == 8 || depth == 16
	}
	return false
}

// Channels returns the number of samples per pixel for the colour type.
func (h IHDR) Channels() int {
	switch h.ColorType {
	case Grayscale, Indexed:
		return 1
	case GrayscaleAlpha:
		return 2
	case Truecolor:
		return 3
	case TruecolorAlpha:
		return 4
	}
	return 0
}

// PixelStride is the byte distance between neighbouring pixels used by the
// scanline filters. Sub-byte depths round up to one byte.
func (h IHDR) PixelStride() int {
	ps := int(h.BitDepth) * h.Channels() / 8
	if ps < 1 {
		ps = 1
	}
	return ps
}

// LineStride is the byte length of one reconstructed scanline of the given
// pixel width, not counting the leading filter byte.
func (h IHDR) LineStride(width int) int {
	return (width*int(h.BitDepth) + 7) / 8 * h.Channels()
}

// Interlaced reports whether the image uses Adam7 interlacing.
func (h IHDR) Interlaced() bool {
	return h.InterlaceMethod == InterlaceAdam7
}
