package chunk

import (
	"encoding/binary"
	"fmt"
	"image/color"

	"pngdec.adpollak.net/internal/pngerr"
)

// ParsePLTE decodes a palette payload into RGBA entries with opaque alpha.
// The entry count is bounded by 256 and, for indexed images, by the number
// of values the bit depth can address.
func ParsePLTE(data []byte, h IHDR) ([]color.RGBA, error) {
	if len(data) == 0 || len(data)%3 != 0 {
		return nil, pngerr.FormatError(fmt.Sprintf("PLTE length must be a positive multiple of 3; got: %d", len(data)))
	}
	n := len(data) / 3
	if n > 256 {
		return nil, pngerr.FormatError(fmt.Sprintf("PLTE has too many entries: %d", n))
	}
	if h.ColorType == Indexed && n > 1<<h.BitDepth {
		return nil, pngerr.FormatError(fmt.Sprintf("PLTE has %d entries for bit depth %d", n, h.BitDepth))
	}
	palette := make([]color.RGBA, n)
	for i := range palette {
		palette[i] = color.RGBA{
			R: data[3*i],
			G: data[3*i+1],
			B: data[3*i+2],
			A: 0xff,
		}
	}
	return palette, nil
}

// BackgroundKind discriminates the bKGD payload variants.
type BackgroundKind int

const (
	BackgroundGray BackgroundKind = iota
	BackgroundPaletteIndex
	BackgroundRGB
)

// Background is the decoded bKGD chunk. Only the fields selected by Kind
// are meaningful.
type Background struct {
	Kind BackgroundKind

	Gray    uint16 // BackgroundGray
	Index   uint8  // BackgroundPaletteIndex
	R, G, B uint16 // BackgroundRGB
}

// ParseBKGD decodes a background payload. The variant is dictated by the
// IHDR colour type.
func ParseBKGD(data []byte, h IHDR) (Background, error) {
	switch h.ColorType {
	case Grayscale, GrayscaleAlpha:
		if len(data) != 2 {
			return Background{}, pngerr.FormatError(fmt.Sprintf("bKGD length must be 2 for %s; got: %d", h.ColorType, len(data)))
		}
		return Background{
			Kind: BackgroundGray,
			Gray: binary.BigEndian.Uint16(data),
		}, nil
	case Indexed:
		if len(data) != 1 {
			return Background{}, pngerr.FormatError(fmt.Sprintf("bKGD length must be 1 for %s; got: %d", h.ColorType, len(data)))
		}
		return Background{
			Kind:  BackgroundPaletteIndex,
			Index: data[0],
		}, nil
	case Truecolor, TruecolorAlpha:
		if len(data) != 6 {
			return Background{}, pngerr.FormatError(fmt.Sprintf("bKGD length must be 6 for %s; got: %d", h.ColorType, len(data)))
		}
		return Background{
			Kind: BackgroundRGB,
			R:    binary.BigEndian.Uint16(data[0:2]),
			G:    binary.BigEndian.Uint16(data[2:4]),
			B:    binary.BigEndian.Uint16(data[4:6]),
		}, nil
	}
	return Background{}, pngerr.FormatError(fmt.Sprintf("bKGD with colour type %d", h.ColorType))
}

// Gamma holds the gAMA chunk value, encoded as gamma * 100000.
type Gamma uint32

// ParseGAMA decodes a gamma payload.
func ParseGAMA(data []byte) (Gamma, error) {
	if len(data) != 4 {
		return 0, pngerr.FormatError(fmt.Sprintf("gAMA length must be 4 bytes; got: %d", len(data)))
	}
	return Gamma(binary.BigEndian.Uint32(data)), nil
}

// Exponent converts the stored fixed-point gamma value to a float64.
func (g Gamma) Exponent() float64 {
	return float64(g) / 100_000.0
}
