package images

import (
	"encoding/binary"
	"fmt"
	"image/color"

	"pngdec.adpollak.net/internal/chunk"
	"pngdec.adpollak.net/internal/filter"
	"pngdec.adpollak.net/internal/interlace"
	"pngdec.adpollak.net/internal/pngerr"
)

// sampleReader yields bit-depth sized samples from a reconstructed
// scanline. Sub-byte samples are packed MSB first; the bit position inside
// the current byte is derived from the sample index, so padding bits at the
// end of a row are never consumed.
type sampleReader struct {
	row   []byte
	depth int
	n     int // samples consumed
}

func (r *sampleReader) next() uint16 {
	switch r.depth {
	case 8:
		v := r.row[r.n]
		r.n++
		return uint16(v)
	case 16:
		v := binary.BigEndian.Uint16(r.row[2*r.n:])
		r.n++
		return v
	default:
		bit := r.n * r.depth % 8
		b := r.row[r.n*r.depth/8]
		v := b >> (8 - r.depth - bit) & (1<<r.depth - 1)
		r.n++
		return uint16(v)
	}
}

// readPixel reads one pixel's channel samples in wire order.
func readPixel(r *sampleReader, nchan int) [4]uint16 {
	var px [4]uint16
	for c := 0; c < nchan; c++ {
		px[c] = r.next()
	}
	return px
}

// DataLength is the exact byte length the decompressed IDAT stream must
// have for the given header: per scanline, one filter byte plus the line
// stride; summed over the seven passes when interlaced.
func DataLength(h chunk.IHDR) int64 {
	w, ht := int(h.Width), int(h.Height)
	if !h.Interlaced() {
		return int64(ht) * int64(1+h.LineStride(w))
	}
	var total int64
	for _, p := range interlace.Passes {
		pw, ph := p.Size(w, ht)
		if pw == 0 || ph == 0 {
			continue
		}
		total += int64(ph) * int64(1+h.LineStride(pw))
	}
	return total
}

// Unpack decodes the full decompressed scanline stream into a freshly
// allocated pixel store. data must already have the exact DataLength size.
func Unpack(data []byte, h chunk.IHDR, palette []color.RGBA) (*Store, error) {
	kind, ok := KindOf(h.ColorType, h.BitDepth)
	if !ok {
		return nil, pngerr.UnsupportedError(fmt.Sprintf("no pixel variant for %s depth %d", h.ColorType, h.BitDepth))
	}
	if want := DataLength(h); int64(len(data)) != want {
		return nil, pngerr.FormatError(fmt.Sprintf("scanline data is %d bytes, want %d", len(data), want))
	}
	s := NewStore(kind, int(h.Width), int(h.Height))
	s.Palette = palette

	var err error
	if h.Interlaced() {
		err = s.unpackAdam7(data, h)
	} else {
		err = s.unpackSequential(data, h)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// unpackSequential walks the height scanlines of a non-interlaced image.
func (s *Store) unpackSequential(data []byte, h chunk.IHDR) error {
	width, height := int(h.Width), int(h.Height)
	stride := h.LineStride(width)
	nchan := h.Channels()
	eng := filter.NewEngine(stride, h.PixelStride())

	off := 0
	for y := 0; y < height; y++ {
		row, err := eng.Reconstruct(data[off], data[off+1:off+1+stride])
		if err != nil {
			return err
		}
		off += 1 + stride

		r := sampleReader{row: row, depth: int(h.BitDepth)}
		for x := 0; x < width; x++ {
			s.setPixel(y*width+x, readPixel(&r, nchan))
		}
	}
	return nil
}

// unpackAdam7 decodes the seven interlace passes. Every decoded sample is
// written to the whole destination block it stands in for, clipped to the
// image bounds, so a prefix of the passes already renders a coarse image.
func (s *Store) unpackAdam7(data []byte, h chunk.IHDR) error {
	width, height := int(h.Width), int(h.Height)
	nchan := h.Channels()

	off := 0
	for _, p := range interlace.Passes {
		pw, ph := p.Size(width, height)
		if pw == 0 || ph == 0 {
			continue
		}
		stride := h.LineStride(pw)
		eng := filter.NewEngine(stride, h.PixelStride())

		for py := 0; py < ph; py++ {
			row, err := eng.Reconstruct(data[off], data[off+1:off+1+stride])
			if err != nil {
				return err
			}
			off += 1 + stride

			r := sampleReader{row: row, depth: int(h.BitDepth)}
			for px := 0; px < pw; px++ {
				v := readPixel(&r, nchan)
				x0 := p.StartX + px*p.XStep
				y0 := p.StartY + py*p.YStep
				for y := y0; y < y0+p.BlockH && y < height; y++ {
					for x := x0; x < x0+p.BlockW && x < width; x++ {
						s.setPixel(y*width+x, v)
					}
				}
			}
		}
	}
	return nil
}
