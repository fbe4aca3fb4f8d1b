package images

import (
	"image"
	"image/color"
)

// Image converts the store to a stdlib image for display or export. Sample
// values are widened to the nearest stdlib representation; sub-byte gray
// levels are rescaled to the full 8-bit range.
func (s *Store) Image() image.Image {
	rect := image.Rect(0, 0, s.Width, s.Height)
	switch s.Kind {
	case Gray1, Gray2, Gray4, Gray8:
		img := image.NewGray(rect)
		max := uint16(1)<<bitDepth(s.Kind) - 1
		for i, v := range s.Pix {
			img.Pix[i] = uint8(uint16(v) * 255 / max)
		}
		return img
	case Gray16:
		img := image.NewGray16(rect)
		for i, v := range s.Pix16 {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img
	case Gray8Alpha:
		img := image.NewNRGBA(rect)
		for i := 0; i < s.Width*s.Height; i++ {
			v, a := s.Pix[2*i], s.Pix[2*i+1]
			img.Pix[4*i] = v
			img.Pix[4*i+1] = v
			img.Pix[4*i+2] = v
			img.Pix[4*i+3] = a
		}
		return img
	case Gray16Alpha:
		img := image.NewNRGBA64(rect)
		for i := 0; i < s.Width*s.Height; i++ {
			putNRGBA64(img.Pix[8*i:], s.Pix16[2*i], s.Pix16[2*i], s.Pix16[2*i], s.Pix16[2*i+1])
		}
		return img
	case RGB24:
		img := image.NewNRGBA(rect)
		for i := 0; i < s.Width*s.Height; i++ {
			copy(img.Pix[4*i:], s.Pix[3*i:3*i+3])
			img.Pix[4*i+3] = 0xff
		}
		return img
	case RGB48:
		img := image.NewNRGBA64(rect)
		for i := 0; i < s.Width*s.Height; i++ {
			putNRGBA64(img.Pix[8*i:], s.Pix16[3*i], s.Pix16[3*i+1], s.Pix16[3*i+2], 0xffff)
		}
		return img
	case RGBA32:
		img := image.NewNRGBA(rect)
		copy(img.Pix, s.Pix)
		return img
	case RGBA64:
		img := image.NewNRGBA64(rect)
		for i := 0; i < s.Width*s.Height; i++ {
			putNRGBA64(img.Pix[8*i:], s.Pix16[4*i], s.Pix16[4*i+1], s.Pix16[4*i+2], s.Pix16[4*i+3])
		}
		return img
	case Indexed1, Indexed2, Indexed4, Indexed8:
		palette := make(color.Palette, len(s.Palette))
		for i, c := range s.Palette {
			palette[i] = c
		}
		img := image.NewPaletted(rect, palette)
		copy(img.Pix, s.Pix)
		return img
	}
	return nil
}

func bitDepth(k Kind) uint {
	switch k {
	case Gray1, Indexed1:
		return 1
	case Gray2, Indexed2:
		return 2
	case Gray4, Indexed4:
		return 4
	case Gray16, Gray16Alpha, RGB48, RGBA64:
		return 16
	default:
		return 8
	}
}

func putNRGBA64(pix []byte, r, g, b, a uint16) {
	pix[0] = uint8(r >> 8)
	pix[1] = uint8(r)
	pix[2] = uint8(g >> 8)
	pix[3] = uint8(g)
	pix[4] = uint8(b >> 8)
	pix[5] = uint8(b)
	pix[6] = uint8(a >> 8)
	pix[7] = uint8(a)
}
