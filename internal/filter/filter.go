// Package filter inverts the per-scanline predictive filters of the PNG
// format.
package filter

import (
	"fmt"

	"pngdec.adpollak.net/internal/pngerr"
)

// Filter types, as per the PNG spec.
const (
	None    = 0
	Sub     = 1
	Up      = 2
	Average = 3
	Paeth   = 4
)

// Engine reconstructs scanlines from their filtered form. It holds exactly
// two rows of memory, addressed modulo 2*stride: the half at index is the
// current row, the other half is the previous row. The previous row is all
// zeros before the first scanline.
type Engine struct {
	win    []byte
	stride int // line stride in bytes
	ps     int // pixel stride: byte distance to the left neighbour
	index  int
}

// NewEngine returns an engine for scanlines of lineStride bytes whose
// filters look back pixelStride bytes.
func NewEngine(lineStride, pixelStride int) *Engine {
	return &Engine{
		win:    make([]byte, 2*lineStride),
		stride: lineStride,
		ps:     pixelStride,
	}
}

// Reconstruct inverts one scanline. raw holds the stride bytes that follow
// the filter byte. The returned slice aliases the engine's window and is
// overwritten two calls later.
func (e *Engine) Reconstruct(ftype byte, raw []byte) ([]byte, error) {
	cur := e.win[e.index : e.index+e.stride]
	prevIndex := (e.index + e.stride) % (2 * e.stride)
	prev := e.win[prevIndex : prevIndex+e.stride]
	copy(cur, raw)

	switch ftype {
	case None:
		// No-op.
	case Sub:
		for i := e.ps; i < len(cur); i++ {
			cur[i] += cur[i-e.ps]
		}
	case Up:
		for i, p := range prev {
			cur[i] += p
		}
	case Average:
		for i := 0; i < e.ps && i < len(cur); i++ {
			cur[i] += prev[i] / 2
		}
		for i := e.ps; i < len(cur); i++ {
			cur[i] += uint8((int(cur[i-e.ps]) + int(prev[i])) / 2)
		}
	case Paeth:
		for i := range cur {
			var a, c int
			if i >= e.ps {
				a = int(cur[i-e.ps])
				c = int(prev[i-e.ps])
			}
			b := int(prev[i])
			cur[i] += uint8(paethPredictor(a, b, c))
		}
	default:
		return nil, pngerr.FormatError(fmt.Sprintf("bad filter type: %d", ftype))
	}

	e.index = (e.index + e.stride) % (2 * e.stride)
	return cur, nil
}

// paethPredictor picks the neighbour closest to a+b-c, preferring left,
// then up, then upper-left on ties. The arithmetic must stay in signed
// ints; the modular byte expression gives wrong answers.
func paethPredictor(a, b, c int) int {
	p := a + b - c
	pa := abs(p - a)
	pb := abs(p - b)
	pc := abs(p - c)

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
