// Package interlace holds the Adam7 pass geometry.
package interlace

// Pass describes one Adam7 pass: where its samples land in the full image,
// how far apart they are, and the size of the block each sample paints.
type Pass struct {
	StartX, StartY int
	XStep, YStep   int
	BlockW, BlockH int
}

// Passes are the seven Adam7 passes in decode order.
var Passes = [7]Pass{
	{StartX: 0, StartY: 0, XStep: 8, YStep: 8, BlockW: 8, BlockH: 8},
	{StartX: 4, StartY: 0, XStep: 8, YStep: 8, BlockW: 4, BlockH: 8},
	{StartX: 0, StartY: 4, XStep: 4, YStep: 8, BlockW: 4, BlockH: 4},
	{StartX: 2, StartY: 0, XStep: 4, YStep: 4, BlockW: 2, BlockH: 4},
	{StartX: 0, StartY: 2, XStep: 2, YStep: 4, BlockW: 2, BlockH: 2},
	{StartX: 1, StartY: 0, XStep: 2, YStep: 2, BlockW: 1, BlockH: 2},
	{StartX: 0, StartY: 1, XStep: 1, YStep: 2, BlockW: 1, BlockH: 1},
}

// Size returns the sub-image dimensions of the pass for a width×height
// image. A pass can be empty in either dimension; such passes carry no
// scanline data.
func (p Pass) Size(width, height int) (int, int) {
	pw := (width - p.StartX + p.XStep - 1) / p.XStep
	ph := (height - p.StartY + p.YStep - 1) / p.YStep
	return pw, ph
}
