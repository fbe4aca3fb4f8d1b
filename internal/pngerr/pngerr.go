// Package pngerr defines the error kinds surfaced by the PNG decoder.
package pngerr

import "errors"

// ErrNotPNG reports that the input does not begin with the PNG signature.
var ErrNotPNG = errors.New("png: not a PNG file")

// A FormatError reports that the input is not a valid PNG datastream.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

// An UnsupportedError reports that the input uses a valid but unsupported
// PNG feature or exceeds a configured limit.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported: " + string(e) }
