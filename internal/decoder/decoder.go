// Package decoder drives a full PNG decode: signature check, chunk stream
// parsing, IDAT concatenation and inflation, and scanline unpacking into a
// typed pixel store.
package decoder

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image/color"
	"io"

	"pngdec.adpollak.net/internal/chunk"
	"pngdec.adpollak.net/internal/images"
	"pngdec.adpollak.net/internal/logging"
	"pngdec.adpollak.net/internal/pngerr"
)

// 137 80 78 71 13 10 26 10
const pngSignature = "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"

// Options configures a decode.
type Options struct {
	// MaxPixels rejects images whose width*height exceeds it. Zero means
	// unbounded.
	MaxPixels int64
}

// Info reports the basic geometry of a decoded image.
type Info struct {
	Width  int
	Height int
}

// Metadata holds the ancillary chunk values encountered during a decode.
type Metadata struct {
	Background *chunk.Background
	Gamma      *chunk.Gamma
}

// PngDecoder reconstructs the reference image from a PNG datastream. It
// owns the reader for the duration of the decode and is not safe for
// concurrent use; use one decoder per image.
type PngDecoder struct {
	r    io.Reader
	opts Options

	stream  *chunk.Stream
	ihdr    chunk.IHDR
	palette []color.RGBA
	meta    Metadata
	idat    bytes.Buffer
}

// NewPngDecoder creates a new PngDecoder reading from r.
func NewPngDecoder(r io.Reader, opts Options) *PngDecoder {
	return &PngDecoder{
		r:      r,
		opts:   opts,
		stream: chunk.NewStream(),
	}
}

// Decode decodes one PNG datastream. On success the returned store holds
// exactly width*height pixels and ownership passes to the caller; on any
// failure no store is returned.
func Decode(r io.Reader, opts Options) (*images.Store, Info, error) {
	d := NewPngDecoder(r, opts)
	store, err := d.Decode()
	if err != nil {
		return nil, Info{}, err
	}
	return store, Info{Width: store.Width, Height: store.Height}, nil
}

// DecodeInfo parses the datastream only as far as the validated IHDR.
func DecodeInfo(r io.Reader) (Info, error) {
	d := NewPngDecoder(r, Options{})
	if err := d.checkSignature(); err != nil {
		return Info{}, err
	}
	c, err := chunk.Read(d.r)
	if err != nil {
		return Info{}, err
	}
	if err := d.stream.Accept(c.Type); err != nil {
		return Info{}, err
	}
	h, err := chunk.ParseIHDR(c.Data)
	if err != nil {
		return Info{}, err
	}
	return Info{Width: int(h.Width), Height: int(h.Height)}, nil
}

// Metadata returns the ancillary values seen by the last decode.
func (d *PngDecoder) Metadata() Metadata {
	return d.meta
}

// Decode runs the decoder over its reader once.
func (d *PngDecoder) Decode() (*images.Store, error) {
	if err := d.checkSignature(); err != nil {
		return nil, err
	}
	if err := d.parseChunkStream(); err != nil {
		return nil, err
	}
	if err := d.stream.Finish(); err != nil {
		return nil, err
	}
	if d.ihdr.ColorType == chunk.Indexed && d.palette == nil {
		return nil, pngerr.FormatError("indexed image without PLTE")
	}

	data, err := d.inflateIDAT()
	if err != nil {
		return nil, err
	}
	store, err := images.Unpack(data, d.ihdr, d.palette)
	if err != nil {
		return nil, err
	}
	logging.Debug().
		Stringer("kind", store.Kind).
		Int("width", store.Width).
		Int("height", store.Height).
		Msg("decoded image")
	return store, nil
}

// checkSignature verifies the first 8 bytes of the datastream.
func (d *PngDecoder) checkSignature() error {
	signature := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(d.r, signature); err != nil {
		return pngerr.ErrNotPNG
	}
	if !bytes.Equal(signature, []byte(pngSignature)) {
		return pngerr.ErrNotPNG
	}
	return nil
}

// parseChunkStream walks the chunk sequence up to and including IEND,
// validating order as it goes and collecting IDAT payloads.
func (d *PngDecoder) parseChunkStream() error {
	for {
		c, err := chunk.Read(d.r)
		if err != nil {
			return err
		}
		if err := d.stream.Accept(c.Type); err != nil {
			return err
		}
		logging.Debug().
			Stringer("chunk", c.Type).
			Uint32("length", c.Length).
			Msg("chunk")

		switch c.Type {
		case chunk.TagIHDR:
			if err := d.handleIHDR(c); err != nil {
				return err
			}
		case chunk.TagPLTE:
			d.palette, err = chunk.ParsePLTE(c.Data, d.ihdr)
			if err != nil {
				return err
			}
		case chunk.TagBKGD:
			// Ancillary: a malformed payload is skipped, not fatal.
			if bkgd, err := chunk.ParseBKGD(c.Data, d.ihdr); err == nil {
				d.meta.Background = &bkgd
			} else {
				logging.Debug().Err(err).Msg("skipping bad bKGD")
			}
		case chunk.TagGAMA:
			if gamma, err := chunk.ParseGAMA(c.Data); err == nil {
				d.meta.Gamma = &gamma
			} else {
				logging.Debug().Err(err).Msg("skipping bad gAMA")
			}
		case chunk.TagIDAT:
			d.idat.Write(c.Data)
		case chunk.TagIEND:
			if c.Length != 0 {
				return pngerr.FormatError(fmt.Sprintf("bad IEND length: %d", c.Length))
			}
			return nil
		default:
			if c.Type.Critical() {
				return pngerr.FormatError(fmt.Sprintf("unknown critical chunk %q", c.Type.String()))
			}
			logging.Debug().Stringer("chunk", c.Type).Msg("skipping unknown ancillary chunk")
		}
	}
}

func (d *PngDecoder) handleIHDR(c *chunk.Chunk) error {
	h, err := chunk.ParseIHDR(c.Data)
	if err != nil {
		return err
	}
	if int32(h.Width) <= 0 || int32(h.Height) <= 0 {
		return pngerr.UnsupportedError("dimension overflow")
	}
	nPixels := int64(h.Width) * int64(h.Height)
	if nPixels != int64(int(nPixels)) {
		return pngerr.UnsupportedError("dimension overflow")
	}
	// Up to 8 bytes per pixel, for 16 bits per channel RGBA.
	if int(nPixels) != (int(nPixels)*8)/8 {
		return pngerr.UnsupportedError("dimension overflow")
	}
	if d.opts.MaxPixels > 0 && nPixels > d.opts.MaxPixels {
		return pngerr.UnsupportedError(fmt.Sprintf("image has %d pixels, limit is %d", nPixels, d.opts.MaxPixels))
	}
	d.ihdr = h
	return nil
}

// inflateIDAT decompresses the concatenated IDAT payloads and verifies the
// output holds exactly the scanline bytes the header calls for.
func (d *PngDecoder) inflateIDAT() ([]byte, error) {
	zr, err := zlib.NewReader(&d.idat)
	if err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("inflate: %v", err))
	}
	defer zr.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("inflate: %v", err))
	}

	want := images.DataLength(d.ihdr)
	if int64(out.Len()) != want {
		return nil, pngerr.FormatError(fmt.Sprintf("IDAT decompressed to %d bytes, want %d", out.Len(), want))
	}
	return out.Bytes(), nil
}
