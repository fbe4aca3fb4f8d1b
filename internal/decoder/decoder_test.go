package decoder

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/snksoft/crc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pngdec.adpollak.net/internal/chunk"
	"pngdec.adpollak.net/internal/images"
	"pngdec.adpollak.net/internal/pngerr"
)

// frame builds the wire form of one chunk with a correct CRC.
func frame(tag string, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(len(payload)))
	b.WriteString(tag)
	b.Write(payload)
	sum := crc.CalculateCRC(crc.CRC32, append([]byte(tag), payload...))
	binary.Write(&b, binary.BigEndian, uint32(sum))
	return b.Bytes()
}

func png(chunks ...[]byte) []byte {
	out := []byte(pngSignature)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func deflate(t *testing.T, raw []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

func ihdr(w, h uint32, depth uint8, ct chunk.ColorType, interlace uint8) []byte {
	p := make([]byte, 13)
	binary.BigEndian.PutUint32(p[0:4], w)
	binary.BigEndian.PutUint32(p[4:8], h)
	p[8] = depth
	p[9] = uint8(ct)
	p[12] = interlace
	return p
}

// minimalPNG is a 1x1 rgba32 image with the given raw scanline bytes.
func minimalPNG(t *testing.T, raw []byte) []byte {
	return png(
		frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
		frame("IDAT", deflate(t, raw)),
		frame("IEND", nil),
	)
}

func TestSignatureGuard(t *testing.T) {
	for name, input := range map[string][]byte{
		"all zeros":  make([]byte, 32),
		"empty":      {},
		"short":      []byte("\x89PN"),
		"jpeg SOI":   {0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0},
		"almost PNG": []byte("\x89PNG\r\n\x1a\x0b"),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(input), Options{})
			assert.ErrorIs(t, err, pngerr.ErrNotPNG)
		})
	}
}

func TestDecodeRGBA1x1(t *testing.T) {
	store, info, err := Decode(bytes.NewReader(minimalPNG(t, []byte{0x00, 0xAA, 0xBB, 0xCC, 0xDD})), Options{})
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 1, Height: 1}, info)
	assert.Equal(t, images.RGBA32, store.Kind)
	assert.Equal(t, []uint8{0xAA, 0xBB, 0xCC, 0xDD}, store.Pix)
}

func TestDecodeFilteredGray(t *testing.T) {
	decode := func(t *testing.T, raw []byte) *images.Store {
		stream := png(
			frame("IHDR", ihdr(2, 2, 8, chunk.Grayscale, 0)),
			frame("IDAT", deflate(t, raw)),
			frame("IEND", nil),
		)
		store, _, err := Decode(bytes.NewReader(stream), Options{})
		require.NoError(t, err)
		return store
	}

	t.Run("sub", func(t *testing.T) {
		// Row 1: each byte adds the reconstructed left neighbour.
		store := decode(t, []byte{0x00, 0x10, 0x20, 0x01, 0x05, 0x07})
		assert.Equal(t, []uint8{0x10, 0x20, 0x05, 0x0C}, store.Pix)
	})
	t.Run("up", func(t *testing.T) {
		store := decode(t, []byte{0x00, 0x10, 0x20, 0x02, 0x05, 0x07})
		assert.Equal(t, []uint8{0x10, 0x20, 0x15, 0x27}, store.Pix)
	})
	t.Run("paeth", func(t *testing.T) {
		store := decode(t, []byte{0x00, 0x10, 0x20, 0x04, 0x01, 0x02})
		assert.Equal(t, []uint8{0x10, 0x20, 0x11, 0x22}, store.Pix)
	})
	t.Run("bad filter byte", func(t *testing.T) {
		stream := png(
			frame("IHDR", ihdr(2, 2, 8, chunk.Grayscale, 0)),
			frame("IDAT", deflate(t, []byte{0x05, 0x10, 0x20, 0x00, 0x05, 0x07})),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
}

func TestDecodeAdam7Solid(t *testing.T) {
	// 8x8 gray8, every pass filtered with none, every sample 0x42.
	var raw []byte
	for _, rows := range []struct{ n, width int }{
		{1, 1}, {1, 1}, {1, 2}, {2, 2}, {2, 4}, {4, 4}, {4, 8},
	} {
		for r := 0; r < rows.n; r++ {
			raw = append(raw, 0x00)
			for i := 0; i < rows.width; i++ {
				raw = append(raw, 0x42)
			}
		}
	}
	stream := png(
		frame("IHDR", ihdr(8, 8, 8, chunk.Grayscale, 1)),
		frame("IDAT", deflate(t, raw)),
		frame("IEND", nil),
	)
	store, info, err := Decode(bytes.NewReader(stream), Options{})
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 8, Height: 8}, info)
	require.Len(t, store.Pix, 64)
	for i, v := range store.Pix {
		assert.Equal(t, uint8(0x42), v, "pixel %d", i)
	}
}

func TestUnknownChunks(t *testing.T) {
	blob := []byte{1, 2, 3}
	t.Run("ancillary is skipped", func(t *testing.T) {
		for _, tag := range []string{"bLUB", "bLUb"} {
			stream := png(
				frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
				frame(tag, blob),
				frame("IDAT", deflate(t, []byte{0x00, 1, 2, 3, 4})),
				frame("IEND", nil),
			)
			_, _, err := Decode(bytes.NewReader(stream), Options{})
			assert.NoError(t, err, "tag %s", tag)
		}
	})
	t.Run("critical aborts", func(t *testing.T) {
		stream := png(
			frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
			frame("BLUB", blob),
			frame("IDAT", deflate(t, []byte{0x00, 1, 2, 3, 4})),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
}

func TestCRCMismatch(t *testing.T) {
	stream := minimalPNG(t, []byte{0x00, 1, 2, 3, 4})
	// Flip one bit inside the IHDR payload; the stored CRC no longer
	// matches.
	stream[8+8+3] ^= 0x40
	_, _, err := Decode(bytes.NewReader(stream), Options{})
	var ferr pngerr.FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestTruncatedIDAT(t *testing.T) {
	full := minimalPNG(t, []byte{0x00, 1, 2, 3, 4})
	// Cut into the final IEND/IDAT region byte by byte.
	for cut := 1; cut <= 16; cut++ {
		_, _, err := Decode(bytes.NewReader(full[:len(full)-cut]), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr, "cut %d bytes", cut)
	}
}

func TestIDATLengthMismatch(t *testing.T) {
	t.Run("extra byte", func(t *testing.T) {
		_, _, err := Decode(bytes.NewReader(minimalPNG(t, []byte{0x00, 1, 2, 3, 4, 9})), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
	t.Run("missing byte", func(t *testing.T) {
		_, _, err := Decode(bytes.NewReader(minimalPNG(t, []byte{0x00, 1, 2, 3})), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
	t.Run("empty stream", func(t *testing.T) {
		_, _, err := Decode(bytes.NewReader(minimalPNG(t, nil)), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
}

func TestSplitIDAT(t *testing.T) {
	// One zlib stream split across two contiguous IDAT chunks.
	z := deflate(t, []byte{0x00, 0xAA, 0xBB, 0xCC, 0xDD})
	stream := png(
		frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
		frame("IDAT", z[:3]),
		frame("IDAT", z[3:]),
		frame("IEND", nil),
	)
	store, _, err := Decode(bytes.NewReader(stream), Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0xAA, 0xBB, 0xCC, 0xDD}, store.Pix)
}

func TestChunkOrdering(t *testing.T) {
	z := deflate(t, []byte{0x00, 0xAA, 0xBB, 0xCC, 0xDD})
	head := frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0))

	t.Run("IDAT not contiguous", func(t *testing.T) {
		stream := png(head,
			frame("IDAT", z[:3]),
			frame("gAMA", []byte{0, 0, 0xB1, 0x8F}),
			frame("IDAT", z[3:]),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		assert.Error(t, err)
	})
	t.Run("PLTE after IDAT", func(t *testing.T) {
		stream := png(head,
			frame("IDAT", z),
			frame("PLTE", []byte{1, 2, 3}),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		assert.Error(t, err)
	})
	t.Run("missing IEND", func(t *testing.T) {
		stream := png(head, frame("IDAT", z))
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		assert.Error(t, err)
	})
}

func TestIndexed(t *testing.T) {
	plte := frame("PLTE", []byte{
		0x10, 0x20, 0x30,
		0x40, 0x50, 0x60,
		0x70, 0x80, 0x90,
		0xA0, 0xB0, 0xC0,
	})

	t.Run("depth 2", func(t *testing.T) {
		// 4x1, samples 3,2,1,0 packed MSB first: 0b11100100.
		stream := png(
			frame("IHDR", ihdr(4, 1, 2, chunk.Indexed, 0)),
			plte,
			frame("IDAT", deflate(t, []byte{0x00, 0b11100100})),
			frame("IEND", nil),
		)
		store, _, err := Decode(bytes.NewReader(stream), Options{})
		require.NoError(t, err)
		assert.Equal(t, images.Indexed2, store.Kind)
		assert.Equal(t, []uint8{3, 2, 1, 0}, store.Pix)
		require.Len(t, store.Palette, 4)
		assert.Equal(t, uint8(0x40), store.Palette[1].R)
		assert.Equal(t, uint8(0xff), store.Palette[1].A)
	})

	t.Run("palette over depth capacity", func(t *testing.T) {
		stream := png(
			frame("IHDR", ihdr(4, 1, 2, chunk.Indexed, 0)),
			frame("PLTE", make([]byte, 3*5)),
			frame("IDAT", deflate(t, []byte{0x00, 0b11100100})),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("missing PLTE", func(t *testing.T) {
		stream := png(
			frame("IHDR", ihdr(4, 1, 2, chunk.Indexed, 0)),
			frame("IDAT", deflate(t, []byte{0x00, 0b11100100})),
			frame("IEND", nil),
		)
		_, _, err := Decode(bytes.NewReader(stream), Options{})
		var ferr pngerr.FormatError
		require.ErrorAs(t, err, &ferr)
	})
}

func TestMaxPixels(t *testing.T) {
	stream := minimalPNG(t, []byte{0x00, 1, 2, 3, 4})
	_, _, err := Decode(bytes.NewReader(stream), Options{MaxPixels: 1})
	assert.NoError(t, err)

	stream2 := png(
		frame("IHDR", ihdr(2, 2, 8, chunk.Grayscale, 0)),
		frame("IDAT", deflate(t, []byte{0, 1, 2, 0, 3, 4})),
		frame("IEND", nil),
	)
	_, _, err = Decode(bytes.NewReader(stream2), Options{MaxPixels: 3})
	var uerr pngerr.UnsupportedError
	require.ErrorAs(t, err, &uerr)
}

func TestMetadata(t *testing.T) {
	stream := png(
		frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
		frame("gAMA", []byte{0x00, 0x00, 0xB1, 0x8F}),
		frame("bKGD", []byte{0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF}),
		frame("IDAT", deflate(t, []byte{0x00, 1, 2, 3, 4})),
		frame("IEND", nil),
	)
	d := NewPngDecoder(bytes.NewReader(stream), Options{})
	_, err := d.Decode()
	require.NoError(t, err)

	meta := d.Metadata()
	require.NotNil(t, meta.Gamma)
	assert.InDelta(t, 0.45455, meta.Gamma.Exponent(), 1e-9)
	require.NotNil(t, meta.Background)
	assert.Equal(t, chunk.BackgroundRGB, meta.Background.Kind)
	assert.Equal(t, uint16(0x00FF), meta.Background.R)

	t.Run("malformed ancillary payload is skipped", func(t *testing.T) {
		stream := png(
			frame("IHDR", ihdr(1, 1, 8, chunk.TruecolorAlpha, 0)),
			frame("gAMA", []byte{0x01}),
			frame("IDAT", deflate(t, []byte{0x00, 1, 2, 3, 4})),
			frame("IEND", nil),
		)
		d := NewPngDecoder(bytes.NewReader(stream), Options{})
		_, err := d.Decode()
		require.NoError(t, err)
		assert.Nil(t, d.Metadata().Gamma)
	})
}

func TestDecodeIsDeterministic(t *testing.T) {
	stream := png(
		frame("IHDR", ihdr(2, 2, 8, chunk.Grayscale, 0)),
		frame("IDAT", deflate(t, []byte{0x00, 0x10, 0x20, 0x04, 0x01, 0x02})),
		frame("IEND", nil),
	)
	a, _, err := Decode(bytes.NewReader(stream), Options{})
	require.NoError(t, err)
	b, _, err := Decode(bytes.NewReader(stream), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, a.Kind, b.Kind)
}

func TestAllFormats1x1(t *testing.T) {
	fullPalette := func(depth uint8) []byte {
		return make([]byte, 3*(1<<depth))
	}
	cases := []struct {
		ct    chunk.ColorType
		depth uint8
		kind  images.Kind
	}{
		{chunk.Grayscale, 1, images.Gray1},
		{chunk.Grayscale, 2, images.Gray2},
		{chunk.Grayscale, 4, images.Gray4},
		{chunk.Grayscale, 8, images.Gray8},
		{chunk.Grayscale, 16, images.Gray16},
		{chunk.GrayscaleAlpha, 8, images.Gray8Alpha},
		{chunk.GrayscaleAlpha, 16, images.Gray16Alpha},
		{chunk.Truecolor, 8, images.RGB24},
		{chunk.Truecolor, 16, images.RGB48},
		{chunk.TruecolorAlpha, 8, images.RGBA32},
		{chunk.TruecolorAlpha, 16, images.RGBA64},
		{chunk.Indexed, 1, images.Indexed1},
		{chunk.Indexed, 2, images.Indexed2},
		{chunk.Indexed, 4, images.Indexed4},
		{chunk.Indexed, 8, images.Indexed8},
	}
	for _, c := range cases {
		t.Run(c.kind.String(), func(t *testing.T) {
			h := chunk.IHDR{Width: 1, Height: 1, BitDepth: c.depth, ColorType: c.ct}
			raw := make([]byte, 1+h.LineStride(1))
			for i := 1; i < len(raw); i++ {
				raw[i] = 0xFF
			}
			chunks := [][]byte{frame("IHDR", ihdr(1, 1, c.depth, c.ct, 0))}
			if c.ct == chunk.Indexed {
				chunks = append(chunks, frame("PLTE", fullPalette(c.depth)))
			}
			chunks = append(chunks,
				frame("IDAT", deflate(t, raw)),
				frame("IEND", nil),
			)
			store, info, err := Decode(bytes.NewReader(png(chunks...)), Options{})
			require.NoError(t, err)
			assert.Equal(t, Info{Width: 1, Height: 1}, info)
			assert.Equal(t, c.kind, store.Kind)
			if len(store.Pix16) > 0 {
				assert.Len(t, store.Pix16, h.Channels())
			} else {
				assert.Len(t, store.Pix, h.Channels())
			}
		})
	}
}

func TestDecodeInfo(t *testing.T) {
	info, err := DecodeInfo(bytes.NewReader(minimalPNG(t, []byte{0x00, 1, 2, 3, 4})))
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 1, Height: 1}, info)

	_, err = DecodeInfo(bytes.NewReader(make([]byte, 16)))
	assert.ErrorIs(t, err, pngerr.ErrNotPNG)
}
