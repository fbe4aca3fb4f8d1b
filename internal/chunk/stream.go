package chunk

import (
	"fmt"

	"pngdec.adpollak.net/internal/pngerr"
)

// Stream enforces the chunk ordering and cardinality rules across one PNG
// datastream: IHDR first, IEND last, PLTE before any IDAT, bKGD after PLTE
// and before IDAT, IDAT chunks contiguous, singletons not repeated.
type Stream struct {
	counts   map[Tag]int
	total    int
	iend     bool
	idatDone bool // the IDAT run has ended; further IDATs are out of order
}

func NewStream() *Stream {
	return &Stream{counts: make(map[Tag]int)}
}

// Accept validates the position of the next chunk in the stream. It must be
// called for every chunk in encounter order, recognized or not.
func (s *Stream) Accept(t Tag) error {
	if s.iend {
		return pngerr.FormatError(fmt.Sprintf("chunk %q after IEND", t.String()))
	}
	if s.total == 0 && t != TagIHDR {
		return pngerr.FormatError("IHDR must be the first chunk")
	}

	switch t {
	case TagIHDR:
		if s.total != 0 {
			return pngerr.FormatError("duplicate IHDR")
		}
	case TagPLTE:
		if s.counts[TagPLTE] > 0 {
			return pngerr.FormatError("duplicate PLTE")
		}
		if s.counts[TagIDAT] > 0 {
			return pngerr.FormatError("PLTE after IDAT")
		}
		if s.counts[TagBKGD] > 0 {
			return pngerr.FormatError("PLTE after bKGD")
		}
	case TagBKGD:
		if s.counts[TagBKGD] > 0 {
			return pngerr.FormatError("duplicate bKGD")
		}
		if s.counts[TagIDAT] > 0 {
			return pngerr.FormatError("bKGD after IDAT")
		}
	case TagGAMA:
		if s.counts[TagGAMA] > 0 {
			return pngerr.FormatError("duplicate gAMA")
		}
		if s.counts[TagIDAT] > 0 {
			return pngerr.FormatError("gAMA after IDAT")
		}
	case TagIDAT:
		if s.idatDone {
			return pngerr.FormatError("IDAT chunks are not contiguous")
		}
	case TagIEND:
		s.iend = true
	}

	if t != TagIDAT && s.counts[TagIDAT] > 0 {
		s.idatDone = true
	}
	s.counts[t]++
	s.total++
	return nil
}

// Finish verifies the cardinality of the recognized chunk set once the
// stream has been fully consumed.
func (s *Stream) Finish() error {
	for tag, card := range cardinalities {
		n := s.counts[tag]
		switch card {
		case exactlyOne:
			if n != 1 {
				return pngerr.FormatError(fmt.Sprintf("%s: want %s chunk, got %d", tag.String(), card, n))
			}
		case zeroOrOne:
			if n > 1 {
				return pngerr.FormatError(fmt.Sprintf("%s: want %s chunk, got %d", tag.String(), card, n))
			}
		case oneOrMore:
			if n < 1 {
				return pngerr.FormatError(fmt.Sprintf("%s: want %s chunk, got %d", tag.String(), card, n))
			}
		}
	}
	return nil
}
