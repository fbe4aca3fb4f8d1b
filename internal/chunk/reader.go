package chunk

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/snksoft/crc"

	"pngdec.adpollak.net/internal/pngerr"
)

// Read reads a single chunk of PNG data and validates its CRC.
//
// Below is visually what a chunk in the PNG datastream looks like.
//
//	+------------+ +------------+ +------------+ +-------+
//	|   LENGTH   | | CHUNK TYPE | | CHUNK DATA | |  CRC  |
//	+------------+ +------------+ +------------+ +-------+
func Read(r io.Reader) (*Chunk, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("short chunk header: %v", err))
	}
	if length > 0x7fffffff {
		return nil, pngerr.FormatError(fmt.Sprintf("bad chunk length: %d", length))
	}

	readType := make([]byte, 4)
	if _, err := io.ReadFull(r, readType); err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("short chunk type: %v", err))
	}

	chunkData := make([]byte, length)
	if _, err := io.ReadFull(r, chunkData); err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("short chunk data: %v", err))
	}

	var storedCRC uint32
	if err := binary.Read(r, binary.BigEndian, &storedCRC); err != nil {
		return nil, pngerr.FormatError(fmt.Sprintf("short chunk crc: %v", err))
	}

	// The four-byte CRC is calculated on the preceding bytes in the chunk:
	// chunk type + chunk data.
	h := crc.NewHash(crc.CRC32)
	h.Update(readType)
	h.Update(chunkData)
	if computed := uint32(h.CRC()); computed != storedCRC {
		return nil, pngerr.FormatError(fmt.Sprintf("crc mismatch for %q: stored %08x, calculated %08x",
			string(readType), storedCRC, computed))
	}

	return &Chunk{
		Length: length,
		Type:   Tag(binary.BigEndian.Uint32(readType)),
		Data:   chunkData,
		Crc:    storedCRC,
	}, nil
}
