// Package demux detects container formats and turns an in-memory container
// into a stream of packets in container order.
package demux

import (
	"bytes"

	"github.com/zsiec/playcore/internal/demux/mkv"
	"github.com/zsiec/playcore/internal/errors"
)

// MinHeaderSize is the shortest input that format detection accepts.
const MinHeaderSize = 12

// ContainerFormat is the detected container family.
type ContainerFormat uint8

const (
	FormatUnknown ContainerFormat = iota
	FormatMP4
	FormatMKV
	FormatWebM
)

// String returns the container name reported to hosts.
func (f ContainerFormat) String() string {
	switch f {
	case FormatMP4:
		return "Mp4"
	case FormatMKV:
		return "Mkv"
	case FormatWebM:
		return "WebM"
	default:
		return "Unknown"
	}
}

// MarshalText renders the format by name.
func (f ContainerFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

var (
	ftypTag   = []byte("ftyp")
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
)

// DetectFormat identifies the container from its magic bytes: "ftyp" at
// offset 4 is MP4, the EBML magic at offset 0 is Matroska (WebM when the EBML
// header declares that doc type). Anything else is FormatUnknown, which is not
// an error. Input shorter than MinHeaderSize is.
func DetectFormat(data []byte) (ContainerFormat, error) {
	if len(data) < MinHeaderSize {
		return FormatUnknown, errors.NewInvalidFormatError("data too short to detect format: %d bytes, need %d",
			len(data), MinHeaderSize)
	}

	switch {
	case bytes.Equal(data[4:8], ftypTag):
		return FormatMP4, nil
	case bytes.Equal(data[0:4], ebmlMagic):
		// A header that cannot be read still identifies the family.
		if docType, err := mkv.DocType(data); err == nil && docType == mkv.DocTypeWebM {
			return FormatWebM, nil
		}
		return FormatMKV, nil
	default:
		return FormatUnknown, nil
	}
}
