package demuxtest

import (
	"encoding/binary"
	"math"
)

// MKVTrack describes a generated Matroska track entry.
type MKVTrack struct {
	Number     uint64
	Type       uint64 // 1 video, 2 audio, 0x11 subtitle
	CodecID    string
	Width      int
	Height     int
	Channels   int
	SampleRate float64
}

// MKVBlock is one SimpleBlock in the single generated cluster.
type MKVBlock struct {
	Track    uint64
	TimeMS   int16
	Keyframe bool
	Data     []byte
}

// Element encodes an EBML element with an 8-byte size field.
func Element(id uint32, payload ...[]byte) []byte {
	var idBytes []byte
	for shift := 24; shift >= 0; shift -= 8 {
		b := byte(id >> shift)
		if b == 0 && len(idBytes) == 0 {
			continue
		}
		idBytes = append(idBytes, b)
	}

	size := 0
	for _, p := range payload {
		size += len(p)
	}
	sz := make([]byte, 8)
	binary.BigEndian.PutUint64(sz, uint64(size))
	sz[0] = 0x01

	out := append(idBytes, sz...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// UnknownSize encodes an element whose size field is the reserved unknown
// value.
func UnknownSize(id uint32, payload ...[]byte) []byte {
	out := Element(id)
	out = out[:len(out)-8]
	out = append(out, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

func uintEl(id uint32, v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return Element(id, b)
}

func floatEl(id uint32, v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return Element(id, b)
}

// EBMLHeader returns an EBML header declaring docType.
func EBMLHeader(docType string) []byte {
	return Element(0x1A45DFA3,
		uintEl(0x4286, 1),
		uintEl(0x42F7, 1),
		Element(0x4282, []byte(docType)),
	)
}

// BuildMKV encodes a header, one Segment with Info, Tracks and a single
// cluster holding every block. durationMS of zero omits Duration.
func BuildMKV(docType string, durationMS float64, tracks []MKVTrack, blocks []MKVBlock) []byte {
	info := [][]byte{uintEl(0x2AD7B1, 1_000_000)}
	if durationMS > 0 {
		info = append(info, floatEl(0x4489, durationMS))
	}

	entries := make([][]byte, 0, len(tracks))
	for _, t := range tracks {
		fields := [][]byte{
			uintEl(0xD7, t.Number),
			uintEl(0x83, t.Type),
			Element(0x86, []byte(t.CodecID)),
		}
		switch t.Type {
		case 1:
			fields = append(fields, Element(0xE0,
				uintEl(0xB0, uint64(t.Width)),
				uintEl(0xBA, uint64(t.Height)),
			))
		case 2:
			fields = append(fields, Element(0xE1,
				floatEl(0xB5, t.SampleRate),
				uintEl(0x9F, uint64(t.Channels)),
			))
		}
		entries = append(entries, Element(0xAE, fields...))
	}

	cluster := [][]byte{uintEl(0xE7, 0)}
	for _, b := range blocks {
		cluster = append(cluster, Element(0xA3, SimpleBlock(b)))
	}

	segment := Element(0x18538067,
		Element(0x1549A966, info...),
		Element(0x1654AE6B, entries...),
		Element(0x1F43B675, cluster...),
	)
	return append(EBMLHeader(docType), segment...)
}

// SimpleBlock encodes a SimpleBlock payload without lacing. Track numbers
// must be below 127.
func SimpleBlock(b MKVBlock) []byte {
	out := []byte{0x80 | byte(b.Track)}
	out = binary.BigEndian.AppendUint16(out, uint16(b.TimeMS))
	var flags byte
	if b.Keyframe {
		flags |= 0x80
	}
	out = append(out, flags)
	return append(out, b.Data...)
}
