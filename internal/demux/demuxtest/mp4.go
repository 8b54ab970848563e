// Package demuxtest builds small but well-formed MP4 and Matroska files for
// tests.
package demuxtest

import (
	"encoding/binary"
)

// MP4Sample is one access unit in a generated MP4 track.
type MP4Sample struct {
	Data       []byte
	Duration   uint32 // in track timescale units
	Keyframe   bool
	CompOffset int32
}

// MP4Track describes a generated track.
type MP4Track struct {
	Handler    string // "vide", "soun" or "text"
	Entry      string // sample entry type, e.g. "avc1", "raw ", "sowt"
	Timescale  uint32
	Width      int
	Height     int
	Channels   int
	SampleRate int
	Samples    []MP4Sample
}

// Box encodes a plain box.
func Box(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	out := make([]byte, 8, size)
	binary.BigEndian.PutUint32(out, uint32(size))
	copy(out[4:], typ)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// FullBox encodes a box with a version/flags word.
func FullBox(typ string, version uint8, flags uint32, payload ...[]byte) []byte {
	vf := u32(uint32(version)<<24 | flags&0xFFFFFF)
	return Box(typ, append([][]byte{vf}, payload...)...)
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// Ftyp returns an isom ftyp box.
func Ftyp() []byte {
	return Box("ftyp", []byte("isom"), u32(0x200), []byte("isomiso2mp41"))
}

// BuildMP4 lays out ftyp, mdat and moov. Samples are interleaved round-robin
// across tracks, one sample per chunk.
func BuildMP4(tracks ...MP4Track) []byte {
	ftyp := Ftyp()

	offsets := make([][]uint32, len(tracks))
	var mdat []byte
	base := uint32(len(ftyp) + 8)
	for i := 0; ; i++ {
		placed := false
		for t, tr := range tracks {
			if i >= len(tr.Samples) {
				continue
			}
			placed = true
			offsets[t] = append(offsets[t], base+uint32(len(mdat)))
			mdat = append(mdat, tr.Samples[i].Data...)
		}
		if !placed {
			break
		}
	}

	var movieDuration uint32
	traks := make([][]byte, 0, len(tracks))
	for t, tr := range tracks {
		var total uint32
		for _, s := range tr.Samples {
			total += s.Duration
		}
		if tr.Timescale > 0 {
			if ms := uint32(uint64(total) * 1000 / uint64(tr.Timescale)); ms > movieDuration {
				movieDuration = ms
			}
		}
		traks = append(traks, buildTrak(tr, offsets[t], total))
	}

	mvhd := FullBox("mvhd", 0, 0, u32(0), u32(0), u32(1000), u32(movieDuration), make([]byte, 80))
	moov := Box("moov", append([][]byte{mvhd}, traks...)...)

	out := append([]byte{}, ftyp...)
	out = append(out, Box("mdat", mdat)...)
	return append(out, moov...)
}

func buildTrak(tr MP4Track, offsets []uint32, duration uint32) []byte {
	mdhd := FullBox("mdhd", 0, 0, u32(0), u32(0), u32(tr.Timescale), u32(duration), u16(0x55C4), u16(0))
	hdlr := FullBox("hdlr", 0, 0, u32(0), []byte(tr.Handler), make([]byte, 12), []byte{0})

	stbl := Box("stbl",
		FullBox("stsd", 0, 0, u32(1), sampleEntry(tr)),
		stts(tr.Samples),
		ctts(tr.Samples),
		stss(tr.Samples),
		stsz(tr.Samples),
		FullBox("stsc", 0, 0, u32(1), u32(1), u32(1), u32(1)),
		stco(offsets),
	)
	minf := Box("minf", stbl)
	mdia := Box("mdia", mdhd, hdlr, minf)
	tkhd := FullBox("tkhd", 0, 3, make([]byte, 80))
	return Box("trak", tkhd, mdia)
}

func sampleEntry(tr MP4Track) []byte {
	switch tr.Handler {
	case "vide":
		p := make([]byte, 78)
		binary.BigEndian.PutUint16(p[6:], 1)
		binary.BigEndian.PutUint16(p[24:], uint16(tr.Width))
		binary.BigEndian.PutUint16(p[26:], uint16(tr.Height))
		return Box(tr.Entry, p)
	case "soun":
		p := make([]byte, 28)
		binary.BigEndian.PutUint16(p[6:], 1)
		binary.BigEndian.PutUint16(p[16:], uint16(tr.Channels))
		binary.BigEndian.PutUint16(p[18:], 16)
		binary.BigEndian.PutUint32(p[24:], uint32(tr.SampleRate)<<16)
		return Box(tr.Entry, p)
	default:
		p := make([]byte, 8)
		binary.BigEndian.PutUint16(p[6:], 1)
		return Box(tr.Entry, p)
	}
}

func stts(samples []MP4Sample) []byte {
	body := [][]byte{u32(uint32(len(samples)))}
	for _, s := range samples {
		body = append(body, u32(1), u32(s.Duration))
	}
	return FullBox("stts", 0, 0, body...)
}

func ctts(samples []MP4Sample) []byte {
	reordered := false
	for _, s := range samples {
		if s.CompOffset != 0 {
			reordered = true
		}
	}
	if !reordered {
		return nil
	}
	body := [][]byte{u32(uint32(len(samples)))}
	for _, s := range samples {
		body = append(body, u32(1), u32(uint32(s.CompOffset)))
	}
	return FullBox("ctts", 1, 0, body...)
}

func stss(samples []MP4Sample) []byte {
	var keys []uint32
	for i, s := range samples {
		if s.Keyframe {
			keys = append(keys, uint32(i+1))
		}
	}
	if len(keys) == len(samples) {
		return nil
	}
	body := [][]byte{u32(uint32(len(keys)))}
	for _, k := range keys {
		body = append(body, u32(k))
	}
	return FullBox("stss", 0, 0, body...)
}

func stsz(samples []MP4Sample) []byte {
	body := [][]byte{u32(0), u32(uint32(len(samples)))}
	for _, s := range samples {
		body = append(body, u32(uint32(len(s.Data))))
	}
	return FullBox("stsz", 0, 0, body...)
}

func stco(offsets []uint32) []byte {
	body := [][]byte{u32(uint32(len(offsets)))}
	for _, o := range offsets {
		body = append(body, u32(o))
	}
	return FullBox("stco", 0, 0, body...)
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// SingleChunkMP4 returns a one-track video file whose only sample of the
// given size sits at a 64-bit (co64) chunk offset, wherever that points.
func SingleChunkMP4(offset uint64, size uint32) []byte {
	stbl := Box("stbl",
		FullBox("stsd", 0, 0, u32(0)),
		FullBox("stts", 0, 0, u32(1), u32(1), u32(10)),
		FullBox("stsz", 0, 0, u32(0), u32(1), u32(size)),
		FullBox("stsc", 0, 0, u32(1), u32(1), u32(1), u32(1)),
		FullBox("co64", 0, 0, u32(1), u64(offset)),
	)
	mdia := Box("mdia",
		FullBox("mdhd", 0, 0, u32(0), u32(0), u32(1000), u32(10), u16(0x55C4), u16(0)),
		FullBox("hdlr", 0, 0, u32(0), []byte("vide"), make([]byte, 12), []byte{0}),
		Box("minf", stbl),
	)
	return append(Ftyp(), Box("moov", Box("trak", mdia))...)
}
