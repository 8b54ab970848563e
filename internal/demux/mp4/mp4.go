// Package mp4 indexes progressive ISO BMFF files (a single moov with sample
// tables) on top of github.com/abema/go-mp4. Fragmented files are rejected.
package mp4

import (
	"bytes"
	"io"

	gomp4 "github.com/abema/go-mp4"

	"github.com/zsiec/playcore/internal/demux/container"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// Handler types from hdlr.
const (
	handlerVideo = "vide"
	handlerAudio = "soun"
	handlerText  = "text"
	handlerSubt  = "subt"
	handlerSbtl  = "sbtl"
)

// maxSamples bounds the sample table so a hostile stsz cannot force a huge
// allocation.
const maxSamples = 1 << 24

// Sample entry types the library does not know out of the box.
var (
	extraVisualEntries = []string{"raw ", "avc3", "av01"}
	extraAudioEntries  = []string{"sowt", "twos", "fl32", "lpcm", "fLaC", ".mp3"}
)

func init() {
	for _, t := range extraVisualEntries {
		bt := gomp4.StrToBoxType(t)
		if !bt.IsSupported(gomp4.Context{}) {
			gomp4.AddAnyTypeBoxDef(&gomp4.VisualSampleEntry{}, bt)
		}
	}
	for _, t := range extraAudioEntries {
		bt := gomp4.StrToBoxType(t)
		if !bt.IsSupported(gomp4.Context{}) {
			gomp4.AddAnyTypeBoxDef(&gomp4.AudioSampleEntry{}, bt)
		}
	}
}

var configBoxes = map[string]bool{
	"avcC": true, "hvcC": true, "vpcC": true, "av1C": true,
	"esds": true, "dOps": true, "dfLa": true,
}

// Parser indexes progressive MP4 files.
type Parser struct{}

// NewParser returns an MP4 parser.
func NewParser() *Parser { return &Parser{} }

// Parse reads the moov box and builds the sample index. A file with no moov
// and no movie fragments (for example a bare ftyp) yields an empty layout.
func (p *Parser) Parse(data []byte) (*container.Layout, error) {
	r := bytes.NewReader(data)

	moovs, err := gomp4.ExtractBox(r, nil, gomp4.BoxPath{gomp4.BoxTypeMoov()})
	if err != nil {
		return nil, boxError(err, "reading top-level boxes")
	}
	if len(moovs) == 0 {
		moofs, err := gomp4.ExtractBox(r, nil, gomp4.BoxPath{gomp4.BoxTypeMoof()})
		if err != nil {
			return nil, boxError(err, "reading top-level boxes")
		}
		if len(moofs) > 0 {
			return nil, errors.NewDemuxError("fragmented MP4 is not supported")
		}
		return &container.Layout{}, nil
	}
	moov := moovs[0]
	if moov.Offset+moov.Size > uint64(len(data)) {
		return nil, errors.NewDemuxError("moov at offset %d overruns the file (%d > %d bytes)",
			moov.Offset, moov.Offset+moov.Size, len(data))
	}

	var movieTimescale uint32
	var movieDuration uint64
	mvhds, err := gomp4.ExtractBoxWithPayload(r, moov, gomp4.BoxPath{gomp4.BoxTypeMvhd()})
	if err != nil {
		return nil, boxError(err, "reading mvhd")
	}
	if len(mvhds) > 0 {
		mvhd := mvhds[0].Payload.(*gomp4.Mvhd)
		movieTimescale, movieDuration = mvhd.Timescale, mvhd.GetDuration()
	}

	traks, err := gomp4.ExtractBox(r, moov, gomp4.BoxPath{gomp4.BoxTypeTrak()})
	if err != nil {
		return nil, boxError(err, "reading tracks")
	}

	layout := &container.Layout{}
	for _, trak := range traks {
		info, samples, err := parseTrack(r, data, trak, len(layout.Streams))
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		if info.DurationMS == nil && movieTimescale > 0 && movieDuration > 0 {
			d := container.ScaleToMS(clampInt64(movieDuration), movieTimescale)
			info.DurationMS = &d
		}
		layout.Streams = append(layout.Streams, *info)
		layout.Samples = append(layout.Samples, samples...)
	}

	layout.SortByOffset()
	if err := layout.Validate(len(data)); err != nil {
		return nil, err
	}
	return layout, nil
}

// trackBoxes holds the decoded boxes of one trak that indexing needs.
type trackBoxes struct {
	hdlr *gomp4.Hdlr
	mdhd *gomp4.Mdhd
	stbl *gomp4.BoxInfo
	stts *gomp4.Stts
	ctts *gomp4.Ctts
	stss *gomp4.Stss
	stsz *gomp4.Stsz
	stsc *gomp4.Stsc
	stco *gomp4.Stco
	co64 *gomp4.Co64
	stz2 bool
}

var (
	pathHdlr = gomp4.BoxPath{gomp4.BoxTypeMdia(), gomp4.BoxTypeHdlr()}
	pathMdhd = gomp4.BoxPath{gomp4.BoxTypeMdia(), gomp4.BoxTypeMdhd()}
	pathStbl = gomp4.BoxPath{gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl()}
)

func stblPath(t gomp4.BoxType) gomp4.BoxPath {
	return append(append(gomp4.BoxPath{}, pathStbl...), t)
}

func readTrackBoxes(r io.ReadSeeker, trak *gomp4.BoxInfo) (*trackBoxes, error) {
	head, err := gomp4.ExtractBoxesWithPayload(r, trak, []gomp4.BoxPath{pathHdlr, pathMdhd})
	if err != nil {
		return nil, boxError(err, "reading track header")
	}
	tb := &trackBoxes{}
	for _, b := range head {
		switch box := b.Payload.(type) {
		case *gomp4.Hdlr:
			tb.hdlr = box
		case *gomp4.Mdhd:
			tb.mdhd = box
		}
	}

	stbls, err := gomp4.ExtractBox(r, trak, pathStbl)
	if err != nil {
		return nil, boxError(err, "reading sample table")
	}
	if len(stbls) > 0 {
		tb.stbl = stbls[0]
	}
	return tb, nil
}

func readSampleTables(r io.ReadSeeker, tb *trackBoxes) error {
	stz2, err := gomp4.ExtractBox(r, tb.stbl, gomp4.BoxPath{gomp4.StrToBoxType("stz2")})
	if err != nil {
		return boxError(err, "reading sample table")
	}
	tb.stz2 = len(stz2) > 0

	tables, err := gomp4.ExtractBoxesWithPayload(r, tb.stbl, []gomp4.BoxPath{
		{gomp4.BoxTypeStts()},
		{gomp4.BoxTypeCtts()},
		{gomp4.BoxTypeStss()},
		{gomp4.BoxTypeStsz()},
		{gomp4.BoxTypeStsc()},
		{gomp4.BoxTypeStco()},
		{gomp4.BoxTypeCo64()},
	})
	if err != nil {
		return boxError(err, "reading sample table")
	}
	for _, b := range tables {
		switch box := b.Payload.(type) {
		case *gomp4.Stts:
			tb.stts = box
		case *gomp4.Ctts:
			tb.ctts = box
		case *gomp4.Stss:
			tb.stss = box
		case *gomp4.Stsz:
			tb.stsz = box
		case *gomp4.Stsc:
			tb.stsc = box
		case *gomp4.Stco:
			tb.stco = box
		case *gomp4.Co64:
			tb.co64 = box
		}
	}
	return nil
}

// parseTrack returns nil info for tracks of a kind the player does not use.
func parseTrack(r io.ReadSeeker, data []byte, trak *gomp4.BoxInfo, index int) (*media.StreamInfo, []container.Sample, error) {
	tb, err := readTrackBoxes(r, trak)
	if err != nil {
		return nil, nil, err
	}
	if tb.hdlr == nil {
		if tb.mdhd == nil && tb.stbl == nil {
			return nil, nil, nil
		}
		return nil, nil, errors.NewDemuxError("track without hdlr")
	}

	info := &media.StreamInfo{Index: index}
	switch string(tb.hdlr.HandlerType[:]) {
	case handlerVideo:
		info.Type = media.StreamVideo
	case handlerAudio:
		info.Type = media.StreamAudio
	case handlerText, handlerSubt, handlerSbtl:
		info.Type = media.StreamSubtitle
	default:
		return nil, nil, nil
	}

	if tb.mdhd == nil {
		return nil, nil, errors.NewDemuxError("track without mdhd")
	}
	timescale := tb.mdhd.Timescale
	if timescale == 0 {
		return nil, nil, errors.NewDemuxError("track %d has zero timescale", index)
	}
	if duration := tb.mdhd.GetDuration(); duration > 0 {
		d := container.ScaleToMS(clampInt64(duration), timescale)
		info.DurationMS = &d
	}

	if tb.stbl == nil {
		return nil, nil, errors.NewDemuxError("track %d has no sample table", index)
	}
	if err := parseSampleDescription(r, data, tb.stbl, info); err != nil {
		return nil, nil, err
	}
	if err := readSampleTables(r, tb); err != nil {
		return nil, nil, err
	}

	samples, err := buildSamples(tb, index, timescale)
	if err != nil {
		return nil, nil, err
	}
	return info, samples, nil
}

func parseSampleDescription(r io.ReadSeeker, data []byte, stbl *gomp4.BoxInfo, info *media.StreamInfo) error {
	entries, err := gomp4.ExtractBox(r, stbl, gomp4.BoxPath{gomp4.BoxTypeStsd(), gomp4.BoxTypeAny()})
	if err != nil {
		return boxError(err, "reading stsd")
	}
	if len(entries) == 0 {
		return nil
	}
	entry := entries[0]
	info.CodecID = entry.Type.String()
	info.Codec = media.ParseCodec(info.CodecID)

	if info.Type == media.StreamSubtitle || !entry.Type.IsSupported(entry.Context) {
		return nil
	}
	if _, err := entry.SeekToPayload(r); err != nil {
		return boxError(err, "reading sample entry")
	}
	payload, _, err := gomp4.UnmarshalAny(r, entry.Type, entry.Size-entry.HeaderSize, entry.Context)
	if err != nil {
		return boxError(err, "reading sample entry "+info.CodecID)
	}
	switch se := payload.(type) {
	case *gomp4.VisualSampleEntry:
		info.Width = int(se.Width)
		info.Height = int(se.Height)
	case *gomp4.AudioSampleEntry:
		info.Channels = int(se.ChannelCount)
		info.SampleRate = int(se.SampleRate >> 16)
	}

	kids, err := gomp4.ExtractBox(r, entry, gomp4.BoxPath{gomp4.BoxTypeAny()})
	if err != nil {
		// Sample entries with codec boxes the library cannot walk still
		// describe a usable stream.
		return nil
	}
	for _, k := range kids {
		if !configBoxes[k.Type.String()] {
			continue
		}
		start, end := k.Offset+k.HeaderSize, k.Offset+k.Size
		if end <= uint64(len(data)) && start <= end {
			info.ExtraData = append([]byte(nil), data[start:end]...)
		}
		break
	}
	return nil
}

func buildSamples(tb *trackBoxes, stream int, timescale uint32) ([]container.Sample, error) {
	sizes, err := readSizes(tb)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, nil
	}

	chunks, err := readChunkOffsets(tb)
	if err != nil {
		return nil, err
	}

	if tb.stsc == nil {
		return nil, errors.NewDemuxError("sample table missing stsc")
	}
	runs := tb.stsc.Entries
	if len(runs) == 0 {
		return nil, errors.NewDemuxError("empty stsc")
	}
	samples := make([]container.Sample, 0, len(sizes))

	// Offsets: walk chunks, taking samples-per-chunk from the stsc run that
	// covers each chunk.
	run := 0
	for c := 0; c < len(chunks) && len(samples) < len(sizes); c++ {
		chunkNo := uint32(c + 1)
		for run+1 < len(runs) && runs[run+1].FirstChunk <= chunkNo {
			run++
		}
		off := chunks[c]
		for k := uint32(0); k < runs[run].SamplesPerChunk && len(samples) < len(sizes); k++ {
			size := sizes[len(samples)]
			samples = append(samples, container.Sample{
				Stream: stream,
				Offset: off,
				Size:   int(size),
			})
			if off > container.MaxOffset-int64(size) {
				return nil, errors.NewDemuxError("chunk %d runs past the addressable range", chunkNo)
			}
			off += int64(size)
		}
	}
	if len(samples) != len(sizes) {
		return nil, errors.NewDemuxError("chunk table covers %d of %d samples", len(samples), len(sizes))
	}

	var sync map[uint32]bool
	if tb.stss != nil {
		sync = make(map[uint32]bool, len(tb.stss.SampleNumber))
		for _, n := range tb.stss.SampleNumber {
			sync[n] = true
		}
	}

	// Timestamps: DTS from stts deltas, PTS adds the ctts composition offset.
	var stts []gomp4.SttsEntry
	if tb.stts != nil {
		stts = tb.stts.Entries
	}
	var ctts []gomp4.CttsEntry
	if tb.ctts != nil {
		ctts = tb.ctts.Entries
	}

	var dts int64
	si, sLeft := 0, uint32(0)
	if len(stts) > 0 {
		sLeft = stts[0].SampleCount
	}
	ci, cLeft := 0, uint32(0)
	if len(ctts) > 0 {
		cLeft = ctts[0].SampleCount
	}
	for i := range samples {
		var comp int64
		for ci < len(ctts) && cLeft == 0 {
			ci++
			if ci < len(ctts) {
				cLeft = ctts[ci].SampleCount
			}
		}
		if ci < len(ctts) {
			comp = tb.ctts.GetSampleOffset(ci)
			cLeft--
		}

		samples[i].DTS = container.ScaleToMS(dts, timescale)
		samples[i].PTS = container.ScaleToMS(dts+comp, timescale)
		samples[i].Keyframe = sync == nil || sync[uint32(i+1)]

		for si < len(stts) && sLeft == 0 {
			si++
			if si < len(stts) {
				sLeft = stts[si].SampleCount
			}
		}
		if si < len(stts) {
			dts += int64(stts[si].SampleDelta)
			sLeft--
		}
	}

	return samples, nil
}

func readSizes(tb *trackBoxes) ([]uint32, error) {
	if tb.stsz != nil {
		if fixed := tb.stsz.SampleSize; fixed != 0 {
			n := tb.stsz.SampleCount
			if n > maxSamples {
				return nil, errors.NewDemuxError("stsz declares %d samples", n)
			}
			sizes := make([]uint32, n)
			for i := range sizes {
				sizes[i] = fixed
			}
			return sizes, nil
		}
		if len(tb.stsz.EntrySize) > maxSamples {
			return nil, errors.NewDemuxError("stsz declares %d samples", len(tb.stsz.EntrySize))
		}
		return tb.stsz.EntrySize, nil
	}
	if tb.stz2 {
		return nil, errors.NewDemuxError("compact sample sizes (stz2) are not supported")
	}
	return nil, nil
}

func readChunkOffsets(tb *trackBoxes) ([]int64, error) {
	switch {
	case tb.stco != nil:
		out := make([]int64, len(tb.stco.ChunkOffset))
		for i, o := range tb.stco.ChunkOffset {
			out[i] = int64(o)
		}
		return out, nil
	case tb.co64 != nil:
		out := make([]int64, len(tb.co64.ChunkOffset))
		for i, o := range tb.co64.ChunkOffset {
			if o > uint64(container.MaxOffset) {
				return nil, errors.NewDemuxError("co64 chunk %d offset %d is out of range", i+1, o)
			}
			out[i] = int64(o)
		}
		return out, nil
	}
	return nil, errors.NewDemuxError("sample table missing stco/co64")
}

func clampInt64(v uint64) int64 {
	if v > uint64(container.MaxOffset) {
		return container.MaxOffset
	}
	return int64(v)
}

func boxError(err error, op string) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeDemux, "mp4: "+op, errors.StatusFor(errors.ErrorTypeDemux))
}
