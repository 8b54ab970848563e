// Package mkv indexes Matroska and WebM files on top of
// github.com/at-wat/ebml-go, which decodes the EBML tree and unlaces block
// frames.
package mkv

import (
	"bytes"

	"github.com/at-wat/ebml-go"

	"github.com/zsiec/playcore/internal/demux/container"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// Doc types accepted in the EBML header.
const (
	DocTypeMatroska = "matroska"
	DocTypeWebM     = "webm"
)

const defaultTimecodeScale = 1_000_000 // ns per tick

// Matroska TrackType values.
const (
	trackTypeVideo    = 1
	trackTypeAudio    = 2
	trackTypeSubtitle = 0x11
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

type document struct {
	Header  []header  `ebml:"EBML"`
	Segment []segment `ebml:"Segment"`
}

type header struct {
	DocType string `ebml:"DocType"`
}

type segment struct {
	Info    []info    `ebml:"Info"`
	Tracks  []tracks  `ebml:"Tracks"`
	Cluster []cluster `ebml:"Cluster"`
}

type info struct {
	TimecodeScale uint64  `ebml:"TimecodeScale"`
	Duration      float64 `ebml:"Duration"`
}

type tracks struct {
	TrackEntry []trackEntry `ebml:"TrackEntry"`
}

type trackEntry struct {
	TrackNumber     uint64      `ebml:"TrackNumber"`
	TrackType       uint64      `ebml:"TrackType"`
	CodecID         string      `ebml:"CodecID"`
	CodecPrivate    []byte      `ebml:"CodecPrivate"`
	DefaultDuration uint64      `ebml:"DefaultDuration"`
	Video           []videoInfo `ebml:"Video"`
	Audio           []audioInfo `ebml:"Audio"`
}

type videoInfo struct {
	PixelWidth  uint64 `ebml:"PixelWidth"`
	PixelHeight uint64 `ebml:"PixelHeight"`
}

type audioInfo struct {
	SamplingFrequency float64 `ebml:"SamplingFrequency"`
	Channels          uint64  `ebml:"Channels"`
}

type cluster struct {
	Timecode    uint64       `ebml:"Timecode"`
	SimpleBlock []ebml.Block `ebml:"SimpleBlock"`
	BlockGroup  []blockGroup `ebml:"BlockGroup"`
}

type blockGroup struct {
	Block          []ebml.Block `ebml:"Block"`
	ReferenceBlock []int64      `ebml:"ReferenceBlock"`
}

// decode runs the EBML decoder over data. Malformed lacing can make the
// decoder panic on a bad slice length, so that surfaces as a demux error.
func decode(data []byte) (doc *document, err error) {
	if !bytes.HasPrefix(data, ebmlMagic) {
		return nil, errors.NewInvalidFormatError("missing EBML header")
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, errors.NewDemuxError("malformed EBML structure: %v", r)
		}
	}()
	doc = &document{}
	if err := ebml.Unmarshal(bytes.NewReader(data), doc); err != nil {
		return doc, errors.Wrap(err, errors.ErrorTypeDemux, "mkv: decoding EBML", errors.StatusFor(errors.ErrorTypeDemux))
	}
	return doc, nil
}

// DocType reads the EBML header at the start of data and returns its
// DocType, defaulting to "matroska" when the element is absent. A body that
// fails to decode after a complete header still reports the header's type.
func DocType(data []byte) (string, error) {
	doc, err := decode(data)
	if doc == nil || len(doc.Header) == 0 {
		if err == nil {
			err = errors.NewInvalidFormatError("missing EBML header")
		}
		return "", err
	}
	return docTypeOf(doc.Header[0]), nil
}

func docTypeOf(h header) string {
	if h.DocType == "" {
		return DocTypeMatroska
	}
	return h.DocType
}

// Parser indexes Matroska and WebM files.
type Parser struct{}

// NewParser returns a Matroska parser.
func NewParser() *Parser { return &Parser{} }

type track struct {
	index        int
	defaultDurNS uint64
}

// Parse decodes the first Segment and collects every block frame.
func (p *Parser) Parse(data []byte) (*container.Layout, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	if len(doc.Header) == 0 {
		return nil, errors.NewInvalidFormatError("missing EBML header")
	}
	if dt := docTypeOf(doc.Header[0]); dt != DocTypeMatroska && dt != DocTypeWebM {
		return nil, errors.NewInvalidFormatError("unsupported EBML doc type %q", dt)
	}

	layout := &container.Layout{}
	if len(doc.Segment) == 0 {
		return layout, nil
	}
	seg := doc.Segment[0]

	scale := uint64(defaultTimecodeScale)
	var duration float64
	if len(seg.Info) > 0 {
		if seg.Info[0].TimecodeScale > 0 {
			scale = seg.Info[0].TimecodeScale
		}
		duration = seg.Info[0].Duration
	}

	if len(seg.Tracks) == 0 {
		if len(seg.Cluster) > 0 {
			return nil, errors.NewDemuxError("segment has clusters but no Tracks element")
		}
		return layout, nil
	}
	byNumber, err := indexTracks(seg.Tracks[0].TrackEntry, layout)
	if err != nil {
		return nil, err
	}

	for _, cl := range seg.Cluster {
		for _, b := range clusterBlocks(cl) {
			tr, ok := byNumber[b.block.TrackNumber]
			if !ok {
				continue
			}
			appendFrames(layout, tr, b, int64(cl.Timecode), scale)
		}
	}

	if duration > 0 {
		d := int64(duration * float64(scale) / 1e6)
		for i := range layout.Streams {
			layout.Streams[i].DurationMS = &d
		}
	}

	if err := layout.Validate(len(data)); err != nil {
		return nil, err
	}
	return layout, nil
}

func indexTracks(entries []trackEntry, layout *container.Layout) (map[uint64]*track, error) {
	byNumber := make(map[uint64]*track, len(entries))
	for _, e := range entries {
		info := media.StreamInfo{CodecID: e.CodecID, Channels: 1, SampleRate: 8000}
		if len(e.CodecPrivate) > 0 {
			info.ExtraData = append([]byte(nil), e.CodecPrivate...)
		}
		if len(e.Video) > 0 {
			info.Width = int(e.Video[0].PixelWidth)
			info.Height = int(e.Video[0].PixelHeight)
		}
		if len(e.Audio) > 0 {
			if f := e.Audio[0].SamplingFrequency; f > 0 {
				info.SampleRate = int(f)
			}
			if c := e.Audio[0].Channels; c > 0 {
				info.Channels = int(c)
			}
		}

		switch e.TrackType {
		case trackTypeVideo:
			info.Type = media.StreamVideo
			info.SampleRate, info.Channels = 0, 0
		case trackTypeAudio:
			info.Type = media.StreamAudio
		case trackTypeSubtitle:
			info.Type = media.StreamSubtitle
			info.SampleRate, info.Channels = 0, 0
		default:
			continue
		}
		if e.TrackNumber == 0 {
			return nil, errors.NewDemuxError("track entry without a track number")
		}
		if _, dup := byNumber[e.TrackNumber]; dup {
			return nil, errors.NewDemuxError("duplicate track number %d", e.TrackNumber)
		}

		info.Index = len(layout.Streams)
		info.Codec = media.ParseCodec(info.CodecID)
		layout.Streams = append(layout.Streams, info)
		byNumber[e.TrackNumber] = &track{index: info.Index, defaultDurNS: e.DefaultDuration}
	}
	return byNumber, nil
}

type clusterBlock struct {
	block ebml.Block
	key   bool
}

// clusterBlocks lists a cluster's blocks, keeping SimpleBlocks in stored
// order. The decoder groups SimpleBlocks and BlockGroups separately, so each
// group block is placed before the first block that starts after it.
func clusterBlocks(cl cluster) []clusterBlock {
	out := make([]clusterBlock, 0, len(cl.SimpleBlock)+len(cl.BlockGroup))
	for _, b := range cl.SimpleBlock {
		out = append(out, clusterBlock{block: b, key: b.Keyframe})
	}
	for _, g := range cl.BlockGroup {
		if len(g.Block) == 0 {
			continue
		}
		gb := clusterBlock{block: g.Block[0], key: len(g.ReferenceBlock) == 0}
		at := len(out)
		for i, b := range out {
			if b.block.Timecode > gb.block.Timecode {
				at = i
				break
			}
		}
		out = append(out, clusterBlock{})
		copy(out[at+1:], out[at:])
		out[at] = gb
	}
	return out
}

// appendFrames adds one sample per laced frame. Frames after the first are
// spaced by the track's default duration.
func appendFrames(layout *container.Layout, tr *track, b clusterBlock, clusterTC int64, scale uint64) {
	ptsNS := (clusterTC + int64(b.block.Timecode)) * int64(scale)
	for i, frame := range b.block.Data {
		if frame == nil {
			frame = []byte{}
		}
		pts := (ptsNS + int64(i)*int64(tr.defaultDurNS)) / 1e6
		layout.Samples = append(layout.Samples, container.Sample{
			Stream:   tr.index,
			Offset:   int64(len(layout.Samples)),
			Size:     len(frame),
			PTS:      pts,
			DTS:      pts,
			Keyframe: b.key,
			Data:     frame,
		})
	}
}
