package mkv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/playcore/internal/demux/container"
	"github.com/zsiec/playcore/internal/demux/demuxtest"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

var testTracks = []demuxtest.MKVTrack{
	{Number: 1, Type: 1, CodecID: "V_UNCOMPRESSED", Width: 4, Height: 2},
	{Number: 2, Type: 2, CodecID: "A_PCM/INT/LIT", Channels: 2, SampleRate: 48000},
}

func TestDocType(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"webm", demuxtest.EBMLHeader("webm"), DocTypeWebM, false},
		{"matroska", demuxtest.EBMLHeader("matroska"), DocTypeMatroska, false},
		{"no doc type defaults to matroska", demuxtest.Element(0x1A45DFA3), DocTypeMatroska, false},
		{"magic with zero size byte", append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 20)...), "", true},
		{"not ebml", demuxtest.Element(0x18538067), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocType(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Tracks(t *testing.T) {
	data := demuxtest.BuildMKV("matroska", 2500, testTracks, nil)

	layout, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, layout.Streams, 2)

	v := layout.Streams[0]
	assert.Equal(t, media.StreamVideo, v.Type)
	assert.Equal(t, media.CodecRawVideo, v.Codec)
	assert.Equal(t, "V_UNCOMPRESSED", v.CodecID)
	assert.Equal(t, 4, v.Width)
	assert.Equal(t, 2, v.Height)
	assert.Zero(t, v.SampleRate)

	a := layout.Streams[1]
	assert.Equal(t, media.StreamAudio, a.Type)
	assert.Equal(t, media.CodecPCMS16LE, a.Codec)
	assert.Equal(t, 2, a.Channels)
	assert.Equal(t, 48000, a.SampleRate)

	for _, s := range layout.Streams {
		d, ok := s.Duration()
		require.True(t, ok)
		assert.Equal(t, int64(2500), d)
	}
	assert.Empty(t, layout.Samples)
}

func TestParse_Blocks(t *testing.T) {
	blocks := []demuxtest.MKVBlock{
		{Track: 1, TimeMS: 0, Keyframe: true, Data: bytes.Repeat([]byte{0xA1}, 12)},
		{Track: 2, TimeMS: 0, Keyframe: true, Data: []byte{1, 2, 3, 4}},
		{Track: 1, TimeMS: 40, Data: bytes.Repeat([]byte{0xA2}, 12)},
		{Track: 3, TimeMS: 40, Data: []byte{0xFF}},
		{Track: 2, TimeMS: 21, Keyframe: true, Data: []byte{5, 6, 7, 8}},
	}
	data := demuxtest.BuildMKV("matroska", 0, testTracks, blocks)

	layout, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, layout.Samples, 4, "blocks for unknown tracks are skipped")

	want := []struct {
		stream int
		pts    int64
		key    bool
		data   []byte
	}{
		{0, 0, true, bytes.Repeat([]byte{0xA1}, 12)},
		{1, 0, true, []byte{1, 2, 3, 4}},
		{0, 40, false, bytes.Repeat([]byte{0xA2}, 12)},
		{1, 21, true, []byte{5, 6, 7, 8}},
	}
	for i, w := range want {
		s := layout.Samples[i]
		assert.Equal(t, w.stream, s.Stream, "sample %d", i)
		assert.Equal(t, w.pts, s.PTS, "sample %d", i)
		assert.Equal(t, s.PTS, s.DTS)
		assert.Equal(t, w.key, s.Keyframe, "sample %d", i)
		assert.Equal(t, w.data, s.Data, "sample %d", i)
		assert.Equal(t, len(w.data), s.Size, "sample %d", i)
	}

	for _, s := range layout.Streams {
		_, ok := s.Duration()
		assert.False(t, ok)
	}
}

func TestParse_UnknownSizeClusters(t *testing.T) {
	block := func(tc int16, b byte) []byte {
		return demuxtest.Element(0xA3, demuxtest.SimpleBlock(demuxtest.MKVBlock{Track: 1, TimeMS: tc, Keyframe: true, Data: []byte{b}}))
	}
	track := demuxtest.Element(0x1654AE6B, demuxtest.Element(0xAE,
		demuxtest.Element(0xD7, []byte{1}),
		demuxtest.Element(0x83, []byte{1}),
		demuxtest.Element(0x86, []byte("V_VP8")),
	))
	segment := demuxtest.UnknownSize(0x18538067,
		track,
		demuxtest.UnknownSize(0x1F43B675, demuxtest.Element(0xE7, []byte{0}), block(0, 0x01)),
		demuxtest.UnknownSize(0x1F43B675, demuxtest.Element(0xE7, []byte{100}), block(5, 0x02)),
	)
	data := append(demuxtest.EBMLHeader("webm"), segment...)

	layout, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, layout.Samples, 2)
	assert.Equal(t, int64(0), layout.Samples[0].PTS)
	assert.Equal(t, int64(105), layout.Samples[1].PTS)
	assert.Equal(t, []byte{0x02}, layout.Samples[1].Data)
}

func TestParse_BlockGroup(t *testing.T) {
	sb := demuxtest.SimpleBlock(demuxtest.MKVBlock{Track: 1, TimeMS: 10, Data: []byte{7}})
	groups := []byte{}
	groups = append(groups, demuxtest.Element(0xA0, demuxtest.Element(0xA1, sb))...)
	groups = append(groups, demuxtest.Element(0xA0, demuxtest.Element(0xA1, sb), demuxtest.Element(0xFB, []byte{0xD8}))...)

	segment := demuxtest.Element(0x18538067,
		demuxtest.Element(0x1654AE6B, demuxtest.Element(0xAE,
			demuxtest.Element(0xD7, []byte{1}),
			demuxtest.Element(0x83, []byte{1}),
		)),
		demuxtest.Element(0x1F43B675, demuxtest.Element(0xE7, []byte{0}), groups),
	)
	data := append(demuxtest.EBMLHeader("matroska"), segment...)

	layout, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, layout.Samples, 2)
	assert.True(t, layout.Samples[0].Keyframe, "no ReferenceBlock")
	assert.False(t, layout.Samples[1].Keyframe, "has ReferenceBlock")
}

func TestParse_Errors(t *testing.T) {
	entry := func(n byte) []byte {
		return demuxtest.Element(0xAE, demuxtest.Element(0xD7, []byte{n}), demuxtest.Element(0x83, []byte{2}))
	}

	tests := []struct {
		name    string
		data    []byte
		errType errors.ErrorType
	}{
		{
			name:    "magic without header",
			data:    append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 20)...),
			errType: errors.ErrorTypeDemux,
		},
		{
			name:    "unsupported doc type",
			data:    demuxtest.EBMLHeader("mka2"),
			errType: errors.ErrorTypeInvalidFormat,
		},
		{
			name: "clusters without tracks",
			data: append(demuxtest.EBMLHeader("matroska"),
				demuxtest.Element(0x18538067, demuxtest.Element(0x1F43B675, demuxtest.Element(0xE7, []byte{0})))...),
			errType: errors.ErrorTypeDemux,
		},
		{
			name: "duplicate track number",
			data: append(demuxtest.EBMLHeader("matroska"),
				demuxtest.Element(0x18538067, demuxtest.Element(0x1654AE6B, entry(1), entry(1)))...),
			errType: errors.ErrorTypeDemux,
		},
		{
			name: "zero track number",
			data: append(demuxtest.EBMLHeader("matroska"),
				demuxtest.Element(0x18538067, demuxtest.Element(0x1654AE6B, entry(0)))...),
			errType: errors.ErrorTypeDemux,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestParse_LacedBlock(t *testing.T) {
	// Xiph lacing, two frames of 2 and 3 bytes.
	laced := []byte{0x81, 0x00, 0x0A, 0x80 | 0x02, 0x01, 0x02, 0xB1, 0xB2, 0xC1, 0xC2, 0xC3}
	segment := demuxtest.Element(0x18538067,
		demuxtest.Element(0x1654AE6B, demuxtest.Element(0xAE,
			demuxtest.Element(0xD7, []byte{1}),
			demuxtest.Element(0x83, []byte{2}),
			demuxtest.Element(0x23E383, []byte{0x01, 0x31, 0x2D, 0x00}), // 20 ms
		)),
		demuxtest.Element(0x1F43B675, demuxtest.Element(0xE7, []byte{0}), demuxtest.Element(0xA3, laced)),
	)
	data := append(demuxtest.EBMLHeader("matroska"), segment...)

	layout, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, layout.Samples, 2)
	assert.Equal(t, []byte{0xB1, 0xB2}, layout.Samples[0].Data)
	assert.Equal(t, []byte{0xC1, 0xC2, 0xC3}, layout.Samples[1].Data)
	assert.Equal(t, int64(10), layout.Samples[0].PTS)
	assert.Equal(t, int64(30), layout.Samples[1].PTS)
	assert.True(t, layout.Samples[1].Keyframe)
}

func TestParse_HostileLaceSizes(t *testing.T) {
	blocks := map[string][]byte{
		// Xiph lace size larger than the block.
		"xiph": {0x81, 0x00, 0x00, 0x80 | 0x02, 0x01, 0xFF, 0xFF, 0xFF, 0x10, 0xAA},
		// EBML lacing whose first size is a 7-byte vint near 2^48.
		"ebml": {0x81, 0x00, 0x00, 0x80 | 0x06, 0x01, 0x02, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xF0, 0xAA},
		// EBML lacing with a negative size difference.
		"ebml negative": {0x81, 0x00, 0x00, 0x80 | 0x06, 0x02, 0x82, 0x80, 0xAA, 0xBB},
	}
	for name, block := range blocks {
		t.Run(name, func(t *testing.T) {
			segment := demuxtest.Element(0x18538067,
				demuxtest.Element(0x1654AE6B, demuxtest.Element(0xAE,
					demuxtest.Element(0xD7, []byte{1}),
					demuxtest.Element(0x83, []byte{2}),
				)),
				demuxtest.Element(0x1F43B675, demuxtest.Element(0xE7, []byte{0}), demuxtest.Element(0xA3, block)),
			)
			data := append(demuxtest.EBMLHeader("matroska"), segment...)

			var layout *container.Layout
			var err error
			require.NotPanics(t, func() { layout, err = NewParser().Parse(data) })
			if err != nil {
				assert.True(t, errors.IsType(err, errors.ErrorTypeDemux), "got %v", err)
				return
			}
			for _, s := range layout.Samples {
				assert.LessOrEqual(t, len(s.Data), len(block))
			}
		})
	}
}
