// Package media holds the value types that flow between the demuxer, the codec
// sessions and the frame buffers. All timestamps are milliseconds.
package media

// StreamType identifies the kind of elementary stream.
type StreamType uint8

const (
	StreamVideo StreamType = iota
	StreamAudio
	StreamSubtitle
)

// String returns the string representation of StreamType
func (t StreamType) String() string {
	switch t {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	case StreamSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// PixelFormat is the layout of VideoFrame.Data.
type PixelFormat uint8

const (
	PixelYUV420P PixelFormat = iota
	PixelRGBA
	PixelRGB
)

// String returns the string representation of PixelFormat
func (p PixelFormat) String() string {
	switch p {
	case PixelYUV420P:
		return "yuv420p"
	case PixelRGBA:
		return "rgba"
	case PixelRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// FrameSize returns the number of bytes a width x height picture occupies.
func (p PixelFormat) FrameSize(width, height int) int {
	switch p {
	case PixelYUV420P:
		return width*height + 2*(((width+1)/2)*((height+1)/2))
	case PixelRGBA:
		return width * height * 4
	case PixelRGB:
		return width * height * 3
	default:
		return 0
	}
}

// SampleFormat is the layout of AudioFrame.Data. Samples are interleaved and
// little-endian.
type SampleFormat uint8

const (
	SampleS16 SampleFormat = iota
	SampleF32
)

// String returns the string representation of SampleFormat
func (s SampleFormat) String() string {
	switch s {
	case SampleS16:
		return "s16"
	case SampleF32:
		return "f32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the size of one sample of one channel.
func (s SampleFormat) BytesPerSample() int {
	switch s {
	case SampleS16:
		return 2
	case SampleF32:
		return 4
	default:
		return 0
	}
}

// Packet is one unit of still-encoded media as it appears in the container.
// DTS is carried through untouched; DTS <= PTS is not checked here.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Keyframe    bool
	Payload     []byte
}

// StreamInfo describes one elementary stream. It is immutable once the
// demuxer has been initialized.
type StreamInfo struct {
	Index      int
	Type       StreamType
	CodecID    string
	Codec      Codec
	DurationMS *int64

	// Video
	Width  int
	Height int

	// Audio
	SampleRate int
	Channels   int

	ExtraData []byte
}

// Duration returns the stream duration and whether the container declared one.
func (s StreamInfo) Duration() (int64, bool) {
	if s.DurationMS == nil {
		return 0, false
	}
	return *s.DurationMS, true
}
