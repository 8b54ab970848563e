package media

// Frame is a decoded unit of media. The set of implementations is closed:
// only *VideoFrame and *AudioFrame satisfy it.
type Frame interface {
	Timestamp() int64
	Kind() StreamType
	isFrame()
}

// VideoFrame is one decoded picture.
type VideoFrame struct {
	Width       int
	Height      int
	PTS         int64
	PixelFormat PixelFormat
	Data        []byte
}

// Timestamp returns the presentation timestamp in milliseconds.
func (f *VideoFrame) Timestamp() int64 { return f.PTS }

// Kind returns StreamVideo.
func (f *VideoFrame) Kind() StreamType { return StreamVideo }

func (f *VideoFrame) isFrame() {}

// AudioFrame is one block of decoded, interleaved samples.
type AudioFrame struct {
	Channels     int
	SampleRate   int
	PTS          int64
	SampleFormat SampleFormat
	Data         []byte
}

// Timestamp returns the presentation timestamp in milliseconds.
func (f *AudioFrame) Timestamp() int64 { return f.PTS }

// Kind returns StreamAudio.
func (f *AudioFrame) Kind() StreamType { return StreamAudio }

func (f *AudioFrame) isFrame() {}

// Samples returns the number of samples per channel held by the frame.
func (f *AudioFrame) Samples() int {
	bps := f.SampleFormat.BytesPerSample()
	if bps == 0 || f.Channels <= 0 {
		return 0
	}
	return len(f.Data) / (bps * f.Channels)
}

// DurationMS returns the playback length of the frame.
func (f *AudioFrame) DurationMS() int64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return int64(f.Samples()) * 1000 / int64(f.SampleRate)
}
