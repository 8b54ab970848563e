// Package codec turns encoded packets into decoded frames. A Session is the
// state machine the player drives; the actual decoding is done by a Backend
// chosen per codec from a Registry.
package codec

import (
	"github.com/zsiec/playcore/internal/media"
)

// Kind selects which frame variant a session produces.
type Kind uint8

const (
	KindVideo Kind = iota
	KindAudio
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// StreamType returns the media stream type the kind decodes.
func (k Kind) StreamType() media.StreamType {
	if k == KindAudio {
		return media.StreamAudio
	}
	return media.StreamVideo
}

// Params describe the stream a session decodes.
type Params struct {
	Codec     media.Codec
	CodecID   string
	ExtraData []byte

	// Video
	Width  int
	Height int

	// Audio
	SampleRate int
	Channels   int
}

// ParamsFromStream copies the decoder-relevant fields of a stream.
func ParamsFromStream(s media.StreamInfo) Params {
	return Params{
		Codec:      s.Codec,
		CodecID:    s.CodecID,
		ExtraData:  s.ExtraData,
		Width:      s.Width,
		Height:     s.Height,
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
	}
}

// Config holds decoder tuning shared by every session.
type Config struct {
	HardwareAcceleration bool   `mapstructure:"hardware_acceleration"`
	ThreadCount          uint32 `mapstructure:"thread_count"` // 0 = automatic
}

// DefaultConfig enables hardware acceleration with automatic threading.
func DefaultConfig() Config {
	return Config{HardwareAcceleration: true}
}

// Backend decodes a single codec. Implementations may buffer input and
// return nil frames until they have output; Flush drains whatever remains.
type Backend interface {
	Open(p Params, cfg Config) error
	Decode(payload []byte, pts int64) (media.Frame, error)
	Flush() ([]media.Frame, error)
	Close() error
}
