package codec

import (
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// pcmBackend passes uncompressed PCM through, converting big-endian 16-bit
// input to the little-endian layout AudioFrame uses.
type pcmBackend struct {
	codec      media.Codec
	channels   int
	sampleRate int
	format     media.SampleFormat
}

func (b *pcmBackend) Open(p Params, _ Config) error {
	if p.Channels <= 0 || p.SampleRate <= 0 {
		return errors.NewDecodeError("invalid PCM parameters: %d channels at %d Hz", p.Channels, p.SampleRate)
	}
	switch p.Codec {
	case media.CodecPCMS16LE, media.CodecPCMS16BE:
		b.format = media.SampleS16
	case media.CodecPCMF32LE:
		b.format = media.SampleF32
	default:
		return errors.NewDecodeError("%s is not a PCM codec", p.Codec)
	}
	b.codec = p.Codec
	b.channels = p.Channels
	b.sampleRate = p.SampleRate
	return nil
}

func (b *pcmBackend) Decode(payload []byte, pts int64) (media.Frame, error) {
	frameSize := b.channels * b.format.BytesPerSample()
	if len(payload)%frameSize != 0 {
		return nil, errors.NewDecodeError("PCM packet of %d bytes is not a whole number of %d-byte sample frames",
			len(payload), frameSize)
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	if b.codec == media.CodecPCMS16BE {
		for i := 0; i+1 < len(data); i += 2 {
			data[i], data[i+1] = data[i+1], data[i]
		}
	}

	return &media.AudioFrame{
		Channels:     b.channels,
		SampleRate:   b.sampleRate,
		PTS:          pts,
		SampleFormat: b.format,
		Data:         data,
	}, nil
}

func (b *pcmBackend) Flush() ([]media.Frame, error) { return nil, nil }

func (b *pcmBackend) Close() error { return nil }
