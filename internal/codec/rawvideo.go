package codec

import (
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// rawVideoBackend accepts uncompressed pictures. The pixel format is inferred
// from the payload size: I420, packed RGB or packed RGBA at the stream's
// dimensions.
type rawVideoBackend struct {
	width  int
	height int
}

var rawFormats = []media.PixelFormat{media.PixelYUV420P, media.PixelRGB, media.PixelRGBA}

func (b *rawVideoBackend) Open(p Params, _ Config) error {
	if p.Width <= 0 || p.Height <= 0 {
		return errors.NewDecodeError("invalid raw video dimensions %dx%d", p.Width, p.Height)
	}
	b.width = p.Width
	b.height = p.Height
	return nil
}

func (b *rawVideoBackend) Decode(payload []byte, pts int64) (media.Frame, error) {
	for _, pf := range rawFormats {
		if pf.FrameSize(b.width, b.height) != len(payload) {
			continue
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		return &media.VideoFrame{
			Width:       b.width,
			Height:      b.height,
			PTS:         pts,
			PixelFormat: pf,
			Data:        data,
		}, nil
	}
	return nil, errors.NewDecodeError("raw video packet of %d bytes does not match a %dx%d picture",
		len(payload), b.width, b.height)
}

func (b *rawVideoBackend) Flush() ([]media.Frame, error) { return nil, nil }

func (b *rawVideoBackend) Close() error { return nil }
