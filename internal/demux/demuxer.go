package demux

import (
	"github.com/zsiec/playcore/internal/demux/container"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// StreamSource is what the playback controller needs from a demuxer.
type StreamSource interface {
	// Initialize detects the container and indexes its streams.
	Initialize(data []byte) ([]media.StreamInfo, error)
	// NextPacket returns the next packet in container order, or nil at the
	// end of the container. End of container is not an error.
	NextPacket() (*media.Packet, error)
	// Seek repositions so the next packet starts at or before targetMS.
	Seek(targetMS int64) error
}

// Demuxer is the in-memory StreamSource. It is not safe for concurrent use.
type Demuxer struct {
	registry *Registry

	data        []byte
	format      ContainerFormat
	layout      *container.Layout
	cursor      int
	initialized bool
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithRegistry replaces the built-in parser registry.
func WithRegistry(r *Registry) Option {
	return func(d *Demuxer) { d.registry = r }
}

// New creates an uninitialized demuxer.
func New(opts ...Option) *Demuxer {
	d := &Demuxer{}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = DefaultRegistry()
	}
	return d
}

// Initialize detects the format and indexes data. The demuxer keeps a
// reference to data; callers must not modify it afterwards. When no parser is
// registered for the detected format, initialization succeeds with no
// streams and NextPacket reports an error.
func (d *Demuxer) Initialize(data []byte) ([]media.StreamInfo, error) {
	if len(data) == 0 {
		return nil, errors.NewDemuxError("empty data provided")
	}

	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	var layout *container.Layout
	if parser, ok := d.registry.Create(format); ok {
		layout, err = parser.Parse(data)
		if err != nil {
			return nil, err
		}
	}

	d.data = data
	d.format = format
	d.layout = layout
	d.cursor = 0
	d.initialized = true

	return d.Streams(), nil
}

// IsInitialized reports whether Initialize has succeeded.
func (d *Demuxer) IsInitialized() bool { return d.initialized }

// Format returns the detected container format.
func (d *Demuxer) Format() (ContainerFormat, bool) {
	return d.format, d.initialized
}

// Streams returns a copy of the indexed stream descriptions.
func (d *Demuxer) Streams() []media.StreamInfo {
	if d.layout == nil {
		return nil
	}
	out := make([]media.StreamInfo, len(d.layout.Streams))
	copy(out, d.layout.Streams)
	return out
}

// DurationMS returns the longest declared stream duration.
func (d *Demuxer) DurationMS() (int64, bool) {
	var (
		longest int64
		found   bool
	)
	for _, s := range d.Streams() {
		if v, ok := s.Duration(); ok && v >= longest {
			longest, found = v, true
		}
	}
	return longest, found
}

func (d *Demuxer) ready() error {
	if !d.initialized {
		return errors.NewDemuxError("demuxer not initialized")
	}
	if d.layout == nil {
		return errors.NewDemuxError("no parser registered for %s container", d.format)
	}
	return nil
}

// NextPacket returns the next sample as a packet. The payload aliases the
// container bytes.
func (d *Demuxer) NextPacket() (*media.Packet, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	if d.cursor >= len(d.layout.Samples) {
		return nil, nil
	}

	s := d.layout.Samples[d.cursor]
	d.cursor++
	payload := s.Data
	if payload == nil {
		payload = d.data[s.Offset : s.Offset+int64(s.Size)]
	}
	return &media.Packet{
		StreamIndex: s.Stream,
		PTS:         s.PTS,
		DTS:         s.DTS,
		Keyframe:    s.Keyframe,
		Payload:     payload,
	}, nil
}

// Seek moves the cursor to the last keyframe of the primary stream (the first
// video stream, else the first stream) whose PTS is at or before targetMS.
// With no such keyframe playback restarts from the beginning.
func (d *Demuxer) Seek(targetMS int64) error {
	if err := d.ready(); err != nil {
		return err
	}
	if targetMS < 0 {
		return errors.NewDemuxError("invalid seek target %d ms", targetMS)
	}

	primary := -1
	for _, s := range d.layout.Streams {
		if s.Type == media.StreamVideo {
			primary = s.Index
			break
		}
	}
	if primary < 0 && len(d.layout.Streams) > 0 {
		primary = d.layout.Streams[0].Index
	}

	d.cursor = 0
	for i, s := range d.layout.Samples {
		if s.Stream == primary && s.Keyframe && s.PTS <= targetMS {
			d.cursor = i
		}
	}
	return nil
}

var _ StreamSource = (*Demuxer)(nil)
