// Package player implements the playback controller: the state machine that
// owns a demuxer, one decoder session per media kind, the frame buffers and
// an optional subtitle track, and is the only surface a host talks to.
package player

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/playcore/internal/codec"
	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/demux"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/framebuffer"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/media"
	"github.com/zsiec/playcore/internal/metrics"
	"github.com/zsiec/playcore/internal/subtitle"
)

// DefaultPumpBudget is the number of packets one Pump call demuxes at most
// when the caller passes no budget.
const DefaultPumpBudget = 32

// Config holds the tunables of one controller.
type Config struct {
	Buffer     framebuffer.Config
	Decoder    codec.Config
	PumpBudget int
}

// DefaultConfig returns the stock buffer capacities and decoder settings.
func DefaultConfig() Config {
	return Config{
		Buffer: framebuffer.Config{
			VideoCapacity: framebuffer.DefaultVideoCapacity,
			AudioCapacity: framebuffer.DefaultAudioCapacity,
		},
		Decoder:    codec.DefaultConfig(),
		PumpBudget: DefaultPumpBudget,
	}
}

// ConfigFrom maps the player section of the service config.
func ConfigFrom(pc config.PlayerConfig) Config {
	return Config{
		Buffer: framebuffer.Config{
			VideoCapacity: pc.Buffer.VideoCapacity,
			AudioCapacity: pc.Buffer.AudioCapacity,
		},
		Decoder: codec.Config{
			HardwareAcceleration: pc.Decoder.HardwareAcceleration,
			ThreadCount:          pc.Decoder.ThreadCount,
		},
		PumpBudget: pc.PumpBudget,
	}
}

// SubtitleInfo summarizes a loaded subtitle track.
type SubtitleInfo struct {
	Format   string `json:"format"`
	CueCount int    `json:"cueCount"`
}

// String renders the summary as JSON.
func (s SubtitleInfo) String() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Controller is the playback state machine. It is synchronous and spawns no
// goroutines; it is not safe for concurrent use.
type Controller struct {
	id     string
	cfg    Config
	logger *logger.SampledLogger

	newSource     func() demux.StreamSource
	codecRegistry *codec.Registry
	instrumented  bool

	state     State
	source    demux.StreamSource
	video     *codec.Session
	audio     *codec.Session
	buffers   *framebuffer.Manager
	subtitles *subtitle.Track

	format      demux.ContainerFormat
	streams     []media.StreamInfo
	videoStream int
	audioStream int

	// Decoded frames the buffers had no room for, in decode order.
	pending  []media.Frame
	eof      bool
	position int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets buffer capacities, decoder settings and the pump budget.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithLogger sets the base logger. Per-packet logs are sampled.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.logger = logger.NewPlaybackLogger(l) }
}

// WithID sets the controller id used in logs and metric labels.
func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// WithDemuxRegistry builds the stream source from a custom parser registry.
func WithDemuxRegistry(r *demux.Registry) Option {
	return func(c *Controller) {
		c.newSource = func() demux.StreamSource { return demux.New(demux.WithRegistry(r)) }
	}
}

// WithSource replaces the demuxer. newSource is called for every fresh
// component set, i.e. at construction and on Reset.
func WithSource(newSource func() demux.StreamSource) Option {
	return func(c *Controller) { c.newSource = newSource }
}

// WithCodecRegistry sets the registry decoder backends are created from.
func WithCodecRegistry(r *codec.Registry) Option {
	return func(c *Controller) { c.codecRegistry = r }
}

// WithMetrics exports buffer occupancy labelled with the controller id.
func WithMetrics() Option {
	return func(c *Controller) { c.instrumented = true }
}

// New creates a controller in Idle.
func New(opts ...Option) *Controller {
	c := &Controller{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.New().String()
	}
	if c.logger == nil {
		c.logger = logger.NewPlaybackLogger(logger.NewNullLogger())
	}
	if c.newSource == nil {
		c.newSource = func() demux.StreamSource { return demux.New() }
	}
	if c.codecRegistry == nil {
		c.codecRegistry = codec.DefaultRegistry()
	}
	if c.cfg.PumpBudget <= 0 {
		c.cfg.PumpBudget = DefaultPumpBudget
	}
	c.logger = c.logger.WithField("player_id", c.id).(*logger.SampledLogger)
	c.rebuild()
	return c
}

// rebuild discards every owned component and creates fresh ones.
func (c *Controller) rebuild() {
	if c.buffers != nil && c.instrumented {
		c.buffers.Release()
	}
	if c.video != nil {
		c.video.Close()
	}
	if c.audio != nil {
		c.audio.Close()
	}

	sessionOpts := []codec.Option{
		codec.WithConfig(c.cfg.Decoder),
		codec.WithRegistry(c.codecRegistry),
		codec.WithLogger(c.logger),
	}
	c.source = c.newSource()
	c.video = codec.NewVideoSession(sessionOpts...)
	c.audio = codec.NewAudioSession(sessionOpts...)
	c.buffers = framebuffer.NewManager(c.cfg.Buffer)
	if c.instrumented {
		c.buffers.Instrument(c.id)
	}
	c.subtitles = nil

	c.format = demux.FormatUnknown
	c.streams = nil
	c.videoStream = -1
	c.audioStream = -1
	c.pending = nil
	c.eof = false
	c.position = 0
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	metrics.RecordStateTransition(c.state.String(), s.String())
	c.logger.InfoWithCategory(logger.CategoryStateChange, "Playback state changed", map[string]interface{}{
		"from": c.state.String(),
		"to":   s.String(),
	})
	c.state = s
}

// fail moves to Error and returns err.
func (c *Controller) fail(err error) error {
	c.setState(StateError)
	c.countError(err)
	return err
}

func (c *Controller) countError(err error) {
	if appErr, ok := errors.GetAppError(err); ok {
		metrics.IncrementError(string(appErr.Type))
		return
	}
	metrics.IncrementError(string(errors.ErrorTypeInternal))
}

func (c *Controller) rejected(op string) error {
	err := errors.NewInvalidStateError("cannot %s while %s", op, c.state)
	c.countError(err)
	return err
}

// ID returns the controller id.
func (c *Controller) ID() string { return c.id }

// State returns the current playback state.
func (c *Controller) State() State { return c.state }

// Format returns the detected container name, or false before a Load.
func (c *Controller) Format() (string, bool) {
	if !c.state.Loaded() && c.state != StateError {
		return "", false
	}
	return c.format.String(), true
}

// Streams returns the streams indexed by the last Load.
func (c *Controller) Streams() []media.StreamInfo {
	out := make([]media.StreamInfo, len(c.streams))
	copy(out, c.streams)
	return out
}

// DurationMS returns the longest declared stream duration.
func (c *Controller) DurationMS() (int64, bool) {
	var (
		longest int64
		found   bool
	)
	for _, s := range c.streams {
		if d, ok := s.Duration(); ok && d >= longest {
			longest, found = d, true
		}
	}
	return longest, found
}

// Position returns the timestamp of the newest frame handed to the host, or
// the last seek target.
func (c *Controller) Position() int64 { return c.position }

// BufferStats returns the current buffer occupancy.
func (c *Controller) BufferStats() framebuffer.Stats { return c.buffers.Stats() }

// BufferedMS returns the timestamp span queued per media kind.
func (c *Controller) BufferedMS() (video, audio int64) { return c.buffers.BufferedMS() }

// Load indexes data and opens decoders for the first video and first audio
// stream. On failure the controller is back in Idle with fresh components.
// The controller keeps a reference to data.
func (c *Controller) Load(data []byte) error {
	if c.state != StateIdle {
		return c.rejected("load")
	}
	start := time.Now()
	c.setState(StateLoading)

	if err := c.load(data); err != nil {
		c.rebuild()
		c.setState(StateIdle)
		c.countError(err)
		c.logger.WithError(err).Warn("Load failed")
		return err
	}

	metrics.RecordLoad(c.format.String(), len(data), time.Since(start))
	c.logger.WithFields(map[string]interface{}{
		"format":       c.format.String(),
		"streams":      len(c.streams),
		"video_stream": c.videoStream,
		"audio_stream": c.audioStream,
		"bytes":        len(data),
	}).Info("Media loaded")
	c.setState(StateReady)
	return nil
}

func (c *Controller) load(data []byte) error {
	streams, err := c.source.Initialize(data)
	if err != nil {
		return err
	}

	format, err := demux.DetectFormat(data)
	if err != nil {
		return err
	}
	if format == demux.FormatUnknown {
		return errors.NewInvalidFormatError("unrecognized container format")
	}
	c.format = format
	c.streams = streams

	for _, s := range streams {
		switch {
		case s.Type == media.StreamVideo && c.videoStream < 0:
			c.videoStream = s.Index
			if err := c.video.Initialize(codec.ParamsFromStream(s)); err != nil {
				return err
			}
		case s.Type == media.StreamAudio && c.audioStream < 0:
			c.audioStream = s.Index
			if err := c.audio.Initialize(codec.ParamsFromStream(s)); err != nil {
				return err
			}
		}
	}
	if c.videoStream < 0 && c.audioStream < 0 {
		return errors.NewInvalidFormatError("%s container has no audio or video stream", format)
	}
	return nil
}

// Play starts or resumes playback from Ready or Paused.
func (c *Controller) Play() error {
	if c.state != StateReady && c.state != StatePaused {
		return c.rejected("play")
	}
	c.setState(StatePlaying)
	return nil
}

// Pause suspends playback. Only valid while Playing.
func (c *Controller) Pause() error {
	if c.state != StatePlaying {
		return c.rejected("pause")
	}
	c.setState(StatePaused)
	return nil
}

// Seek repositions the source at or before targetMS and discards every
// queued and decoder-held frame. The state is unchanged.
func (c *Controller) Seek(targetMS int64) error {
	if !c.state.Loaded() {
		return c.rejected("seek")
	}

	if err := c.source.Seek(targetMS); err != nil {
		c.countError(err)
		return err
	}

	stats := c.buffers.Stats()
	c.buffers.Clear()
	metrics.RecordFramesDropped("video", "seek", stats.VideoFrames)
	metrics.RecordFramesDropped("audio", "seek", stats.AudioFrames)
	metrics.RecordFramesDropped("pending", "seek", len(c.pending))
	c.pending = nil

	for _, s := range []*codec.Session{c.video, c.audio} {
		if !s.IsInitialized() {
			continue
		}
		flushed, err := s.Flush()
		if err != nil {
			return c.fail(err)
		}
		metrics.RecordFramesDropped(s.Kind().String(), "seek", len(flushed))
	}

	c.eof = false
	c.position = targetMS
	metrics.RecordSeek()
	c.logger.DebugWithCategory(logger.CategorySeek, "Seek completed", map[string]interface{}{
		"target_ms": targetMS,
	})
	return nil
}

// Reset discards every component and returns to Idle. It always succeeds.
func (c *Controller) Reset() {
	c.rebuild()
	c.setState(StateIdle)
}

// Close releases metric series and decoder resources. The controller must
// not be used afterwards.
func (c *Controller) Close() {
	if c.instrumented {
		c.buffers.Release()
		c.instrumented = false
	}
	c.video.Close()
	c.audio.Close()
}

// LoadSubtitles parses text, auto-detecting the format, and replaces the
// current subtitle track. It is valid in every state.
func (c *Controller) LoadSubtitles(text string) (SubtitleInfo, error) {
	return c.LoadSubtitlesAs(text, subtitle.DetectFormat(text))
}

// LoadSubtitlesAs is LoadSubtitles with the format forced.
func (c *Controller) LoadSubtitlesAs(text string, format subtitle.Format) (SubtitleInfo, error) {
	track, err := subtitle.ParseFormat(text, format)
	if err != nil {
		c.countError(err)
		return SubtitleInfo{}, err
	}
	c.subtitles = track
	metrics.RecordSubtitlesLoaded(track.Format().String())
	return SubtitleInfo{Format: track.Format().String(), CueCount: track.Len()}, nil
}

// SubtitleTrack returns the loaded track, if any.
func (c *Controller) SubtitleTrack() (*subtitle.Track, bool) {
	return c.subtitles, c.subtitles != nil
}

// Subtitles returns the cues visible at ts.
func (c *Controller) Subtitles(ts int64) []subtitle.Cue {
	if c.subtitles == nil {
		return nil
	}
	return c.subtitles.At(ts)
}

// PopVideo hands the oldest decoded video frame to the host.
func (c *Controller) PopVideo() (*media.VideoFrame, bool) {
	f, ok := c.buffers.PopVideo()
	if ok {
		c.presented(f.PTS)
	}
	return f, ok
}

// PopAudio hands the oldest decoded audio frame to the host.
func (c *Controller) PopAudio() (*media.AudioFrame, bool) {
	f, ok := c.buffers.PopAudio()
	if ok {
		c.presented(f.PTS)
	}
	return f, ok
}

// PeekVideo returns the next video frame without removing it.
func (c *Controller) PeekVideo() (*media.VideoFrame, bool) { return c.buffers.PeekVideo() }

// PeekAudio returns the next audio frame without removing it.
func (c *Controller) PeekAudio() (*media.AudioFrame, bool) { return c.buffers.PeekAudio() }

func (c *Controller) presented(pts int64) {
	if pts > c.position {
		c.position = pts
	}
	c.checkEnded()
}

// drained reports whether every decoded frame has been handed out.
func (c *Controller) drained() bool {
	return c.eof && len(c.pending) == 0 && c.buffers.IsEmpty()
}

func (c *Controller) checkEnded() {
	if c.state.active() && c.drained() {
		c.setState(StateEnded)
	}
}

// Verify checks that the state agrees with the owned components.
func (c *Controller) Verify() error {
	if c.state.Loaded() {
		if src, ok := c.source.(interface{ IsInitialized() bool }); ok && !src.IsInitialized() {
			return errors.NewInternalError("%s controller has an uninitialized stream source", c.state)
		}
		if c.videoStream < 0 && c.audioStream < 0 {
			return errors.NewInternalError("%s controller has no selected stream", c.state)
		}
		if c.videoStream >= 0 && !c.video.IsInitialized() {
			return errors.NewInternalError("%s controller has no video decoder", c.state)
		}
		if c.audioStream >= 0 && !c.audio.IsInitialized() {
			return errors.NewInternalError("%s controller has no audio decoder", c.state)
		}
	}
	if c.state == StateIdle && (c.video.IsInitialized() || c.audio.IsInitialized() || len(c.streams) > 0) {
		return errors.NewInternalError("idle controller still holds loaded components")
	}
	stats := c.buffers.Stats()
	if stats.VideoFrames > stats.VideoCapacity || stats.AudioFrames > stats.AudioCapacity {
		return errors.NewInternalError("frame buffer over capacity: %s", stats)
	}
	return nil
}
