package codec

import (
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/media"
)

// Session wraps one Backend and enforces the decode lifecycle: nothing can be
// decoded before Initialize, and every frame it returns matches its Kind.
// A Session is not safe for concurrent use.
type Session struct {
	kind     Kind
	cfg      Config
	registry *Registry
	logger   logger.Logger

	backend Backend
	params  Params
	decoded uint64
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the decoder configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithRegistry replaces the built-in backend registry.
func WithRegistry(r *Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates an uninitialized session of the given kind.
func NewSession(kind Kind, opts ...Option) *Session {
	s := &Session{kind: kind, cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	if s.logger == nil {
		s.logger = logger.NewNullLogger()
	}
	return s
}

// NewVideoSession creates a session that produces *media.VideoFrame.
func NewVideoSession(opts ...Option) *Session { return NewSession(KindVideo, opts...) }

// NewAudioSession creates a session that produces *media.AudioFrame.
func NewAudioSession(opts ...Option) *Session { return NewSession(KindAudio, opts...) }

// Kind returns the frame variant the session produces.
func (s *Session) Kind() Kind { return s.kind }

// Config returns the decoder configuration.
func (s *Session) Config() Config { return s.cfg }

// Params returns the parameters of the last successful Initialize.
func (s *Session) Params() Params { return s.params }

// IsInitialized reports whether a backend is open.
func (s *Session) IsInitialized() bool { return s.backend != nil }

// Decoded returns how many frames the session has produced.
func (s *Session) Decoded() uint64 { return s.decoded }

// Initialize opens a backend for p. Calling it again closes the previous
// backend first.
func (s *Session) Initialize(p Params) error {
	if p.Codec == media.CodecUnknown {
		p.Codec = media.ParseCodec(p.CodecID)
	}
	if p.Codec == media.CodecUnknown {
		return errors.NewDecodeError("unsupported codec %q", p.CodecID)
	}
	if s.kind == KindVideo && !p.Codec.IsVideo() || s.kind == KindAudio && !p.Codec.IsAudio() {
		return errors.NewDecodeError("codec %s cannot be decoded by the %s session", p.Codec, s.kind)
	}

	backend, ok := s.registry.Create(p.Codec)
	if !ok {
		return errors.NewDecodeError("no decoder available for codec %s", p.Codec)
	}
	if err := backend.Open(p, s.cfg); err != nil {
		if errors.IsAppError(err) {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeDecode, "failed to open "+p.Codec.String()+" decoder",
			errors.StatusFor(errors.ErrorTypeDecode))
	}

	if err := s.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close previous decoder")
	}
	s.backend = backend
	s.params = p
	s.decoded = 0

	s.logger.WithFields(map[string]interface{}{
		"kind":         s.kind.String(),
		"codec":        p.Codec.String(),
		"hw_accel":     s.cfg.HardwareAcceleration,
		"thread_count": s.cfg.ThreadCount,
	}).Debug("Decoder initialized")
	return nil
}

// Decode submits one packet. A nil frame with a nil error means the backend
// needs more input.
func (s *Session) Decode(payload []byte, pts int64) (media.Frame, error) {
	if s.backend == nil {
		return nil, errors.NewDecodeError("decoder not initialized")
	}
	if len(payload) == 0 {
		return nil, errors.NewDecodeError("empty packet data")
	}

	frame, err := s.backend.Decode(payload, pts)
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "decode failed", errors.StatusFor(errors.ErrorTypeDecode))
	}
	if frame == nil {
		return nil, nil
	}
	if err := s.check(frame); err != nil {
		return nil, err
	}
	s.decoded++
	return frame, nil
}

// Flush drains frames the backend is still holding.
func (s *Session) Flush() ([]media.Frame, error) {
	if s.backend == nil {
		return nil, errors.NewDecodeError("decoder not initialized")
	}
	frames, err := s.backend.Flush()
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "flush failed", errors.StatusFor(errors.ErrorTypeDecode))
	}
	for _, f := range frames {
		if err := s.check(f); err != nil {
			return nil, err
		}
	}
	s.decoded += uint64(len(frames))
	return frames, nil
}

// Close releases the backend. The session can be initialized again.
func (s *Session) Close() error {
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

// check rejects frames of the wrong variant; a backend that produces them is
// broken, not the input.
func (s *Session) check(f media.Frame) error {
	if f == nil {
		return errors.NewInternalError("%s decoder produced a nil frame", s.params.Codec)
	}
	var ok, null bool
	switch s.kind {
	case KindVideo:
		var v *media.VideoFrame
		v, ok = f.(*media.VideoFrame)
		null = ok && v == nil
	case KindAudio:
		var a *media.AudioFrame
		a, ok = f.(*media.AudioFrame)
		null = ok && a == nil
	}
	if null {
		return errors.NewInternalError("%s decoder produced a nil frame", s.params.Codec)
	}
	if !ok {
		return errors.NewInternalError("%s session received a %s frame from the %s decoder",
			s.kind, f.Kind(), s.params.Codec)
	}
	return nil
}
