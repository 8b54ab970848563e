package health

import (
	"context"
	"fmt"

	"github.com/zsiec/playcore/internal/codec"
	"github.com/zsiec/playcore/internal/media"
)

// DecoderChecker verifies that the codec registry can open and run the
// decoders the service relies on.
type DecoderChecker struct {
	registry *codec.Registry
	required []media.Codec
}

// NewDecoderChecker creates a checker that requires backends for codecs.
// With no codecs every built-in backend is required.
func NewDecoderChecker(registry *codec.Registry, codecs ...media.Codec) *DecoderChecker {
	if len(codecs) == 0 {
		codecs = codec.DefaultRegistry().SupportedCodecs()
	}
	return &DecoderChecker{registry: registry, required: codecs}
}

// Name returns the name of the checker.
func (d *DecoderChecker) Name() string {
	return "decoders"
}

// Check confirms every required codec has a backend, then decodes one PCM
// sample end to end.
func (d *DecoderChecker) Check(ctx context.Context) error {
	var missing []string
	for _, c := range d.required {
		if !d.registry.IsSupported(c) {
			missing = append(missing, c.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing decoders: %v", missing)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if !d.registry.IsSupported(media.CodecPCMS16LE) {
		return nil
	}
	s := codec.NewAudioSession(codec.WithRegistry(d.registry))
	defer s.Close()
	if err := s.Initialize(codec.Params{Codec: media.CodecPCMS16LE, SampleRate: 8000, Channels: 1}); err != nil {
		return fmt.Errorf("decoder smoke test: %w", err)
	}
	frame, err := s.Decode([]byte{0x01, 0x00}, 0)
	if err != nil {
		return fmt.Errorf("decoder smoke test: %w", err)
	}
	if frame == nil || frame.Kind() != media.StreamAudio {
		return fmt.Errorf("decoder smoke test produced no audio frame")
	}
	return nil
}

// SessionsChecker reports degraded when the session table is nearly full.
type SessionsChecker struct {
	count     func() (active, limit int)
	threshold float64
}

// NewSessionsChecker creates a checker over count. threshold is the
// occupancy ratio (0-1] above which the service is degraded.
func NewSessionsChecker(count func() (active, limit int), threshold float64) *SessionsChecker {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.9
	}
	return &SessionsChecker{count: count, threshold: threshold}
}

// Name returns the name of the checker.
func (s *SessionsChecker) Name() string {
	return "sessions"
}

// Check compares the active session count with the limit.
func (s *SessionsChecker) Check(ctx context.Context) error {
	active, limit := s.count()
	if limit <= 0 {
		return nil
	}
	if float64(active) >= float64(limit)*s.threshold {
		return Degraded(fmt.Errorf("%d of %d playback sessions in use", active, limit))
	}
	return nil
}
