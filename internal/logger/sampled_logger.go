package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SampledLogger rate-limits high-frequency log categories. Categories
// without a sampler always log.
type SampledLogger struct {
	base          Logger
	samplers      map[string]*LogSampler
	samplersMutex sync.RWMutex
}

// LogSampler throttles one category: a token bucket refilled once per
// maxFrequency admits bursts, and past the bucket only a sampleRate
// fraction of messages gets through.
type LogSampler struct {
	name       string
	limiter    *rate.Limiter
	sampleRate float64 // 0.0-1.0

	mu       sync.Mutex
	overflow int64 // messages past the bucket since the last sampled one

	total   atomic.Int64
	logged  atomic.Int64
	dropped atomic.Int64
}

// NewSampledLogger creates a new sampled logger
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		samplers: make(map[string]*LogSampler),
	}
}

// WithSampler adds a sampler for category name. A burstAllowance below 1
// still admits one message per maxFreq.
func (s *SampledLogger) WithSampler(name string, maxFreq time.Duration, burstAllowance int, sampleRate float64) *SampledLogger {
	s.samplersMutex.Lock()
	defer s.samplersMutex.Unlock()

	if burstAllowance < 1 {
		burstAllowance = 1
	}
	s.samplers[name] = &LogSampler{
		name:       name,
		limiter:    rate.NewLimiter(rate.Every(maxFreq), burstAllowance),
		sampleRate: sampleRate,
	}

	return s
}

func (s *SampledLogger) sampler(category string) (*LogSampler, bool) {
	s.samplersMutex.RLock()
	defer s.samplersMutex.RUnlock()
	sampler, ok := s.samplers[category]
	return sampler, ok
}

// shouldLog determines if a message should be logged based on sampling rules
func (s *SampledLogger) shouldLog(category string) bool {
	sampler, ok := s.sampler(category)
	if !ok {
		return true
	}
	return sampler.allow(time.Now())
}

func (l *LogSampler) allow(now time.Time) bool {
	l.total.Add(1)
	if l.limiter.AllowN(now, 1) {
		l.logged.Add(1)
		return true
	}

	if l.sampleRate > 0 {
		l.mu.Lock()
		l.overflow++
		pass := float64(l.overflow)*l.sampleRate >= 1.0
		if pass {
			l.overflow = 0
		}
		l.mu.Unlock()
		if pass {
			l.logged.Add(1)
			return true
		}
	}

	l.dropped.Add(1)
	return false
}

func (l *LogSampler) stats() SamplerStats {
	st := SamplerStats{
		Name:            l.name,
		TotalMessages:   l.total.Load(),
		SampledMessages: l.logged.Load(),
		DroppedMessages: l.dropped.Load(),
	}
	if st.TotalMessages > 0 {
		st.CurrentRate = float64(st.SampledMessages) / float64(st.TotalMessages)
	}
	return st
}

// LogWithCategory logs a high-frequency event, subject to the category's sampler
func (s *SampledLogger) LogWithCategory(level logrus.Level, category string, msg string, fields map[string]interface{}) {
	if !s.shouldLog(category) {
		return
	}

	if fields == nil {
		fields = make(map[string]interface{})
	}
	s.addSamplingMetadata(category, fields)
	s.base.WithFields(fields).Log(level, msg)
}

// addSamplingMetadata adds sampling statistics to log fields
func (s *SampledLogger) addSamplingMetadata(category string, fields map[string]interface{}) {
	sampler, ok := s.sampler(category)
	if !ok {
		return
	}

	st := sampler.stats()
	if st.TotalMessages > 0 {
		fields["_sampling_total"] = st.TotalMessages
		fields["_sampling_logged"] = st.SampledMessages
		fields["_sampling_dropped"] = st.DroppedMessages
		fields["_sampling_rate"] = st.CurrentRate
	}
}

// Info logs an info message (no sampling for basic Info calls)
func (s *SampledLogger) Info(args ...interface{}) {
	s.base.Info(args...)
}

// InfoWithCategory logs an info message with sampling for the specified category
func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.InfoLevel, category, msg, tagCategory(fields, category))
}

// DebugWithCategory logs a debug message with sampling for the specified category
func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.DebugLevel, category, msg, tagCategory(fields, category))
}

// WarnWithCategory logs a warning message with sampling for the specified category
func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.WarnLevel, category, msg, tagCategory(fields, category))
}

// ErrorWithCategory logs an error message. Errors are never sampled.
func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	s.base.WithFields(tagCategory(fields, category)).Error(msg)
}

func tagCategory(fields map[string]interface{}, category string) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields["category"] = category
	return fields
}

// GetSamplerStats returns statistics for all samplers
func (s *SampledLogger) GetSamplerStats() map[string]SamplerStats {
	s.samplersMutex.RLock()
	defer s.samplersMutex.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sampler := range s.samplers {
		stats[name] = sampler.stats()
	}
	return stats
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name            string  `json:"name"`
	TotalMessages   int64   `json:"total_messages"`
	SampledMessages int64   `json:"sampled_messages"`
	DroppedMessages int64   `json:"dropped_messages"`
	CurrentRate     float64 `json:"current_rate"`
}

// Playback log categories
const (
	CategoryPacketDemux      = "packet_demux"
	CategoryFrameDecode      = "frame_decode"
	CategoryBufferManagement = "buffer_management"
	CategoryBackpressure     = "backpressure"
	CategorySeek             = "seek"
	CategoryStateChange      = "state_change"
	CategoryMetrics          = "metrics"
)

// NewPlaybackLogger creates a sampled logger tuned for the decode driver,
// which logs once per packet and per frame.
func NewPlaybackLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		// One line per demuxed packet: max 20/sec, burst 10, then 5% sampling
		WithSampler(CategoryPacketDemux, 50*time.Millisecond, 10, 0.05).
		// One line per decoded frame: max 10/sec, burst 5, then 10% sampling
		WithSampler(CategoryFrameDecode, 100*time.Millisecond, 5, 0.1).
		WithSampler(CategoryBufferManagement, 200*time.Millisecond, 3, 0.3).
		// Backpressure repeats every pump while the host is not popping
		WithSampler(CategoryBackpressure, 500*time.Millisecond, 3, 1.0).
		WithSampler(CategorySeek, 100*time.Millisecond, 5, 1.0).
		WithSampler(CategoryMetrics, 1*time.Second, 1, 1.0)
	// CategoryStateChange is not sampled
}

// Implement Logger interface for SampledLogger
func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{
		base:     s.base.WithFields(fields),
		samplers: s.samplers,
	}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{
		base:     s.base.WithField(key, value),
		samplers: s.samplers,
	}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{
		base:     s.base.WithError(err),
		samplers: s.samplers,
	}
}

func (s *SampledLogger) Debug(args ...interface{}) {
	s.base.Debug(args...)
}

func (s *SampledLogger) Warn(args ...interface{}) {
	s.base.Warn(args...)
}

func (s *SampledLogger) Error(args ...interface{}) {
	s.base.Error(args...)
}

func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) {
	s.base.Log(level, args...)
}

// Printf-style methods for backward compatibility
func (s *SampledLogger) Debugf(format string, args ...interface{}) {
	s.base.Debugf(format, args...)
}

func (s *SampledLogger) Infof(format string, args ...interface{}) {
	s.base.Infof(format, args...)
}

func (s *SampledLogger) Warnf(format string, args ...interface{}) {
	s.base.Warnf(format, args...)
}

func (s *SampledLogger) Errorf(format string, args ...interface{}) {
	s.base.Errorf(format, args...)
}

func (s *SampledLogger) Fatal(args ...interface{}) {
	s.base.Fatal(args...)
}
