package framebuffer

import (
	"encoding/json"

	"github.com/zsiec/playcore/internal/media"
)

const (
	// DefaultVideoCapacity holds roughly one second of 30fps video.
	DefaultVideoCapacity = 30
	// DefaultAudioCapacity holds roughly one second of 20ms audio frames.
	DefaultAudioCapacity = 50
)

// Config sets the per-queue capacities. Zero values fall back to the defaults.
type Config struct {
	VideoCapacity int `mapstructure:"video_capacity"`
	AudioCapacity int `mapstructure:"audio_capacity"`
}

// Stats is a point-in-time view of both queues.
type Stats struct {
	VideoFrames   int `json:"videoFrames"`
	VideoCapacity int `json:"videoCapacity"`
	AudioFrames   int `json:"audioFrames"`
	AudioCapacity int `json:"audioCapacity"`
}

// String renders the snapshot as JSON.
func (s Stats) String() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Manager owns one video and one audio queue with independent capacities.
type Manager struct {
	video *Queue[*media.VideoFrame]
	audio *Queue[*media.AudioFrame]
}

// NewManager creates a manager with the given capacities.
func NewManager(cfg Config) *Manager {
	if cfg.VideoCapacity <= 0 {
		cfg.VideoCapacity = DefaultVideoCapacity
	}
	if cfg.AudioCapacity <= 0 {
		cfg.AudioCapacity = DefaultAudioCapacity
	}
	return &Manager{
		video: NewQueue[*media.VideoFrame]("video", cfg.VideoCapacity),
		audio: NewQueue[*media.AudioFrame]("audio", cfg.AudioCapacity),
	}
}

// Instrument exports occupancy and rejection counts labelled with owner.
func (m *Manager) Instrument(owner string) {
	m.video.metrics = newQueueMetrics(owner, "video", m.video.Cap())
	m.audio.metrics = newQueueMetrics(owner, "audio", m.audio.Cap())
	m.video.metrics.observe(m.video.Len())
	m.audio.metrics.observe(m.audio.Len())
}

// Release removes the manager's metric series.
func (m *Manager) Release() {
	m.video.metrics.release()
	m.audio.metrics.release()
	m.video.metrics = nil
	m.audio.metrics = nil
}

// Video returns the video queue.
func (m *Manager) Video() *Queue[*media.VideoFrame] { return m.video }

// Audio returns the audio queue.
func (m *Manager) Audio() *Queue[*media.AudioFrame] { return m.audio }

// PushVideo appends a video frame; see Queue.Push.
func (m *Manager) PushVideo(f *media.VideoFrame) error { return m.video.Push(f) }

// PushAudio appends an audio frame; see Queue.Push.
func (m *Manager) PushAudio(f *media.AudioFrame) error { return m.audio.Push(f) }

// PopVideo removes the oldest video frame.
func (m *Manager) PopVideo() (*media.VideoFrame, bool) { return m.video.Pop() }

// PopAudio removes the oldest audio frame.
func (m *Manager) PopAudio() (*media.AudioFrame, bool) { return m.audio.Pop() }

// PeekVideo returns the oldest video frame without removing it.
func (m *Manager) PeekVideo() (*media.VideoFrame, bool) { return m.video.Peek() }

// PeekAudio returns the oldest audio frame without removing it.
func (m *Manager) PeekAudio() (*media.AudioFrame, bool) { return m.audio.Peek() }

// Clear drops everything in both queues.
func (m *Manager) Clear() {
	m.video.Clear()
	m.audio.Clear()
}

// Stats returns the current occupancy.
func (m *Manager) Stats() Stats {
	return Stats{
		VideoFrames:   m.video.Len(),
		VideoCapacity: m.video.Cap(),
		AudioFrames:   m.audio.Len(),
		AudioCapacity: m.audio.Cap(),
	}
}

// TotalFrames returns the number of frames held across both queues.
func (m *Manager) TotalFrames() int {
	return m.video.Len() + m.audio.Len()
}

// IsEmpty reports whether both queues are empty.
func (m *Manager) IsEmpty() bool {
	return m.video.IsEmpty() && m.audio.IsEmpty()
}

// BufferedMS returns the timestamp span covered by each queue.
func (m *Manager) BufferedMS() (video, audio int64) {
	return span(m.video), span(m.audio)
}

func span[T media.Frame](q *Queue[T]) int64 {
	front, ok := q.FrontPTS()
	if !ok {
		return 0
	}
	back, _ := q.BackPTS()
	if back < front {
		return 0
	}
	return back - front
}
