package framebuffer

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

func video(pts int64) *media.VideoFrame {
	return &media.VideoFrame{Width: 2, Height: 2, PTS: pts, Data: make([]byte, 6)}
}

func audio(pts int64) *media.AudioFrame {
	return &media.AudioFrame{Channels: 2, SampleRate: 48000, PTS: pts}
}

func TestQueue_FIFO(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pts      []int64
	}{
		{"ascending", 8, []int64{0, 33, 66, 100}},
		{"out of order timestamps kept in push order", 8, []int64{100, 0, 66, 33}},
		{"exactly full", 3, []int64{5, 1, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue[*media.VideoFrame]("video", tt.capacity)
			for _, pts := range tt.pts {
				require.NoError(t, q.Push(video(pts)))
			}

			for _, want := range tt.pts {
				f, ok := q.Pop()
				require.True(t, ok)
				assert.Equal(t, want, f.PTS)
			}

			_, ok := q.Pop()
			assert.False(t, ok)
		})
	}
}

func TestQueue_FIFOAcrossWraparound(t *testing.T) {
	q := NewQueue[*media.AudioFrame]("audio", 3)
	var next, expect int64

	for round := 0; round < 10; round++ {
		for !q.IsFull() {
			require.NoError(t, q.Push(audio(next)))
			next++
		}
		f, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, expect, f.PTS)
		expect++
	}
}

func TestQueue_Capacity(t *testing.T) {
	q := NewQueue[*media.VideoFrame]("video", 4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(video(int64(i))))
	}
	assert.True(t, q.IsFull())

	err := q.Push(video(99))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBuffer))
	assert.Contains(t, err.Error(), "video buffer is full")

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, 4, q.Cap())
	back, ok := q.BackPTS()
	require.True(t, ok)
	assert.Equal(t, int64(3), back, "rejected frame must not be stored")

	_, _ = q.Pop()
	assert.NoError(t, q.Push(video(99)))
}

func TestQueue_PeekAndTimestamps(t *testing.T) {
	q := NewQueue[*media.VideoFrame]("video", 4)

	_, ok := q.Peek()
	assert.False(t, ok)
	_, ok = q.FrontPTS()
	assert.False(t, ok)
	_, ok = q.BackPTS()
	assert.False(t, ok)

	require.NoError(t, q.Push(video(10)))
	require.NoError(t, q.Push(video(20)))
	require.NoError(t, q.Push(video(30)))

	f, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(10), f.PTS)
	assert.Equal(t, 3, q.Len(), "peek must not consume")

	front, _ := q.FrontPTS()
	back, _ := q.BackPTS()
	assert.Equal(t, int64(10), front)
	assert.Equal(t, int64(30), back)
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue[*media.VideoFrame]("video", 2)
	require.NoError(t, q.Push(video(1)))
	require.NoError(t, q.Push(video(2)))

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 2, q.Cap())

	require.NoError(t, q.Push(video(3)))
	f, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(3), f.PTS)
}

func TestQueue_MinimumCapacity(t *testing.T) {
	q := NewQueue[*media.VideoFrame]("video", 0)
	assert.Equal(t, 1, q.Cap())
}

func TestManager_Defaults(t *testing.T) {
	m := NewManager(Config{})
	stats := m.Stats()
	assert.Equal(t, Stats{VideoCapacity: 30, AudioCapacity: 50}, stats)
	assert.Equal(t, `{"videoFrames":0,"videoCapacity":30,"audioFrames":0,"audioCapacity":50}`, stats.String())
}

func TestManager_IndependentQueues(t *testing.T) {
	m := NewManager(Config{VideoCapacity: 1, AudioCapacity: 2})

	require.NoError(t, m.PushVideo(video(0)))
	assert.Error(t, m.PushVideo(video(33)))
	require.NoError(t, m.PushAudio(audio(0)))
	require.NoError(t, m.PushAudio(audio(20)))

	assert.Equal(t, Stats{VideoFrames: 1, VideoCapacity: 1, AudioFrames: 2, AudioCapacity: 2}, m.Stats())
	assert.Equal(t, 3, m.TotalFrames())

	v, a := m.BufferedMS()
	assert.Equal(t, int64(0), v)
	assert.Equal(t, int64(20), a)

	f, ok := m.PeekAudio()
	require.True(t, ok)
	assert.Equal(t, int64(0), f.PTS)

	m.Clear()
	assert.True(t, m.IsEmpty())
	assert.Equal(t, Stats{VideoCapacity: 1, AudioCapacity: 2}, m.Stats())
}

func TestManager_Metrics(t *testing.T) {
	m := NewManager(Config{VideoCapacity: 1, AudioCapacity: 1})
	m.Instrument("metrics-test")
	defer m.Release()

	require.NoError(t, m.PushVideo(video(0)))
	require.Error(t, m.PushVideo(video(1)))

	var metric dto.Metric
	require.NoError(t, queueDepth.WithLabelValues("metrics-test", "video").Write(&metric))
	assert.Equal(t, 1.0, metric.GetGauge().GetValue())

	metric.Reset()
	require.NoError(t, queueRejectedTotal.WithLabelValues("metrics-test", "video").Write(&metric))
	assert.Equal(t, 1.0, metric.GetCounter().GetValue())

	_, _ = m.PopVideo()
	metric.Reset()
	require.NoError(t, queueDepth.WithLabelValues("metrics-test", "video").Write(&metric))
	assert.Equal(t, 0.0, metric.GetGauge().GetValue())
}
