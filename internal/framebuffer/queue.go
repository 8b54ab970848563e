// Package framebuffer holds decoded frames between the decode driver and the
// host's presentation loop.
package framebuffer

import (
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// Queue is a bounded FIFO of decoded frames backed by a ring. It assumes a
// single writer and a single reader; callers sharing a Queue across
// goroutines serialize access themselves.
type Queue[T media.Frame] struct {
	name  string
	items []T
	head  int
	size  int

	metrics *queueMetrics
}

// NewQueue creates a queue that holds at most capacity frames. A capacity
// below one is raised to one.
func NewQueue[T media.Frame](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name:  name,
		items: make([]T, capacity),
	}
}

// Push appends frame at the tail. A full queue rejects the frame with a
// BUFFER_ERROR and is left unchanged; the caller must wait for the host to
// drain before pushing again.
func (q *Queue[T]) Push(frame T) error {
	if q.size == len(q.items) {
		q.metrics.rejected()
		return errors.NewBufferError("%s buffer is full", q.name).
			WithDetails(map[string]interface{}{"capacity": len(q.items)})
	}
	q.items[(q.head+q.size)%len(q.items)] = frame
	q.size++
	q.metrics.observe(q.size)
	return nil
}

// Pop removes and returns the head frame. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (frame T, ok bool) {
	if q.size == 0 {
		return frame, false
	}
	frame = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	q.metrics.observe(q.size)
	return frame, true
}

// Peek returns the head frame without removing it.
func (q *Queue[T]) Peek() (frame T, ok bool) {
	if q.size == 0 {
		return frame, false
	}
	return q.items[q.head], true
}

// FrontPTS returns the timestamp of the oldest queued frame.
func (q *Queue[T]) FrontPTS() (int64, bool) {
	f, ok := q.Peek()
	if !ok {
		return 0, false
	}
	return f.Timestamp(), true
}

// BackPTS returns the timestamp of the newest queued frame.
func (q *Queue[T]) BackPTS() (int64, bool) {
	if q.size == 0 {
		return 0, false
	}
	return q.items[(q.head+q.size-1)%len(q.items)].Timestamp(), true
}

// Clear drops every queued frame.
func (q *Queue[T]) Clear() {
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head = 0
	q.size = 0
	q.metrics.observe(0)
}

// Len returns the number of queued frames.
func (q *Queue[T]) Len() int { return q.size }

// Cap returns the configured capacity.
func (q *Queue[T]) Cap() int { return len(q.items) }

// IsFull reports whether the next Push would be rejected.
func (q *Queue[T]) IsFull() bool { return q.size == len(q.items) }

// IsEmpty reports whether the queue holds no frames.
func (q *Queue[T]) IsEmpty() bool { return q.size == 0 }

// Name returns the queue's label ("video" or "audio").
func (q *Queue[T]) Name() string { return q.name }
