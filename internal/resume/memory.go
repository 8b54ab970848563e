package resume

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zsiec/playcore/internal/errors"
)

// MemoryStore is an in-process Store used when Redis is disabled and in
// tests. Entries never expire.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]*Position
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]*Position)}
}

// Save records a copy of pos.
func (m *MemoryStore) Save(ctx context.Context, pos *Position) error {
	if err := validate(pos); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("resume store is closed")
	}

	pos.UpdatedAt = time.Now()
	m.positions[pos.MediaID] = copyPosition(pos)
	return nil
}

// Get returns a copy of the saved position.
func (m *MemoryStore) Get(ctx context.Context, mediaID string) (*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("resume store is closed")
	}

	pos, ok := m.positions[mediaID]
	if !ok {
		return nil, notFound(mediaID)
	}
	return copyPosition(pos), nil
}

// Delete forgets mediaID.
func (m *MemoryStore) Delete(ctx context.Context, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("resume store is closed")
	}

	if _, ok := m.positions[mediaID]; !ok {
		return notFound(mediaID)
	}
	delete(m.positions, mediaID)
	return nil
}

// Recent returns up to limit positions, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Position, error) {
	if limit <= 0 {
		return nil, errors.NewValidationError("limit must be positive")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("resume store is closed")
	}

	out := make([]*Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, copyPosition(pos))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].MediaID < out[j].MediaID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyPosition(p *Position) *Position {
	c := *p
	if p.DurationMS != nil {
		d := *p.DurationMS
		c.DurationMS = &d
	}
	return &c
}
