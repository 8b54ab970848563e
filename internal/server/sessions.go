package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/metrics"
	"github.com/zsiec/playcore/internal/player"
)

// session wraps one controller. The controller is single-owner, so every
// access goes through mu.
type session struct {
	mu       sync.Mutex
	id       string
	ctrl     *player.Controller
	mediaID  string
	created  time.Time
	lastUsed time.Time
	closed   bool
}

// SessionInfo is the externally visible summary of a session.
type SessionInfo struct {
	ID        string       `json:"id"`
	MediaID   string       `json:"mediaId,omitempty"`
	State     player.State `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
	LastUsed  time.Time    `json:"lastUsed"`
}

// info must be called with s.mu held.
func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:        s.id,
		MediaID:   s.mediaID,
		State:     s.ctrl.State(),
		CreatedAt: s.created,
		LastUsed:  s.lastUsed,
	}
}

// SessionManager owns the playback sessions of the HTTP host.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	max      int
	idle     time.Duration
	cfg      player.Config
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSessionManager creates a manager allowing max concurrent sessions
// (0 = unlimited). Sessions unused for idle are reaped; idle <= 0 disables
// reaping.
func NewSessionManager(cfg player.Config, max int, idle time.Duration, log *logrus.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*session),
		max:      max,
		idle:     idle,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Create opens a new session in Idle.
func (m *SessionManager) Create(mediaID string) (SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return SessionInfo{}, errors.New(errors.ErrorTypeRateLimit,
			fmt.Sprintf("session limit of %d reached", m.max), http.StatusTooManyRequests)
	}

	id := uuid.New().String()
	ctrl := player.New(
		player.WithID(id),
		player.WithConfig(m.cfg),
		player.WithLogger(logger.ForSession(m.logger, id)),
		player.WithMetrics(),
	)

	now := m.now()
	s := &session{id: id, ctrl: ctrl, mediaID: mediaID, created: now, lastUsed: now}
	m.sessions[id] = s
	metrics.SessionOpened()

	m.logger.WithFields(logrus.Fields{
		"session_id": id,
		"media_id":   mediaID,
	}).Info("Playback session created")
	return s.info(), nil
}

// Do runs fn with exclusive access to the session's controller.
func (m *SessionManager) Do(id string, fn func(s *session) error) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError("session " + id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.NewNotFoundError("session " + id)
	}
	s.lastUsed = m.now()
	return fn(s)
}

// Get returns the summary of one session.
func (m *SessionManager) Get(id string) (SessionInfo, error) {
	var info SessionInfo
	err := m.Do(id, func(s *session) error {
		info = s.info()
		return nil
	})
	return info, err
}

// List returns every session, oldest first.
func (m *SessionManager) List() []SessionInfo {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		if !s.closed {
			out = append(out, s.info())
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete closes and removes a session.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("session " + id)
	}

	m.close(s, false)
	m.logger.WithField("session_id", id).Info("Playback session deleted")
	return nil
}

// Count returns the active session count and the limit.
func (m *SessionManager) Count() (active, limit int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), m.max
}

// Reap closes sessions idle for longer than the idle timeout and returns
// how many were removed.
func (m *SessionManager) Reap() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	type reaped struct {
		s        *session
		lastUsed time.Time
	}

	m.mu.Lock()
	var stale []reaped
	for id, s := range m.sessions {
		// TryLock skips sessions that are mid-request
		if !s.mu.TryLock() {
			continue
		}
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, reaped{s: s, lastUsed: s.lastUsed})
			delete(m.sessions, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, r := range stale {
		m.close(r.s, true)
		m.logger.WithFields(logrus.Fields{
			"session_id": r.s.id,
			"idle_for":   m.now().Sub(r.lastUsed).String(),
		}).Info("Reaped idle playback session")
	}
	return len(stale)
}

// StartReaper runs Reap every interval until ctx is done.
func (m *SessionManager) StartReaper(ctx context.Context, interval time.Duration) {
	metrics.IncrementGoroutineCreated("session_reaper")
	defer metrics.IncrementGoroutineDestroyed("session_reaper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Reap()
		case <-ctx.Done():
			m.logger.Debug("Stopping session reaper")
			return
		}
	}
}

// CloseAll closes every session. Used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range all {
		m.close(s, false)
	}
}

func (m *SessionManager) close(s *session, reaped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ctrl.Close()
	metrics.SessionClosed(reaped)
}
