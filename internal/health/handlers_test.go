package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChecker is a Checker that returns a fixed error.
type mockChecker struct {
	name string
	err  error
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) error { return m.err }

func TestNewHandler(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)
	handler := NewHandler(manager)

	assert.NotNil(t, handler)
	assert.Equal(t, manager, handler.manager)
	assert.NotZero(t, handler.startTime)
}

func TestHandleHealth(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)

	// Register a test checker
	manager.Register(&mockChecker{name: "test", err: nil})

	handler := NewHandler(manager)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	handler.HandleHealth(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))

	var response Response
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, response.Status)
	assert.NotZero(t, response.Timestamp)
	assert.NotEmpty(t, response.Version)
	assert.NotEmpty(t, response.Uptime)
	assert.Contains(t, response.Checks, "test")
}

func TestHandleHealthWithFailingChecker(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)

	// Register failing checker
	manager.Register(&mockChecker{name: "failing", err: assert.AnError})

	handler := NewHandler(manager)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	handler.HandleHealth(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var response Response
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, StatusDown, response.Status)
}

func TestHandleReady(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)

	// Register a healthy checker
	manager.Register(&mockChecker{name: "test", err: nil})
	manager.RunChecks(context.Background())

	handler := NewHandler(manager)

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	handler.HandleReady(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, response.Status)
	assert.NotZero(t, response.Timestamp)
}

func TestHandleLive(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)
	handler := NewHandler(manager)

	req := httptest.NewRequest("GET", "/live", nil)
	rr := httptest.NewRecorder()

	handler.HandleLive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "alive", response.Status)
	assert.NotZero(t, response.Timestamp)
}

func TestHandleHealthDegraded(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)
	manager.Register(&mockChecker{name: "sessions", err: Degraded(assert.AnError)})

	handler := NewHandler(manager)
	handler.startTime = time.Now().Add(-90 * time.Second)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	handler.HandleHealth(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, StatusDegraded, response.Status)
	assert.GreaterOrEqual(t, response.UptimeSeconds, int64(90))
	assert.Equal(t, StatusDegraded, response.Checks["sessions"].Status)
}

func TestHandleReadyDown(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)
	handler := NewHandler(manager)

	// No results yet
	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()

	handler.HandleReady(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 45*time.Second, "3h15m45s"},
		{"sub-second dropped", 5*time.Second + 750*time.Millisecond, "5s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}
