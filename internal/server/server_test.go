package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/resume"
)

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
		MaxUploadBytes:  1 << 20,
		MaxSessions:     4,
		SessionIdle:     time.Minute,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestServer returns a server with routes installed and an in-memory
// resume store.
func newTestServer(t *testing.T, cfg *config.ServerConfig) (*Server, *resume.MemoryStore) {
	t.Helper()
	store := resume.NewMemoryStore()
	s := New(cfg, player.DefaultConfig(), testLogger(), store)
	s.setupRoutes()
	t.Cleanup(s.sessions.CloseAll)
	return s, store
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	logger := testLogger()

	server := New(cfg, player.DefaultConfig(), logger, nil)

	assert.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.NotNil(t, server.router)
	assert.NotNil(t, server.healthMgr)
	assert.NotNil(t, server.errorHandler)
	assert.NotNil(t, server.Sessions())
	assert.Nil(t, server.limiter)
	assert.Nil(t, server.store)
}

func TestNew_RateLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 5
	cfg.RateBurst = 2

	server := New(cfg, player.DefaultConfig(), testLogger(), nil)
	require.NotNil(t, server.limiter)
	assert.Equal(t, 2, server.limiter.burst)
}

func TestGetRouter(t *testing.T) {
	server := New(testConfig(), player.DefaultConfig(), testLogger(), nil)
	router := server.GetRouter()

	assert.NotNil(t, router)
	assert.IsType(t, &mux.Router{}, router)
}

func TestSetupRoutes(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"ready before checks", "GET", "/ready", http.StatusServiceUnavailable},
		{"health", "GET", "/health", http.StatusOK},
		{"ready after checks", "GET", "/ready", http.StatusOK},
		{"live", "GET", "/live", http.StatusOK},
		{"version", "GET", "/version", http.StatusOK},
		{"list sessions", "GET", "/api/v1/sessions", http.StatusOK},
		{"unknown path", "GET", "/nope", http.StatusNotFound},
		{"wrong method", "PUT", "/api/v1/sessions", http.StatusMethodNotAllowed},
		{"preflight", "OPTIONS", "/api/v1/sessions/x/load", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(s, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestSetupRoutes_Idempotent(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	s.setupRoutes()

	rr := doRequest(s, "GET", "/live", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRegisterRoutes(t *testing.T) {
	s := New(testConfig(), player.DefaultConfig(), testLogger(), nil)
	s.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/extra", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}).Methods("GET")
	})
	s.setupRoutes()
	t.Cleanup(s.sessions.CloseAll)

	rr := doRequest(s, "GET", "/extra", nil)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestHealthIncludesBuiltinCheckers(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rr := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status string                     `json:"status"`
		Checks map[string]json.RawMessage `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, body.Checks, "decoders")
	assert.Contains(t, body.Checks, "sessions")
}

func TestStartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPPort = 0

	s := New(cfg, player.DefaultConfig(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_HTTP3MissingCert(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPPort = 0
	cfg.HTTP3 = config.HTTP3Config{
		Enabled:     true,
		Port:        0,
		TLSCertFile: "does-not-exist.pem",
		TLSKeyFile:  "does-not-exist.key",
	}

	s := New(cfg, player.DefaultConfig(), testLogger(), nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS certificates")
}

func TestReapInterval(t *testing.T) {
	assert.Equal(t, time.Second, reapInterval(2*time.Second))
	assert.Equal(t, 15*time.Second, reapInterval(time.Minute))
	assert.Equal(t, time.Minute, reapInterval(time.Hour))
}
