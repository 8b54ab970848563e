package logger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFromContext_Fallback(t *testing.T) {
	e := FromContext(context.Background())
	require.NotNil(t, e)
	assert.Same(t, logrus.StandardLogger(), e.Logger)
}

func TestEntryFrom(t *testing.T) {
	base := quietLogger()
	assert.Same(t, base, EntryFrom(context.Background(), base).Logger)

	stored := quietLogger().WithField("request_id", "r-1")
	assert.Same(t, stored, EntryFrom(WithLogger(context.Background(), stored), base))
}

func TestWithSessionID(t *testing.T) {
	assert.Empty(t, GetSessionID(context.Background()))

	// Without a stored entry only the ID is recorded
	ctx := WithSessionID(context.Background(), "s-1")
	assert.Equal(t, "s-1", GetSessionID(ctx))
	assert.NotContains(t, FromContext(ctx).Data, "session_id")

	base := quietLogger().WithField("request_id", "r-1")
	ctx = WithSessionID(WithLogger(context.Background(), base), "s-2")
	assert.Equal(t, "s-2", GetSessionID(ctx))
	assert.Equal(t, "s-2", FromContext(ctx).Data["session_id"])
	assert.Equal(t, "r-1", FromContext(ctx).Data["request_id"])
	assert.NotContains(t, base.Data, "session_id")
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var entry *logrus.Entry
	var requestID string
	h := RequestLoggerMiddleware(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry = FromContext(r.Context())
		requestID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("POST", "/api/v1/sessions/s-1/pump", nil)
	req.Header.Set("User-Agent", "playctl")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.NotNil(t, entry)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, requestID, entry.Data["request_id"])
	assert.Equal(t, "POST", entry.Data["method"])
	assert.Equal(t, "/api/v1/sessions/s-1/pump", entry.Data["path"])
	assert.Equal(t, "203.0.113.7", entry.Data["remote_ip"])
	assert.Equal(t, "playctl", entry.Data["user_agent"])

	// A caller-supplied ID is reused
	req = httptest.NewRequest("GET", "/api/v1/sessions", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "client-id", requestID)
	assert.Equal(t, "client-id", rr.Header().Get(RequestIDHeader))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"forwarded wins", map[string]string{"X-Forwarded-For": "203.0.113.9", "X-Real-IP": "198.51.100.4"}, "203.0.113.9"},
		{"peer address", nil, "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
