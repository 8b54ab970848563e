package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/playcore/internal/logger"
)

func newCapturingHandler() (*ErrorHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return NewErrorHandler(l), &buf
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestHandleError_StatusAndLevel(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   ErrorType
		level  string
	}{
		{"unknown session", NewNotFoundError("session s-1"), http.StatusNotFound, ErrorTypeNotFound, "info"},
		{"short container", NewInvalidFormatError("data too short: 4 bytes"), http.StatusUnsupportedMediaType, ErrorTypeInvalidFormat, "warning"},
		{"play from idle", fmt.Errorf("play: %w", NewInvalidStateError("cannot play from Idle")), http.StatusConflict, ErrorTypeInvalidState, "warning"},
		{"broken sample table", NewDemuxError("stsz truncated"), StatusFor(ErrorTypeDemux), ErrorTypeDemux, "warning"},
		{"bare error", errors.New("decoder crashed"), http.StatusInternalServerError, ErrorTypeInternal, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, buf := newCapturingHandler()
			req := httptest.NewRequest("POST", "/api/v1/sessions/s-1/pump", nil)
			req.Header.Set(logger.RequestIDHeader, "req-7")
			rr := httptest.NewRecorder()

			h.HandleError(rr, req, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			resp := decodeResponse(t, rr)
			assert.Equal(t, tt.kind, resp.Error.Type)
			assert.NotEmpty(t, resp.Error.Message)
			assert.Equal(t, "req-7", resp.TraceID)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, string(tt.kind), entry["error_type"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestHandleError_HidesInternalText(t *testing.T) {
	h, _ := newCapturingHandler()
	rr := httptest.NewRecorder()
	h.HandleError(rr, httptest.NewRequest("GET", "/", nil), errors.New("open /var/media/secret.mkv"))

	resp := decodeResponse(t, rr)
	assert.NotContains(t, resp.Error.Message, "secret.mkv")
}

func TestHandleError_RequestScopedEntry(t *testing.T) {
	h, fallback := newCapturingHandler()

	var buf bytes.Buffer
	reqLog := logrus.New()
	reqLog.SetOutput(&buf)
	reqLog.SetFormatter(&logrus.JSONFormatter{})

	req := httptest.NewRequest("POST", "/api/v1/sessions/s-3/seek", nil)
	ctx := logger.WithLogger(req.Context(), reqLog.WithField("request_id", "req-9"))
	req = req.WithContext(logger.WithSessionID(ctx, "s-3"))
	rr := httptest.NewRecorder()

	h.HandleError(rr, req, NewInvalidStateError("cannot seek from Idle"))

	assert.Zero(t, fallback.Len())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "s-3", entry["session_id"])
	assert.Equal(t, "s-3", decodeResponse(t, rr).SessionID)
}

func TestHandleNotFoundAndMethod(t *testing.T) {
	h, _ := newCapturingHandler()

	rr := httptest.NewRecorder()
	h.HandleNotFound(rr, httptest.NewRequest("GET", "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Error.Message, "endpoint")

	rr = httptest.NewRecorder()
	h.HandleMethodNotAllowed(rr, httptest.NewRequest("PUT", "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, ErrorTypeValidation, decodeResponse(t, rr).Error.Type)
}

func TestMiddleware_RecoversPanic(t *testing.T) {
	h, buf := newCapturingHandler()
	protected := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil frame")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		protected.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/sessions/s-1/video", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, ErrorTypeInternal, decodeResponse(t, rr).Error.Type)
	assert.Contains(t, buf.String(), "nil frame")

	// Handlers that return normally pass through
	rr = httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
