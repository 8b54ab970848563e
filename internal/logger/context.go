package logger

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	entryKey ctxKey = iota
	requestIDKey
	sessionIDKey
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// WithLogger stores entry as the request-scoped log entry.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryKey, entry)
}

// FromContext returns the request-scoped entry, or one on the standard
// logger when none was stored.
func FromContext(ctx context.Context) *logrus.Entry {
	return EntryFrom(ctx, logrus.StandardLogger())
}

// EntryFrom is FromContext with base as the fallback logger.
func EntryFrom(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	if e, ok := ctx.Value(entryKey).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(base)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSessionID records the playback session a request addresses. A
// request-scoped entry already in ctx gains a session_id field.
func WithSessionID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, id)
	if e, ok := ctx.Value(entryKey).(*logrus.Entry); ok {
		ctx = WithLogger(ctx, e.WithField("session_id", id))
	}
	return ctx
}

func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// RequestLoggerMiddleware attaches a request ID and a request-scoped entry
// to every request. A caller-supplied X-Request-ID is reused and echoed.
func RequestLoggerMiddleware(base *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)

			entry := base.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote_ip":  clientIP(r),
				"user_agent": r.UserAgent(),
			})
			ctx := WithRequestID(WithLogger(r.Context(), entry), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
