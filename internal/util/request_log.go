package util

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseMeter counts what a handler wrote.
type responseMeter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.written += int64(n)
	return n, err
}

// Flush lets streamed resume downloads reach the client promptly.
func (m *responseMeter) Flush() {
	if f, ok := m.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (m *responseMeter) Unwrap() http.ResponseWriter { return m.ResponseWriter }

// quiet reports probes and preflights, which are logged at debug.
func quiet(r *http.Request) bool {
	return r.Method == http.MethodOptions || r.URL.Path == "/health" || r.URL.Path == "/metrics"
}

// WithRequestLog writes one "http_request" record per request through the
// context logger, so the request id set by WithRequestID is attached.
func WithRequestLog(service string, next http.Handler) http.Handler {
	if service = strings.TrimSpace(service); service == "" {
		service = "unknown"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		meter := &responseMeter{ResponseWriter: w}
		next.ServeHTTP(meter, r)

		status := meter.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if quiet(r) {
			level = slog.LevelDebug
		} else if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		LoggerFromContext(r.Context()).Log(r.Context(), level, "http_request",
			"service", service,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", meter.written,
			"duration_ms", time.Since(began).Milliseconds(),
			"session_id", strings.TrimSpace(r.Header.Get("X-Session-ID")),
			"user_agent", UserAgent(r),
		)
	})
}
