package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/ghostwatch/internal/common"
)

// logCapture collects raw log output so tests can check level filtering.
type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) output() string {
	return c.buf.String()
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		status    int
		wantEntry bool
	}{
		// 4xx logs at info, so it is filtered at warn
		{"4xx filtered at warn", "warn", http.StatusNotFound, false},
		{"4xx visible at info", "info", http.StatusNotFound, true},
		{"5xx visible at warn", "warn", http.StatusInternalServerError, true},
		// 2xx logs at trace
		{"2xx filtered at info", "info", http.StatusOK, false},
		{"2xx visible at trace", "trace", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &logCapture{}
			logger := common.NewLoggerWithOutput(tt.level, capture)

			handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantEntry, strings.Contains(capture.output(), "HTTP request"), capture.output())
		})
	}
}

func TestLoggingMiddleware_RecordsBytesAndCorrelation(t *testing.T) {
	capture := &logCapture{}
	logger := common.NewLoggerWithOutput("trace", capture)

	handler := correlationIDMiddleware(loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := capture.output()
	assert.Contains(t, out, `"bytes":5`)
	assert.Contains(t, out, `"correlation_id":"req-42"`)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("uses X-Request-ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Request-ID", "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "abc", rr.Header().Get("X-Correlation-ID"))
	})

	t.Run("falls back to X-Correlation-ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Correlation-ID", "def")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "def", rr.Header().Get("X-Correlation-ID"))
	})

	t.Run("generates one", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Len(t, rr.Header().Get("X-Correlation-ID"), 8)
	})
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/limits/x", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, called, "preflight must not reach the handler")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	capture := &logCapture{}
	logger := common.NewLoggerWithOutput("error", capture)

	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rr := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(rr, req) })

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, capture.output(), "kaboom")
}

func TestResponseWriter_Flush(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	var w http.ResponseWriter = rw
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	flusher.Flush()
	assert.True(t, rr.Flushed)
}
