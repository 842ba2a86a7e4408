// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/threadwarden/internal/log"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	limited := RateLimit(RateLimitConfig{RequestLimit: 3, WindowSize: time.Second})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	limited.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("4th request: expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header in rate limit response")
	}
	if !strings.Contains(w.Body.String(), "rate_limit_exceeded") {
		t.Errorf("unexpected body %q", w.Body.String())
	}

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1"
	w = httptest.NewRecorder()
	limited.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client: expected status 200, got %d", w.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body["requestId"])
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Len(t, seen, 36, "oversized client IDs are replaced with a UUID")
}

func TestApplyStack(t *testing.T) {
	r := NewRouter(StackConfig{EnableMetrics: true, EnableLogging: true, RateLimitPerMinute: 1})
	r.Get("/", okHandler().ServeHTTP)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestShouldTrace(t *testing.T) {
	for path, want := range map[string]bool{
		"/":         false,
		"/healthz":  false,
		"/metrics":  false,
		"/internal": true,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, shouldTrace(req), path)
	}
	assert.Equal(t, "HTTP GET /x", spanName("", httptest.NewRequest(http.MethodGet, "/x?token=1", nil)))
}
