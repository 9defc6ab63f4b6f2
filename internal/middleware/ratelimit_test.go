package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func request(remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	// A vanishingly small refill rate keeps the test independent of timing.
	limiter := NewRateLimiter(0.001, 3, discardLogger())
	h := limiter.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, request("10.0.0.1:5555"))
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, request("10.0.0.1:6666"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "ports must not split one client")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"error":"rate_limited"`)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1, discardLogger())

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiter_Refills(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, discardLogger())
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiter(1, 1, discardLogger())
	limiter.now = func() time.Time { return now }

	limiter.Allow("idle")
	now = now.Add(idleTTL + time.Minute)
	limiter.Allow("active")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "idle")
	assert.Contains(t, limiter.visitors, "active")
}
