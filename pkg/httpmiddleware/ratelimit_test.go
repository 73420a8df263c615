package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// hit sends one request through the throttled handler from addr, optionally
// carrying an API key, and returns the recorder.
func hit(h http.Handler, addr, apiKey string, hdrs ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}
	for i := 0; i+1 < len(hdrs); i += 2 {
		req.Header.Set(hdrs[i], hdrs[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(handler, "192.168.1.1:12345", "")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:9999", "").Code)
	}

	w := hit(handler, "10.0.0.1:9999", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234", "").Code)

	// First IP is out of budget; the port does not matter.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:5678", "").Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Tenant")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", "", "X-Tenant", "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "1.1.1.1:1", "", "X-Tenant", "a").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", "", "X-Tenant", "b").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	chain := "203.0.113.50, 70.41.3.18"
	w := hit(handler, "192.168.1.1:4444", "", "X-Forwarded-For", chain)
	assert.Equal(t, http.StatusOK, w.Code)

	// Same originating client through a different proxy hop is still the
	// same key.
	w = hit(handler, "192.168.1.2:5555", "", "X-Forwarded-For", chain)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_PerAPIKey(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	// Two traders behind the same warehouse NAT, distinct keys: independent
	// budgets.
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.9:1111", "trader-a").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.9:2222", "trader-b").Code)

	// Same key again is limited regardless of address.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.10:3333", "trader-a").Code)
}

func TestRateLimit_WindowRotation(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.allow("k", base)
	require.True(t, ok)
	_, _, ok = l.allow("k", base.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.allow("k", base.Add(2*time.Second))
	require.False(t, ok)

	// Two full windows later the budget is fresh again.
	_, _, ok = l.allow("k", base.Add(2*time.Minute))
	assert.True(t, ok)
}

func TestRateLimit_EvictStale(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.allow("gone", base)
	l.allow("fresh", base.Add(90*time.Second))

	l.evictStale(base.Add(2 * time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.counters, "gone")
	assert.Contains(t, l.counters, "fresh")
}
