package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestTracingMiddlewarePropagatesTraceparent(t *testing.T) {
	var seen string
	h := NewTracingMiddleware(zap.NewNop()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen)
	assert.Equal(t, seen, rr.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, rr.Header().Get("X-Span-ID"))
}

func TestTracingMiddlewareGeneratesTraceID(t *testing.T) {
	var seen string
	h := NewTracingMiddleware(zap.NewNop()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, seen, 32)
	assert.Equal(t, seen, rr.Header().Get("X-Trace-ID"))
}

func TestTracingMiddlewareKeepsRequestID(t *testing.T) {
	h := NewTracingMiddleware(zap.NewNop()).Middleware(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "req-123", rr.Header().Get("X-Trace-ID"))
}

func send(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/citations/segments", nil)
	req.RemoteAddr = ip + ":5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiterRedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewRateLimiter(client, 2, nil, zap.NewNop())
	fixed := time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	h := rl.Middleware(okHandler)

	first := send(h, "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1").Code)

	blocked := send(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "30", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "Rate limit exceeded")

	// other clients have their own window
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.2").Code)

	// next window starts fresh
	fixed = fixed.Add(time.Minute)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1").Code)
}

func TestRateLimiterFallsBackWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	rl := NewRateLimiter(client, 1, nil, zap.NewNop())
	h := rl.Middleware(okHandler)

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.3").Code)
}

func TestRateLimiterLocalOnly(t *testing.T) {
	rl := NewRateLimiter(nil, 3, nil, zap.NewNop())
	h := rl.Middleware(okHandler)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, send(h, "10.0.0.4").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.4").Code)
}

func sendForwarded(h http.Handler, peer, forwarded string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/citations/segments", nil)
	req.RemoteAddr = peer + ":5555"
	req.Header.Set("X-Forwarded-For", forwarded)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(nil, 2, nil, zap.NewNop())
	h := rl.Middleware(okHandler)

	var allowed int
	for i := 0; i < 50; i++ {
		rr := sendForwarded(h, "198.51.100.9", fmt.Sprintf("203.0.113.%d", i))
		if rr.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
	assert.Equal(t, http.StatusTooManyRequests, sendForwarded(h, "198.51.100.9", "203.0.113.200").Code)
	assert.Len(t, rl.fallback, 1)
}

func TestRateLimiterHonorsTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	rl := NewRateLimiter(nil, 1, trusted, zap.NewNop())
	h := rl.Middleware(okHandler)

	assert.Equal(t, http.StatusOK, sendForwarded(h, "10.1.1.1", "203.0.113.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendForwarded(h, "10.1.1.1", "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, sendForwarded(h, "10.1.1.1", "203.0.113.2").Code)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(nil, 5, nil, zap.NewNop())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	h := rl.Middleware(okHandler)

	for i := 0; i < 10; i++ {
		send(h, fmt.Sprintf("192.0.2.%d", i))
	}
	require.Len(t, rl.fallback, 10)

	fixed = fixed.Add(2 * time.Minute)
	send(h, "192.0.2.100")
	assert.Len(t, rl.fallback, 1)
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)
	rl := NewRateLimiter(nil, 1, trusted, zap.NewNop())

	tests := []struct {
		name      string
		peer      string
		forwarded string
		want      string
	}{
		{"no header", "198.51.100.1:1234", "", "198.51.100.1"},
		{"untrusted peer ignores header", "198.51.100.1:1234", "203.0.113.7", "198.51.100.1"},
		{"trusted peer", "192.0.2.1:1234", "203.0.113.7", "203.0.113.7"},
		{"skips trusted hops", "10.0.0.2:1234", "203.0.113.7, 198.51.100.4, 10.0.0.1", "198.51.100.4"},
		{"all hops trusted", "10.0.0.2:1234", "10.0.0.5, 10.0.0.1", "10.0.0.5"},
		{"garbage hop", "10.0.0.2:1234", "not-an-ip", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.peer
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, rl.clientIP(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "", "::1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "127.0.0.1/32", prefixes[1].String())
	assert.Equal(t, "::1/128", prefixes[2].String())

	_, err = ParseTrustedProxies([]string{"10.0.0.0/40"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
}
