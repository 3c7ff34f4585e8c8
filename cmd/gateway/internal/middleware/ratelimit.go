package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/epion-news/epion/internal/metrics"
)

// RateLimiter limits requests per client address. Counts live in Redis in
// one-minute windows so all gateway replicas share them; when Redis is
// unavailable an in-process token bucket per client takes over.
//
// X-Forwarded-For is only read when the connecting peer is a trusted proxy.
type RateLimiter struct {
	redis             *redis.Client
	logger            *zap.Logger
	requestsPerMinute int
	trustedProxies    []netip.Prefix
	now               func() time.Time

	mu        sync.Mutex
	fallback  map[string]*localLimiter
	lastSweep time.Time
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. redis may be nil, and so may
// trustedProxies, in which case forwarding headers are ignored.
func NewRateLimiter(redis *redis.Client, requestsPerMinute int, trustedProxies []netip.Prefix, logger *zap.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		redis:             redis,
		logger:            logger,
		requestsPerMinute: requestsPerMinute,
		trustedProxies:    trustedProxies,
		now:               time.Now,
		fallback:          make(map[string]*localLimiter),
	}
}

// ParseTrustedProxies parses proxy addresses given as CIDR prefixes or
// single IPs.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Middleware returns the HTTP middleware function
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := rl.clientIP(r)
		allowed, remaining, resetAt := rl.checkRateLimit(r.Context(), client)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

		if !allowed {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.RateLimited.WithLabelValues(route).Inc()
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", client),
				zap.String("path", r.URL.Path),
				zap.String("trace_id", TraceID(r.Context())),
			)

			retry := resetAt.Unix() - rl.now().Unix()
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			rl.sendRateLimitError(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, client string) (allowed bool, remaining int, resetAt time.Time) {
	now := rl.now()
	window := now.Truncate(time.Minute)
	resetAt = window.Add(time.Minute)

	if rl.redis == nil {
		allowed, remaining = rl.checkLocal(client, now)
		return allowed, remaining, resetAt
	}

	windowKey := fmt.Sprintf("epion:ratelimit:%s:%d", client, window.Unix())
	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, time.Minute+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn("Rate limit check failed, using local limiter", zap.Error(err))
		allowed, remaining = rl.checkLocal(client, now)
		return allowed, remaining, resetAt
	}

	count := incr.Val()
	remaining = rl.requestsPerMinute - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(rl.requestsPerMinute), remaining, resetAt
}

func (rl *RateLimiter) checkLocal(client string, now time.Time) (bool, int) {
	rl.mu.Lock()
	rl.sweepLocked(now)
	entry, ok := rl.fallback[client]
	if !ok {
		entry = &localLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.requestsPerMinute)), rl.requestsPerMinute),
		}
		rl.fallback[client] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	allowed := entry.limiter.AllowN(now, 1)
	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// sweepLocked drops buckets idle for a full window. Such a bucket has
// refilled completely, so a fresh one is equivalent.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < time.Minute {
		return
	}
	rl.lastSweep = now
	for client, entry := range rl.fallback {
		if now.Sub(entry.lastSeen) >= time.Minute {
			delete(rl.fallback, client)
		}
	}
}

func (rl *RateLimiter) sendRateLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "Rate limit exceeded",
		"message": "Too many requests. Please retry after the rate limit window resets.",
	})
}

// clientIP returns the peer address, or when the peer is a trusted proxy,
// the nearest untrusted hop in X-Forwarded-For.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !rl.trusted(addr) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		hopAddr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		client = hopAddr.Unmap().String()
		if !rl.trusted(hopAddr) {
			break
		}
	}
	return client
}

func (rl *RateLimiter) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range rl.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
