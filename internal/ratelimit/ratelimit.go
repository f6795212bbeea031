// Package ratelimit limits requests per client IP with a fixed one-minute
// window counted in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
)

const (
	keyPrefix = "flightticketing:ratelimit:ip:"
	window    = time.Minute
)

// Counter increments the hit count for key and returns the new value. The
// count resets once the window elapses.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter with INCR and EXPIRE in one pipeline
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter creates a counter over rdb
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count request: %w", err)
	}
	return incr.Val(), nil
}

// Limiter rejects clients exceeding limit requests per minute
type Limiter struct {
	counter Counter
	limit   int
	proxies []netip.Prefix
	log     *logger.Logger
	now     func() time.Time
}

// New creates a limiter. A nil counter or a non-positive limit disables it.
// X-Forwarded-For is only read on requests arriving from trustedProxies.
func New(counter Counter, limit int, log *logger.Logger, trustedProxies ...netip.Prefix) *Limiter {
	return &Limiter{counter: counter, limit: limit, proxies: trustedProxies, log: log, now: time.Now}
}

// Middleware wraps next with the limit. Counter failures let the request
// through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.counter == nil || l.limit <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.clientIP(r)
		bucket := l.now().Truncate(window).Unix()
		key := keyPrefix + ip + ":" + strconv.FormatInt(bucket, 10)

		count, err := l.counter.Incr(r.Context(), key, window)
		if err != nil {
			l.log.WarnContext(r.Context(), "rate limiter unavailable", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.limit) {
			retry := time.Unix(bucket, 0).Add(window).Sub(l.now())
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","message":"rate limit exceeded"}`))
			l.log.LogRateLimitExceeded(r.Context(), ip, r.URL.Path)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address, or the rightmost X-Forwarded-For hop that is
// not a trusted proxy when the peer itself is one
func (l *Limiter) clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !l.trusted(ip) {
		return ip
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.trusted(hop) {
			return hop
		}
		ip = hop
	}
	return ip
}

func (l *Limiter) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
