package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterSweepEvery is how often stale per-IP buckets are pruned.
	limiterSweepEvery = 5 * time.Minute

	// limiterIdleExpiry is how long an IP must be quiet before its bucket
	// is dropped. Long enough that a dropped-and-recreated bucket starts
	// with a full burst only after it would have refilled anyway.
	limiterIdleExpiry = 10 * time.Minute
)

// rateLimiter hands out one token bucket per client IP. Buckets for quiet
// IPs are swept opportunistically from the request path, so no background
// goroutine is needed.
type rateLimiter struct {
	mu        sync.Mutex
	perIP     map[string]*ipBucket
	refill    rate.Limit
	burst     int
	nextSweep time.Time
}

type ipBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a limiter refilling perSecond tokens up to burst.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		perIP:     make(map[string]*ipBucket),
		refill:    rate.Limit(perSecond),
		burst:     burst,
		nextSweep: time.Now().Add(limiterSweepEvery),
	}
}

// allow takes one token from ip's bucket, creating the bucket on first
// sight with a full burst.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweep(now)
		rl.nextSweep = now.Add(limiterSweepEvery)
	}

	b := rl.perIP[ip]
	if b == nil {
		b = &ipBucket{bucket: rate.NewLimiter(rl.refill, rl.burst)}
		rl.perIP[ip] = b
	}
	b.lastSeen = now
	return b.bucket.Allow()
}

// sweep drops buckets idle past limiterIdleExpiry. Callers hold rl.mu.
func (rl *rateLimiter) sweep(now time.Time) {
	for ip, b := range rl.perIP {
		if now.Sub(b.lastSeen) > limiterIdleExpiry {
			delete(rl.perIP, ip)
		}
	}
}

// rateLimitMiddleware rejects requests whose client IP has exhausted its
// token bucket, with a Retry-After hint matching the refill rate.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request.
//
// When trustProxy is true, checks X-Real-IP first, then X-Forwarded-For
// (first IP). Header values are validated with net.ParseIP to prevent
// injection of non-IP strings into rate limiter keys. When trustProxy is
// false, only RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
