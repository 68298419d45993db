package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// InMemoryRateLimiter caps requests per key within a sliding window. The
// public checkout and webhook endpoints are unauthenticated, so they get a
// per-IP ceiling.
type InMemoryRateLimiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	l := &InMemoryRateLimiter{
		seen:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go l.sweep()
	return l
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *InMemoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	recent := prune(l.seen[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.seen[key] = recent
		return false
	}
	l.seen[key] = append(recent, now)
	return true
}

// sweep drops keys that have gone quiet so the map does not grow with every
// IP ever seen.
func (l *InMemoryRateLimiter) sweep() {
	for range time.Tick(time.Minute) {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for key, hits := range l.seen {
			if recent := prune(hits, cutoff); len(recent) == 0 {
				delete(l.seen, key)
			} else {
				l.seen[key] = recent
			}
		}
		l.mu.Unlock()
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	var recent []time.Time
	for _, t := range hits {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

// RateLimit returns a middleware that limits by client IP.
func RateLimit(limiter *InMemoryRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
