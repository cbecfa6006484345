package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter caps requests per key over a fixed window. Used on the auth
// endpoints so OTP and login attempts cannot be brute forced.
type RateLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	limit  int
	window time.Duration
}

type windowCount struct {
	start time.Time
	n     int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	r := &RateLimiter{
		counts: make(map[string]*windowCount),
		limit:  limit,
		window: window,
	}
	go r.sweep()
	return r
}

func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	wc := r.counts[key]
	if wc == nil || now.Sub(wc.start) >= r.window {
		r.counts[key] = &windowCount{start: now, n: 1}
		return true
	}
	if wc.n >= r.limit {
		return false
	}
	wc.n++
	return true
}

func (r *RateLimiter) sweep() {
	tick := time.NewTicker(time.Minute)
	for range tick.C {
		r.mu.Lock()
		now := time.Now()
		for k, wc := range r.counts {
			if now.Sub(wc.start) >= r.window {
				delete(r.counts, k)
			}
		}
		r.mu.Unlock()
	}
}

// RateLimitByIP limits unauthenticated requests by client IP.
func RateLimitByIP(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RateLimitByUser limits authenticated requests per user id, falling back to
// the client IP before AuthRequired has run.
func RateLimitByUser(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := GetUserID(c); id != 0 {
			key = "u:" + strconv.FormatUint(uint64(id), 10)
		}
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
