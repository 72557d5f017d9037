package webserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a sliding-window counter keyed by caller. Research runs
// fan out to external fetches, so submission is throttled per client.
type RateLimiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	rate   int
	window time.Duration
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:   make(map[string][]time.Time),
		rate:   rate,
		window: window,
	}

	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup()
		}
	}()

	return rl
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.seen[key][:0]
	for _, t := range rl.seen[key] {
		if now.Sub(t) < rl.window {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.rate {
		rl.seen[key] = recent
		return false
	}
	rl.seen[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, times := range rl.seen {
		recent := times[:0]
		for _, t := range times {
			if now.Sub(t) < rl.window {
				recent = append(recent, t)
			}
		}
		if len(recent) == 0 {
			delete(rl.seen, key)
		} else {
			rl.seen[key] = recent
		}
	}
}

func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("subject")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"err": fmt.Sprintf("rate limit exceeded: %d runs per %v", limiter.rate, limiter.window),
			})
			return
		}
		c.Next()
	}
}
