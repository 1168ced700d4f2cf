package middleware

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimitEntry records request count for a single client
type rateLimitEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimitInfo contains rate limit status information
type RateLimitInfo struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter 按客户端 IP 的每分钟请求数限制器
// 与每日用量配额相互独立：这里防突发滥用，配额管每日总量
type RateLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*rateLimitEntry
	window   time.Duration
	maxReqs  int
	enabled  bool
	stopChan chan struct{}
}

// NewRateLimiter creates a rate limiter with the given RPM limit
func NewRateLimiter(enabled bool, requestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		entries:  make(map[string]*rateLimitEntry),
		window:   time.Minute, // Fixed 1-minute window for RPM
		maxReqs:  requestsPerMinute,
		enabled:  enabled,
		stopChan: make(chan struct{}),
	}

	go rl.cleanup()
	return rl
}

// UpdateConfig updates the rate limiter configuration dynamically
func (rl *RateLimiter) UpdateConfig(enabled bool, requestsPerMinute int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.maxReqs = requestsPerMinute
	rl.enabled = enabled
	log.Printf("🔄 Rate limiter config updated: enabled=%v, rpm=%d", enabled, requestsPerMinute)
}

// cleanup periodically removes expired rate limit entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.After(entry.windowEnd) {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop stops the rate limiter
func (rl *RateLimiter) Stop() {
	close(rl.stopChan)
}

// Check checks whether a request is allowed and returns detailed info
func (rl *RateLimiter) Check(clientKey string) RateLimitInfo {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.enabled || rl.maxReqs <= 0 {
		return RateLimitInfo{Allowed: true, Limit: 0, Remaining: 0}
	}

	now := time.Now()
	entry, exists := rl.entries[clientKey]

	if !exists || now.After(entry.windowEnd) {
		windowEnd := now.Add(rl.window)
		rl.entries[clientKey] = &rateLimitEntry{
			count:     1,
			windowEnd: windowEnd,
		}
		return RateLimitInfo{
			Allowed:   true,
			Limit:     rl.maxReqs,
			Remaining: rl.maxReqs - 1,
			ResetAt:   windowEnd,
		}
	}

	if entry.count >= rl.maxReqs {
		return RateLimitInfo{
			Allowed:   false,
			Limit:     rl.maxReqs,
			Remaining: 0,
			ResetAt:   entry.windowEnd,
		}
	}

	entry.count++
	return RateLimitInfo{
		Allowed:   true,
		Limit:     rl.maxReqs,
		Remaining: rl.maxReqs - entry.count,
		ResetAt:   entry.windowEnd,
	}
}

// Allow checks if a request is allowed
func (rl *RateLimiter) Allow(clientKey string) bool {
	return rl.Check(clientKey).Allowed
}

// APIRateLimitMiddleware creates a rate limit middleware for /api/* endpoints
// Adds rate limit headers (RFC 6585 style)
func APIRateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		clientKey := "ip:" + c.ClientIP()
		info := rl.Check(clientKey)

		if info.Limit > 0 {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))
		}

		if !info.Allowed {
			log.Printf("🚫 [Rate Limit] Client %s exceeded request limit", clientKey)
			c.Header("Retry-After", fmt.Sprintf("%d", int(time.Until(info.ResetAt).Seconds())+1))
			c.JSON(429, gin.H{
				"ok":    false,
				"error": "Too Many Requests. Request rate limit exceeded, please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
