// Package ratelimit provides per-client rate limiting for the portal.
//
// Portal customers are anonymous, so requests are keyed by client IP.
// The checkout submit endpoint gets its own, much tighter budget: every
// submit triggers a payment initiation (an STK push to a real phone),
// and those must not be hammerable.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures rate limiting
type Config struct {
	// RequestsPerMinute is the max requests per IP per minute
	RequestsPerMinute int
	// BurstSize allows brief bursts above the limit
	BurstSize int
	// SubmitsPerMinute bounds payment submissions per IP per minute
	SubmitsPerMinute int
	// CleanupInterval is how often to clean old entries
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults for a captive portal
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120, // plan browsing and status polling are chatty
		BurstSize:         20,
		SubmitsPerMinute:  5, // each submit pushes a payment prompt to a phone
		CleanupInterval:   time.Minute,
	}
}

// Limiter tracks token buckets by key
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// New creates a new rate limiter
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// cleanup removes stale entries periodically
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * time.Minute)
			for key, b := range l.buckets {
				if b.lastCheck.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow checks one request against a bucket refilling at ratePerMinute
// with the given burst capacity.
func (l *Limiter) allow(key string, ratePerMinute, burst int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{
			tokens:    float64(burst - 1),
			lastCheck: now,
		}
		return true
	}

	// Token bucket refill
	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens += elapsed * float64(ratePerMinute) / 60.0
	if b.tokens > float64(burst) {
		b.tokens = float64(burst)
	}
	b.lastCheck = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Allow checks a general request for the given client key.
func (l *Limiter) Allow(key string) bool {
	return l.allow(key, l.cfg.RequestsPerMinute, l.cfg.BurstSize)
}

// AllowSubmit checks a payment submission for the given client key.
func (l *Limiter) AllowSubmit(key string) bool {
	return l.allow("submit:"+key, l.cfg.SubmitsPerMinute, l.cfg.SubmitsPerMinute)
}

// Middleware returns a gin middleware that rate limits by client IP.
// Health and metrics probes are exempt so monitoring never trips it.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			c.Next()
			return
		}

		key := c.ClientIP()
		allowed := l.Allow(key)
		if allowed && isSubmit(path, c.Request.Method) {
			allowed = l.AllowSubmit(key)
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": 1,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func isSubmit(path, method string) bool {
	return method == http.MethodPost &&
		strings.HasPrefix(path, "/portal/checkout/") &&
		strings.HasSuffix(path, "/submit")
}
