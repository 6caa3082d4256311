// Package ratelimit provides rate limiting middleware for the TrackRate API.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config tunes the per-client token bucket.
type Config struct {
	// RequestsPerMinute is the sustained refill rate per client.
	RequestsPerMinute int
	// BurstSize is the bucket capacity: how far a client may run ahead
	// of the sustained rate.
	BurstSize int
	// CleanupInterval is how often idle client buckets are dropped.
	CleanupInterval time.Duration
}

// DefaultConfig matches normal worker traffic: the play loop, profile
// polling and the websocket handshake fit well under two requests a
// second with room for page-load bursts.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
	}
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter applies a token bucket per client key.
type Limiter struct {
	cfg          Config
	refillPerSec float64

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

// New starts a limiter and its idle-bucket sweeper.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:          cfg,
		refillPerSec: float64(cfg.RequestsPerMinute) / 60.0,
		buckets:      make(map[string]*bucket),
		stop:         make(chan struct{}),
	}
	go l.runSweeper()
	return l
}

// Stop ends the sweeper goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

func (l *Limiter) runSweeper() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now().Add(-2 * l.cfg.CleanupInterval))
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets idle since before the cutoff.
func (l *Limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Allow reports whether the client key may make a request now, spending
// one token if so. New clients start with a full bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.cfg.BurstSize) - 1, last: now}
		return true
	}

	b.tokens += now.Sub(b.last).Seconds() * l.refillPerSec
	if full := float64(l.cfg.BurstSize); b.tokens > full {
		b.tokens = full
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// clientKey buckets authenticated traffic by token so workers behind one
// NAT do not starve each other; anonymous traffic buckets by IP.
func clientKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if len(auth) > 24 {
			auth = auth[:24]
		}
		return "auth:" + auth
	}
	return c.ClientIP()
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(clientKey(c)) {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Please slow down.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
