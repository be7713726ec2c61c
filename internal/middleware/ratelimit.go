// Package middleware provides cross-cutting HTTP middleware for the
// S3-compatible API server: rate limiting and request tracing.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cobaltfs/objectstore/internal/auth"
	"github.com/cobaltfs/objectstore/internal/metrics"
)

// RateLimiterConfig configures the per-client token bucket limiter.
type RateLimiterConfig struct {
	// Enabled determines if rate limiting is active.
	Enabled bool

	// RequestsPerSecond is the sustained rate of token refill per client.
	RequestsPerSecond float64

	// BurstSize is the maximum number of tokens a client can accumulate.
	BurstSize int

	// CleanupInterval is how often stale per-client limiters are evicted.
	CleanupInterval time.Duration
}

// clientLimiter pairs a token bucket with the time it was last used, so
// idle clients can be evicted without bound growth of the limiter map.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client request rate using a token bucket
// per access key (falling back to remote IP for anonymous requests).
type RateLimiter struct {
	cfg RateLimiterConfig
	m   *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh chan struct{}
	logger zerolog.Logger
}

// NewRateLimiter creates a RateLimiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig, m *metrics.Metrics, logger zerolog.Logger) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		cfg:      cfg,
		m:        m,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
		logger:   logger.With().Str("component", "rate_limiter").Logger(),
	}

	go rl.cleanupLoop()
	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictStale() {
	cutoff := time.Now().Add(-2 * rl.cfg.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) allow(clientKey string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[clientKey]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize),
		}
		rl.limiters[clientKey] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Middleware returns an http.Handler wrapper enforcing the rate limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil || !rl.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := clientIdentity(r)

		if !rl.allow(clientKey) {
			rl.m.RecordRateLimited("rate_limited")
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>SlowDown</Code><Message>Please reduce your request rate.</Message></Error>`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIdentity picks the authenticated access key when present, else
// the connection's remote IP, as the rate-limiting bucket key.
func clientIdentity(r *http.Request) string {
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil && authCtx.AccessKeyID != "" {
		return "key:" + authCtx.AccessKeyID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
