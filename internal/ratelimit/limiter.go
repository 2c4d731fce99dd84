// Package ratelimit provides per-client rate limiting. Credential endpoints
// get a much tighter budget than browsing, which slows down online password
// guessing without hurting normal page loads.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tier selects which budget applies to a request.
type Tier int

const (
	// TierBrowse covers ordinary page and API traffic.
	TierBrowse Tier = iota
	// TierAuth covers login and signup form posts.
	TierAuth
)

// Config defines the rate limiting configuration.
type Config struct {
	BrowseRPS       float64       // Requests per second for ordinary traffic
	BrowseBurst     int           // Burst size for ordinary traffic
	AuthRPS         float64       // Requests per second for credential endpoints
	AuthBurst       int           // Burst size for credential endpoints
	CleanupInterval time.Duration // How often to clean up idle limiters
}

// DefaultConfig provides sensible defaults for rate limiting.
var DefaultConfig = Config{
	BrowseRPS:       20,
	BrowseBurst:     40,
	AuthRPS:         0.5, // one credential attempt every 2s sustained
	AuthBurst:       5,
	CleanupInterval: time.Hour,
}

// rateLimiterEntry holds a rate limiter and tracks its last usage.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter manages per-client rate limiting. Clients are identified by an
// opaque key, normally the remote IP.
type RateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.RWMutex
	config   Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup.
func NewRateLimiter(config Config) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given client is allowed under the
// given tier's budget.
func (rl *RateLimiter) Allow(clientKey string, tier Tier) bool {
	return rl.getLimiter(clientKey, tier).Allow()
}

// getLimiter returns the limiter for the client and tier, creating it if
// necessary. Tiers are tracked independently so a client exhausting the auth
// budget can still load pages.
func (rl *RateLimiter) getLimiter(clientKey string, tier Tier) *rate.Limiter {
	key := limiterKey(clientKey, tier)

	// Fast path: existing limiter under the read lock.
	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	if exists {
		entry.lastUsed = time.Now()
		rl.mu.RUnlock()
		return entry.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring the write lock.
	entry, exists = rl.limiters[key]
	if exists {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	rps := rl.config.BrowseRPS
	burst := rl.config.BrowseBurst
	if tier == TierAuth {
		rps = rl.config.AuthRPS
		burst = rl.config.AuthBurst
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	rl.limiters[key] = &rateLimiterEntry{
		limiter:  limiter,
		lastUsed: time.Now(),
	}

	return limiter
}

func limiterKey(clientKey string, tier Tier) string {
	if tier == TierAuth {
		return "auth:" + clientKey
	}
	return "browse:" + clientKey
}

// Cleanup removes rate limiters that have been idle for longer than the
// cleanup interval.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// cleanupLoop runs the periodic cleanup in the background.
func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of active rate limiters.
// This is primarily useful for testing and monitoring.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
