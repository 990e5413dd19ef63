// Package security provides the per-sender rate limiting used by the bot
// handlers and the admin API.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Guard allows at most burst events per key within interval, refilling
// continuously. Keys are arbitrary caller identities (user ids, remote
// addresses).
type Guard struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewGuard returns a guard permitting burst events per interval per key.
// Non-positive inputs fall back to a permissive default of 5 per 10s.
func NewGuard(interval time.Duration, burst int) *Guard {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if burst <= 0 {
		burst = 5
	}
	return &Guard{
		limit:   rate.Limit(float64(burst) / interval.Seconds()),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether an event for key may proceed now.
func (g *Guard) Allow(key string) bool {
	g.mu.Lock()
	limiter, ok := g.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.burst)
		g.buckets[key] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}
