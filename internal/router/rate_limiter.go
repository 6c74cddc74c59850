package router

import (
	"sync"
	"time"
)

// RateLimiter counts inbound events per user in fixed one-minute windows.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientLimit
	now     func() time.Time
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter allows limit events per user per minute. A non-positive
// limit disables limiting.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  time.Minute,
		clients: make(map[string]*clientLimit),
		now:     time.Now,
	}
}

// Allow records one event for userID and reports whether it is within limit.
func (rl *RateLimiter) Allow(userID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.clients[userID]
	if !exists || now.Sub(limit.windowStart) >= rl.window {
		rl.clients[userID] = &clientLimit{count: 1, windowStart: now}
		return true
	}

	if limit.count >= rl.limit {
		return false
	}
	limit.count++
	return true
}

// Cleanup forgets users idle for five windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rl.window {
			delete(rl.clients, userID)
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
