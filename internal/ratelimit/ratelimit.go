// Package ratelimit implements fixed-window counters keyed by string.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Limiter counts attempts per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
	Close()
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RetryAfter is the time left until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	if rem := left % time.Second; rem != 0 {
		left += time.Second - rem
	}
	return left
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]windowState
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type windowState struct {
	count   int
	resetAt time.Time
}

// NewMemory returns a process-local limiter. Counters are lost on restart.
func NewMemory() Limiter {
	return newMemory(time.Now, true)
}

func newMemory(now func() time.Time, sweep bool) *memoryLimiter {
	rl := &memoryLimiter{
		entries: make(map[string]windowState),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	if sweep {
		go rl.sweepLoop()
	}
	return rl
}

func (rl *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || !now.Before(state.resetAt) {
		state = windowState{count: 1, resetAt: now.Add(window)}
		rl.entries[key] = state
		return Decision{Allowed: true, Count: state.count, ResetAt: state.resetAt}
	}
	if state.count >= limit {
		return Decision{Allowed: false, Count: state.count, ResetAt: state.resetAt}
	}
	state.count++
	rl.entries[key] = state
	return Decision{Allowed: true, Count: state.count, ResetAt: state.resetAt}
}

func (rl *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if !now.Before(state.resetAt) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}
