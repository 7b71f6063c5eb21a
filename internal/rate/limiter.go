// Package rate throttles login attempts with a fixed-window counter, either
// in process memory or shared across replicas through Redis.
package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter is the interface the token handler throttles through.
type Limiter interface {
	// Allow reports whether the key may proceed. Implementations that can
	// fail (Redis) fail open and report the error for logging.
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a per-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*entry
}

type entry struct {
	count int
	reset time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		entries: map[string]*entry{},
	}
}

func (l *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.reset) {
		l.entries[key] = &entry{count: 1, reset: now.Add(l.window)}
		return true, nil
	}
	if e.count >= l.limit {
		return false, nil
	}
	e.count++
	return true, nil
}
