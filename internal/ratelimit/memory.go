package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter keeps windows in a process-local map.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, d time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		c.windows[key] = &window{count: 1, resetAt: now.Add(d)}
		return 1, nil
	}
	w.count++
	return w.count, nil
}

// RunCleanup drops expired windows every interval until ctx is done.
func (c *MemoryCounter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCounter) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}
