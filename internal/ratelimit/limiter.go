// Package ratelimit gates intake with a fixed-window counter per source identity.
//
// The counter is injected so a multi-instance deployment can share it through
// Redis; MemoryCounter is only correct for a single process.
package ratelimit

import (
	"context"
	"time"

	"github.com/medjobs/leadmarket/internal/logger"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 15 * time.Minute
)

// Counter atomically increments the hit count for key inside the current
// window and returns the new count. The first hit of a window starts it.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	logger  logger.Logger
}

func NewLimiter(counter Counter, limit int, window time.Duration, log logger.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Limiter{counter: counter, limit: int64(limit), window: window, logger: log}
}

// Allow admits the request when the identity is within its quota. A counter
// failure fails open so a Redis outage does not block all intake.
func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	count, err := l.counter.Incr(ctx, "ratelimit:intake:"+identity, l.window)
	if err != nil {
		l.logger.Error("rate limit counter failed, admitting request",
			logger.String("identity", identity), logger.Error(err))
		return true
	}
	return count <= l.limit
}
