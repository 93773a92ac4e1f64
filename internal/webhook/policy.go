package webhook

import (
	"context"
	"time"
)

// RetryPolicy is the delivery schedule for one endpoint: an initial attempt
// followed by one retry per Backoff entry.
type RetryPolicy struct {
	Backoff        []time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff:        []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		AttemptTimeout: 10 * time.Second,
	}
}

func (p RetryPolicy) MaxAttempts() int {
	return len(p.Backoff) + 1
}

// Delay is the wait before attempt n (1-based). The first attempt has none.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || attempt-2 >= len(p.Backoff) {
		return 0
	}
	return p.Backoff[attempt-2]
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
