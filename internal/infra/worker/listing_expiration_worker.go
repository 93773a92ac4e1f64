package worker

import (
	"context"
	"time"

	"github.com/medjobs/leadmarket/internal/logger"
)

// ListingExpirer flips expired listings to unavailable and reports how many changed.
type ListingExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// OnExpired observes the number of listings closed by one sweep.
type OnExpired func(n int64)

type ListingExpirationWorker struct {
	listings     ListingExpirer
	tickInterval time.Duration
	logger       logger.Logger
	now          func() time.Time
	onExpired    OnExpired
}

func NewListingExpirationWorker(listings ListingExpirer, interval time.Duration, log logger.Logger, onExpired OnExpired) *ListingExpirationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ListingExpirationWorker{
		listings:     listings,
		tickInterval: interval,
		logger:       log,
		now:          time.Now,
		onExpired:    onExpired,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *ListingExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("listing expiration worker started", logger.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("listing expiration worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ListingExpirationWorker) sweep(ctx context.Context) {
	n, err := w.listings.ExpireStale(ctx, w.now())
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("listing expiration sweep failed", logger.Error(err))
		}
		return
	}
	if n > 0 {
		w.logger.Info("listings expired", logger.Int64("count", n))
	}
	if w.onExpired != nil {
		w.onExpired(n)
	}
}
