package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/medjobs/leadmarket/internal/logger"
)

type fakeExpirer struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (f *fakeExpirer) ExpireStale(context.Context, time.Time) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func TestListingExpirationWorker_SweepsUntilCancelled(t *testing.T) {
	expirer := &fakeExpirer{n: 2}
	var total atomic.Int64
	w := NewListingExpirationWorker(expirer, 10*time.Millisecond, nil, func(n int64) { total.Add(n) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, total.Load(), int64(6))
}

func TestListingExpirationWorker_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	expirer := &fakeExpirer{err: errors.New("db down")}
	w := NewListingExpirationWorker(expirer, time.Hour, logger.FromZap(zap.New(core)), nil)

	w.sweep(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("listing expiration sweep failed").Len())
}
