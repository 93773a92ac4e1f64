package webhook

import (
	"context"
	"errors"
	"sync"

	"github.com/medjobs/leadmarket/internal/logger"
)

var ErrQueueFull = errors.New("webhook queue is full")

// Handler consumes a task. Dispatcher.Deliver satisfies it through DeliverFunc.
type Handler func(ctx context.Context, task Task)

// InProcessQueue is a bounded channel drained by a fixed set of goroutines.
// Tasks still buffered when the process exits are lost; use the RabbitMQ
// queue when deliveries must survive restarts.
type InProcessQueue struct {
	tasks   chan Task
	workers int
	handler Handler
	logger  logger.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewInProcessQueue(capacity, workers int, handler Handler, log logger.Logger) *InProcessQueue {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &InProcessQueue{
		tasks:   make(chan Task, capacity),
		workers: workers,
		handler: handler,
		logger:  log,
	}
}

// Enqueue never blocks the caller; a full buffer drops the task.
func (q *InProcessQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("webhook queue is closed")
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. They stop once ctx is done or Stop drains the queue.
func (q *InProcessQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-q.tasks:
					if !ok {
						return
					}
					q.handler(ctx, task)
				}
			}
		}()
	}
	q.logger.Info("webhook workers started", logger.Int("workers", q.workers))
}

// Stop closes the queue and waits for in-flight deliveries.
func (q *InProcessQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

// DeliverFunc adapts the dispatcher to a queue Handler.
func (d *Dispatcher) DeliverFunc() Handler {
	return func(ctx context.Context, task Task) {
		d.Deliver(ctx, task)
	}
}
