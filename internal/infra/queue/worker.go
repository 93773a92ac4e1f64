package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/webhook"
)

// Consumer is the part of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Deliverer runs the retry loop for one task. *webhook.Dispatcher implements it.
type Deliverer interface {
	Deliver(ctx context.Context, task webhook.Task) webhook.Result
}

// Worker consumes webhook tasks with manual acks. A task that still fails
// after the dispatcher's retries, or that cannot be decoded, is nacked without
// requeue and dead-lettered.
type Worker struct {
	Channel     Consumer
	Dispatcher  Deliverer
	Logger      logger.Logger
	Concurrency int

	wg sync.WaitGroup
}

func NewWorker(ch Consumer, dispatcher Deliverer, concurrency int, log logger.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		Channel:     ch,
		Dispatcher:  dispatcher,
		Logger:      log,
		Concurrency: concurrency,
	}
}

// Start registers the consumer and returns; deliveries are handled until ctx
// is done or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for i := 0; i < w.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					w.handle(ctx, d)
				}
			}
		}()
	}

	w.Logger.Info("webhook consumer started",
		logger.String("queue", queueName),
		logger.Int("concurrency", w.Concurrency))
	return nil
}

// Wait blocks until every consumer goroutine has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var task webhook.Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		w.Logger.Error("webhook task malformed", logger.String("message_id", d.MessageId), logger.Error(err))
		_ = d.Nack(false, false)
		return
	}

	res := w.Dispatcher.Deliver(ctx, task)
	if res.Success {
		_ = d.Ack(false)
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-retry: hand the task back for the next consumer.
		_ = d.Nack(false, true)
		return
	}
	_ = d.Nack(false, false)
}
