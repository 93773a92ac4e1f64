// Package webhook signs and delivers lead lifecycle events to subscriber endpoints.
//
// Publishing only builds one Task per subscribed endpoint and hands it to a
// TaskQueue; the bounded retry loop runs on the consumer side, away from the
// request that triggered the event.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
)

// Task is one delivery to one endpoint. The body is signed before enqueueing
// so endpoint secrets never travel through the queue.
type Task struct {
	DeliveryID string `json:"delivery_id"`
	EndpointID string `json:"endpoint_id"`
	URL        string `json:"url"`
	Event      string `json:"event"`
	Body       []byte `json:"body"`
	Signature  string `json:"signature,omitempty"`
}

type Result struct {
	Success    bool
	Attempts   int
	StatusCode int
	Err        error
}

// TaskQueue accepts tasks for asynchronous delivery.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}

type EndpointLister interface {
	ListActive(ctx context.Context) ([]*entity.WebhookEndpoint, error)
}

type Dispatcher struct {
	endpoints EndpointLister
	queue     TaskQueue
	client    *http.Client
	policy    RetryPolicy
	logger    logger.Logger
	sleep     sleepFunc
	now       func() time.Time

	// OnResult, when set, observes every finished delivery.
	OnResult func(task Task, result Result)
}

func NewDispatcher(endpoints EndpointLister, queue TaskQueue, policy RetryPolicy, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		endpoints: endpoints,
		queue:     queue,
		client:    &http.Client{},
		policy:    policy,
		logger:    log,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// SetQueue wires the queue after construction; the in-process queue needs the
// dispatcher as its handler, so the two are built in two steps.
func (d *Dispatcher) SetQueue(q TaskQueue) {
	d.queue = q
}

// Publish fans event out to every active endpoint subscribed to it. Failures
// are logged per endpoint and never returned to the caller.
func (d *Dispatcher) Publish(ctx context.Context, event string, data any) {
	endpoints, err := d.endpoints.ListActive(ctx)
	if err != nil {
		d.logger.Error("webhook endpoints lookup failed",
			logger.String("event", event), logger.Error(err))
		return
	}

	var body []byte
	for _, ep := range endpoints {
		if !ep.Subscribes(event) {
			continue
		}
		if body == nil {
			body, err = NewEnvelope(event, data, d.now()).Marshal()
			if err != nil {
				d.logger.Error("webhook payload marshal failed",
					logger.String("event", event), logger.Error(err))
				return
			}
		}

		task := NewTask(ep, event, body)
		if err := d.queue.Enqueue(ctx, task); err != nil {
			d.logger.Error("webhook enqueue failed",
				logger.String("event", event),
				logger.String("endpoint_id", ep.ID),
				logger.Error(err))
		}
	}
}

func NewTask(ep *entity.WebhookEndpoint, event string, body []byte) Task {
	task := Task{
		DeliveryID: uuid.New().String(),
		EndpointID: ep.ID,
		URL:        ep.URL,
		Event:      event,
		Body:       body,
	}
	if ep.Secret != "" {
		task.Signature = Sign(ep.Secret, body)
	}
	return task
}

// Deliver POSTs the task, retrying on transport errors, timeouts and non-2xx
// responses according to the policy. It gives up after MaxAttempts.
func (d *Dispatcher) Deliver(ctx context.Context, task Task) Result {
	var res Result
	log := d.logger.With(
		logger.String("delivery_id", task.DeliveryID),
		logger.String("endpoint_id", task.EndpointID),
		logger.String("event", task.Event))

	for attempt := 1; attempt <= d.policy.MaxAttempts(); attempt++ {
		if err := d.sleep(ctx, d.policy.Delay(attempt)); err != nil {
			res.Err = fmt.Errorf("delivery cancelled: %w", err)
			break
		}

		res.Attempts = attempt
		res.StatusCode, res.Err = d.attempt(ctx, task)
		if res.Err == nil {
			res.Success = true
			log.Info("webhook delivered", logger.Int("attempts", attempt))
			break
		}

		log.Warn("webhook attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("status_code", res.StatusCode),
			logger.Error(res.Err))
	}

	if !res.Success {
		log.Error("webhook delivery gave up",
			logger.Int("attempts", res.Attempts), logger.Error(res.Err))
	}
	if d.OnResult != nil {
		d.OnResult(task, res)
	}
	return res
}

func (d *Dispatcher) attempt(ctx context.Context, task Task) (int, error) {
	if d.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.policy.AttemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.URL, bytes.NewReader(task.Body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LeadMarket-Webhooks/1.0")
	req.Header.Set(HeaderEvent, task.Event)
	req.Header.Set(HeaderDelivery, task.DeliveryID)
	if task.Signature != "" {
		req.Header.Set(HeaderSignature, task.Signature)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errNonSuccess(resp.StatusCode)
	}
	return resp.StatusCode, nil
}

var ErrNonSuccessStatus = errors.New("endpoint returned non-success status")

func errNonSuccess(code int) error {
	return fmt.Errorf("%w: %d", ErrNonSuccessStatus, code)
}
