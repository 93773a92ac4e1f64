package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medjobs/leadmarket/internal/webhook"
)

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Producer puts webhook tasks on the broker. It satisfies webhook.TaskQueue.
type Producer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *Producer {
	return &Producer{Ch: ch}
}

func (p *Producer) Enqueue(ctx context.Context, task webhook.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode webhook task: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.DeliveryID,
			Type:         task.Event,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish webhook task: %w", err)
	}
	return nil
}
