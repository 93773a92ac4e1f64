package usecase

import (
	"context"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/spam"
)

type RateLimiter interface {
	Allow(ctx context.Context, identity string) bool
}

type SpamClassifier interface {
	Classify(s spam.Submission) spam.Result
}

// EventPublisher hands lifecycle events to the webhook dispatcher. It never
// fails the caller; delivery problems are logged on the dispatcher side.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data any)
}

type HotLeadNotifier interface {
	NotifyHotLead(lead *entity.Lead) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*entity.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*entity.PaymentIntent, error)
	CancelIntent(ctx context.Context, id string) error
}
