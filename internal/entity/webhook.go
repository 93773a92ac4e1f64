package entity

import (
	"context"
	"time"
)

const (
	EventLeadCreated       = "lead.created"
	EventLeadMerged        = "lead.merged"
	EventLeadScored        = "lead.scored"
	EventLeadStatusChanged = "lead.status_changed"
	EventListingCreated    = "listing.created"
	EventPurchaseCompleted = "purchase.completed"
)

var KnownEvents = []string{
	EventLeadCreated,
	EventLeadMerged,
	EventLeadScored,
	EventLeadStatusChanged,
	EventListingCreated,
	EventPurchaseCompleted,
}

// WebhookEndpoint is a subscriber. An empty Events list subscribes to everything.
type WebhookEndpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *WebhookEndpoint) Subscribes(event string) bool {
	if !e.Active {
		return false
	}
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == event {
			return true
		}
	}
	return false
}

type WebhookEndpointRepositoryInterface interface {
	Create(ctx context.Context, endpoint *WebhookEndpoint) error
	ListActive(ctx context.Context) ([]*WebhookEndpoint, error)
}
