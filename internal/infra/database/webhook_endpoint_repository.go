package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medjobs/leadmarket/internal/entity"
)

type WebhookEndpointRepository struct {
	DB *sql.DB
}

func NewWebhookEndpointRepository(db *sql.DB) *WebhookEndpointRepository {
	return &WebhookEndpointRepository{DB: db}
}

func (r *WebhookEndpointRepository) Create(ctx context.Context, ep *entity.WebhookEndpoint) error {
	events := ep.Events
	if events == nil {
		events = []string{}
	}
	eventsParam, err := jsonParam(events)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO webhook_endpoints (id, url, secret, events, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ep.ID, ep.URL, ep.Secret, eventsParam, ep.Active, ep.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return nil
}

func (r *WebhookEndpointRepository) ListActive(ctx context.Context) ([]*entity.WebhookEndpoint, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, url, secret, events, active, created_at
		FROM webhook_endpoints
		WHERE active
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*entity.WebhookEndpoint
	for rows.Next() {
		var (
			ep     entity.WebhookEndpoint
			events []byte
		)
		if err := rows.Scan(&ep.ID, &ep.URL, &ep.Secret, &events, &ep.Active, &ep.CreatedAt); err != nil {
			return nil, err
		}
		if err := scanJSON(events, &ep.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		endpoints = append(endpoints, &ep)
	}
	return endpoints, rows.Err()
}
