package main

import (
	"context"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/infra/http/middleware"
	"github.com/medjobs/leadmarket/internal/usecase"
)

// meteredGateway counts payment gateway failures.
type meteredGateway struct {
	usecase.PaymentGateway
}

func (g meteredGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*entity.PaymentIntent, error) {
	pi, err := g.PaymentGateway.CreateIntent(ctx, amount, currency, metadata)
	if err != nil {
		middleware.RecordIntegrationError("stripe")
	}
	return pi, err
}

func (g meteredGateway) GetIntent(ctx context.Context, id string) (*entity.PaymentIntent, error) {
	pi, err := g.PaymentGateway.GetIntent(ctx, id)
	if err != nil {
		middleware.RecordIntegrationError("stripe")
	}
	return pi, err
}

func (g meteredGateway) CancelIntent(ctx context.Context, id string) error {
	err := g.PaymentGateway.CancelIntent(ctx, id)
	if err != nil {
		middleware.RecordIntegrationError("stripe")
	}
	return err
}
