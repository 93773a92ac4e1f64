package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
)

type CompletePurchaseUseCase struct {
	Purchases entity.PurchaseRepositoryInterface
	Leads     entity.LeadRepositoryInterface
	Gateway   PaymentGateway
	Events    EventPublisher
	Logger    logger.Logger
	Now       func() time.Time
}

func NewCompletePurchaseUseCase(
	purchases entity.PurchaseRepositoryInterface,
	leads entity.LeadRepositoryInterface,
	gateway PaymentGateway,
	events EventPublisher,
	log logger.Logger,
) *CompletePurchaseUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &CompletePurchaseUseCase{
		Purchases: purchases,
		Leads:     leads,
		Gateway:   gateway,
		Events:    events,
		Logger:    log,
		Now:       time.Now,
	}
}

// Execute grants access once the gateway reports the intent as succeeded.
// Calling it again on a completed purchase returns the same result without
// touching the gateway.
func (uc *CompletePurchaseUseCase) Execute(ctx context.Context, input CompletePurchaseInput) (*CompletePurchaseOutput, error) {
	if strings.TrimSpace(input.PurchaseID) == "" {
		return nil, validationError("validation failed: purchaseId (is required)")
	}
	if !validID(input.PurchaseID) {
		return nil, notFound("purchase not found")
	}

	purchase, err := uc.load(ctx, input)
	if err != nil {
		return nil, err
	}

	switch purchase.PaymentStatus {
	case entity.PaymentStatusCompleted:
		return uc.granted(ctx, purchase)
	case entity.PaymentStatusFailed:
		return nil, paymentRequired("payment failed")
	}

	intent, err := uc.Gateway.GetIntent(ctx, purchase.PaymentIntentID)
	if err != nil {
		uc.Logger.Error("payment status lookup failed",
			logger.String("purchase_id", purchase.ID), logger.Error(err))
		return nil, internal("failed to verify payment", err)
	}

	switch intent.Status {
	case entity.IntentStatusSucceeded:
	case entity.IntentStatusCanceled:
		if _, err := uc.Purchases.MarkFailed(ctx, purchase.ID); err != nil {
			return nil, internal("failed to update purchase", err)
		}
		return nil, paymentRequired("payment failed")
	default:
		return nil, paymentRequired("payment not completed")
	}

	now := uc.Now()
	transitioned, err := uc.Purchases.MarkCompleted(ctx, purchase.ID, now)
	if err != nil {
		return nil, internal("failed to complete purchase", err)
	}

	if !transitioned {
		// Another request got there first.
		purchase, err = uc.load(ctx, input)
		if err != nil {
			return nil, err
		}
		if purchase.PaymentStatus != entity.PaymentStatusCompleted {
			return nil, paymentRequired("payment not completed")
		}
		return uc.granted(ctx, purchase)
	}

	purchase.PaymentStatus = entity.PaymentStatusCompleted
	purchase.AccessGranted = true
	purchase.CompletedAt = &now
	purchase.UpdatedAt = now

	uc.Logger.Info("purchase completed",
		logger.String("purchase_id", purchase.ID),
		logger.String("lead_id", purchase.LeadID),
		logger.Int64("amount", purchase.Price))
	uc.Events.Publish(ctx, entity.EventPurchaseCompleted, purchase)

	return uc.granted(ctx, purchase)
}

func (uc *CompletePurchaseUseCase) load(ctx context.Context, input CompletePurchaseInput) (*entity.Purchase, error) {
	purchase, err := uc.Purchases.FindByID(ctx, input.PurchaseID)
	if err != nil {
		if errors.Is(err, entity.ErrPurchaseNotFound) {
			return nil, notFound("purchase not found")
		}
		return nil, internal("failed to load purchase", err)
	}
	// Someone else's purchase reads as missing.
	if purchase.BuyerID != input.BuyerID {
		return nil, notFound("purchase not found")
	}
	return purchase, nil
}

func (uc *CompletePurchaseUseCase) granted(ctx context.Context, purchase *entity.Purchase) (*CompletePurchaseOutput, error) {
	lead, err := uc.Leads.FindByID(ctx, purchase.LeadID)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, notFound("lead not found")
		}
		return nil, internal("failed to load lead", err)
	}

	date := purchase.UpdatedAt
	if purchase.CompletedAt != nil {
		date = *purchase.CompletedAt
	}
	return &CompletePurchaseOutput{Success: true, Lead: lead, PurchaseDate: date}, nil
}
