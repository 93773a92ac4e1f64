package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
)

type PurchaseLeadUseCase struct {
	Listings  entity.ListingRepositoryInterface
	Purchases entity.PurchaseRepositoryInterface
	Gateway   PaymentGateway
	Currency  string
	Logger    logger.Logger
	Now       func() time.Time
}

func NewPurchaseLeadUseCase(
	listings entity.ListingRepositoryInterface,
	purchases entity.PurchaseRepositoryInterface,
	gateway PaymentGateway,
	currency string,
	log logger.Logger,
) *PurchaseLeadUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &PurchaseLeadUseCase{
		Listings:  listings,
		Purchases: purchases,
		Gateway:   gateway,
		Currency:  currency,
		Logger:    log,
		Now:       time.Now,
	}
}

// Execute opens a pending purchase. Every check that can be answered from a
// read happens before the gateway is called; the slot itself is claimed by the
// repository's conditional update, so two buyers racing for the last slot
// cannot both succeed.
func (uc *PurchaseLeadUseCase) Execute(ctx context.Context, input PurchaseLeadInput) (*PurchaseLeadOutput, error) {
	if strings.TrimSpace(input.BuyerID) == "" {
		return nil, validationError("validation failed: buyer (is required)")
	}
	if strings.TrimSpace(input.LeadID) == "" {
		return nil, validationError("validation failed: leadId (is required)")
	}
	if input.ExpectedPrice <= 0 {
		return nil, validationError("validation failed: expectedPrice (must be positive)")
	}
	if !validID(input.LeadID) {
		return nil, notFound("listing not found")
	}

	listing, err := uc.Listings.FindByLeadID(ctx, input.LeadID)
	if err != nil {
		if errors.Is(err, entity.ErrListingNotFound) {
			return nil, notFound("listing not found")
		}
		return nil, internal("failed to load listing", err)
	}

	now := uc.Now()
	if !listing.Purchasable(now) {
		return nil, conflict("listing is no longer available")
	}
	if input.ExpectedPrice != listing.CurrentPrice {
		return nil, conflict("price has changed, refresh the listing")
	}

	owned, err := uc.Purchases.ExistsForBuyer(ctx, listing.LeadID, input.BuyerID)
	if err != nil {
		return nil, internal("failed to check previous purchases", err)
	}
	if owned {
		return nil, conflict("lead already purchased")
	}

	purchase := entity.NewPurchase(listing, input.BuyerID, uc.Currency, now)
	var intent *entity.PaymentIntent

	txn := NewTransaction(uc.Logger)
	txn.AddStep("create_payment_intent",
		func(ctx context.Context) error {
			var err error
			intent, err = uc.Gateway.CreateIntent(ctx, purchase.Price, purchase.Currency, map[string]string{
				"purchase_id": purchase.ID,
				"lead_id":     purchase.LeadID,
				"buyer_id":    purchase.BuyerID,
			})
			if err != nil {
				return err
			}
			purchase.PaymentIntentID = intent.ID
			return nil
		},
		func(ctx context.Context) error {
			return uc.Gateway.CancelIntent(context.WithoutCancel(ctx), intent.ID)
		},
	)
	txn.AddStep("reserve_slot",
		func(ctx context.Context) error {
			_, err := uc.Purchases.Reserve(ctx, purchase, now)
			return err
		},
		nil,
	)

	if err := txn.Execute(ctx); err != nil {
		switch {
		case errors.Is(err, entity.ErrListingUnavailable):
			return nil, conflict("listing is no longer available")
		case errors.Is(err, entity.ErrDuplicatePurchase):
			return nil, conflict("lead already purchased")
		}
		uc.Logger.Error("purchase failed",
			logger.String("lead_id", input.LeadID),
			logger.String("buyer_id", input.BuyerID),
			logger.Error(err))
		return nil, internal("failed to start purchase", err)
	}

	uc.Logger.Info("purchase started",
		logger.String("purchase_id", purchase.ID),
		logger.String("lead_id", purchase.LeadID),
		logger.Int64("amount", purchase.Price))

	return &PurchaseLeadOutput{
		PurchaseID:   purchase.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       purchase.Price,
		Currency:     purchase.Currency,
	}, nil
}
