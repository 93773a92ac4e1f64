package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

const (
	defaultBrowseLimit = 20
	maxBrowseLimit     = 100
)

// MarketplaceUseCase holds the read-only buyer queries.
type MarketplaceUseCase struct {
	Listings  entity.ListingRepositoryInterface
	Purchases entity.PurchaseRepositoryInterface
	Currency  string
	Now       func() time.Time
}

func NewMarketplaceUseCase(
	listings entity.ListingRepositoryInterface,
	purchases entity.PurchaseRepositoryInterface,
	currency string,
) *MarketplaceUseCase {
	return &MarketplaceUseCase{
		Listings:  listings,
		Purchases: purchases,
		Currency:  currency,
		Now:       time.Now,
	}
}

func (uc *MarketplaceUseCase) Browse(ctx context.Context, input BrowseListingsInput) (*BrowseListingsOutput, error) {
	if err := joinValidation(ValidateBrowseInput(input)); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultBrowseLimit
	}
	filter := entity.ListingFilter{
		Limit:         limit,
		Offset:        input.Offset,
		Industry:      strings.TrimSpace(input.Industry),
		Location:      strings.TrimSpace(input.Location),
		PriceCategory: input.PriceCategory,
		MinScore:      input.MinScore,
		MaxPrice:      input.MaxPrice,
	}

	listings, total, err := uc.Listings.ListAvailable(ctx, filter, uc.Now())
	if err != nil {
		return nil, internal("failed to list listings", err)
	}

	views := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, uc.view(l))
	}
	return &BrowseListingsOutput{
		Listings: views,
		Total:    total,
		Limit:    limit,
		Offset:   input.Offset,
	}, nil
}

// GetListing returns a single purchasable listing; sold-out and expired
// listings read as not found.
func (uc *MarketplaceUseCase) GetListing(ctx context.Context, leadID string) (*ListingView, error) {
	if !validID(leadID) {
		return nil, notFound("listing not found")
	}
	listing, err := uc.Listings.FindByLeadID(ctx, leadID)
	if err != nil {
		if errors.Is(err, entity.ErrListingNotFound) {
			return nil, notFound("listing not found")
		}
		return nil, internal("failed to load listing", err)
	}
	if !listing.Purchasable(uc.Now()) {
		return nil, notFound("listing not found")
	}
	v := uc.view(listing)
	return &v, nil
}

func (uc *MarketplaceUseCase) ListPurchases(ctx context.Context, buyerID string) ([]*entity.Purchase, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, validationError("validation failed: buyer (is required)")
	}
	purchases, err := uc.Purchases.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, internal("failed to list purchases", err)
	}
	if purchases == nil {
		purchases = []*entity.Purchase{}
	}
	return purchases, nil
}

func (uc *MarketplaceUseCase) view(l *entity.Listing) ListingView {
	return ListingView{
		LeadID:          l.LeadID,
		Price:           l.CurrentPrice,
		Currency:        uc.Currency,
		PriceCategory:   l.PriceCategory,
		EngagementLevel: l.EngagementLevel,
		RemainingSlots:  l.RemainingSlots(),
		ExpiresAt:       l.ExpiresAt,
		Preview:         l.Preview,
	}
}
