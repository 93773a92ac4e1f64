package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/scoring"
)

const (
	MinListingPrice int64 = 1000
	MaxListingPrice int64 = 10000

	defaultListingPurchases = 3
	maxListingPurchases     = 50
	defaultListingTTLDays   = 30
	maxListingTTLDays       = 90
)

var categoryBasePrices = map[entity.PriceCategory]int64{
	entity.PriceCategoryStandard: 2500,
	entity.PriceCategoryPremium:  5000,
	entity.PriceCategoryHotLead:  7500,
}

type CreateListingUseCase struct {
	Leads    entity.LeadRepositoryInterface
	Listings entity.ListingRepositoryInterface
	Events   EventPublisher
	Logger   logger.Logger
	Now      func() time.Time
}

func NewCreateListingUseCase(
	leads entity.LeadRepositoryInterface,
	listings entity.ListingRepositoryInterface,
	events EventPublisher,
	log logger.Logger,
) *CreateListingUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &CreateListingUseCase{
		Leads:    leads,
		Listings: listings,
		Events:   events,
		Logger:   log,
		Now:      time.Now,
	}
}

func (uc *CreateListingUseCase) Execute(ctx context.Context, input CreateListingInput) (*entity.Listing, error) {
	if err := joinValidation(ValidateCreateListingInput(input)); err != nil {
		return nil, err
	}
	if !validID(input.LeadID) {
		return nil, notFound("lead not found")
	}

	lead, err := uc.Leads.FindByID(ctx, input.LeadID)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, notFound("lead not found")
		}
		return nil, internal("failed to load lead", err)
	}

	category := input.Category
	if category == "" {
		category = CategoryForScore(lead.Score)
	}
	base := categoryBasePrices[category]
	if input.BasePrice != nil {
		base = *input.BasePrice
	}
	maxPurchases := input.MaxPurchases
	if maxPurchases == 0 {
		maxPurchases = defaultListingPurchases
	}
	ttlDays := input.TTLDays
	if ttlDays == 0 {
		ttlDays = defaultListingTTLDays
	}

	now := uc.Now()
	listing := entity.NewListing(lead.ID, now)
	listing.BasePrice = base
	listing.CurrentPrice = ListingPrice(base, lead.Score)
	listing.PriceCategory = category
	listing.EngagementLevel = scoring.EngagementLevel(lead.Score)
	listing.MaxPurchases = maxPurchases
	listing.ExpiresAt = now.AddDate(0, 0, ttlDays)
	listing.Preview = BuildPreview(lead)

	if err := uc.Listings.Create(ctx, listing); err != nil {
		if errors.Is(err, entity.ErrListingExists) {
			return nil, conflict("a listing already exists for this lead")
		}
		return nil, internal("failed to create listing", err)
	}

	uc.Logger.Info("listing created",
		logger.String("lead_id", lead.ID),
		logger.String("category", string(category)),
		logger.Int64("price", listing.CurrentPrice))
	uc.Events.Publish(ctx, entity.EventListingCreated, listing)
	return listing, nil
}

// ListingPrice scales base linearly from 0.5x (score 0) to 1.3x (score 100)
// and clamps the result to the marketplace price bounds. Integer arithmetic,
// rounded half up.
func ListingPrice(base int64, score int) int64 {
	if score < 0 {
		score = 0
	}
	if score > scoring.MaxScore {
		score = scoring.MaxScore
	}
	price := (base*(500+8*int64(score)) + 500) / 1000
	if price < MinListingPrice {
		return MinListingPrice
	}
	if price > MaxListingPrice {
		return MaxListingPrice
	}
	return price
}

func CategoryForScore(score int) entity.PriceCategory {
	switch scoring.EngagementLevel(score) {
	case entity.EngagementHigh:
		return entity.PriceCategoryHotLead
	case entity.EngagementMedium:
		return entity.PriceCategoryPremium
	default:
		return entity.PriceCategoryStandard
	}
}

// BuildPreview is the only projection of a lead shown before purchase.
func BuildPreview(lead *entity.Lead) entity.LeadPreview {
	preview := entity.LeadPreview{
		MaskedEmail:     MaskEmail(lead.Email),
		Source:          lead.Source,
		Score:           lead.Score,
		EngagementLevel: scoring.EngagementLevel(lead.Score),
		HasPhone:        strings.TrimSpace(lead.Phone) != "",
		HasCompany:      strings.TrimSpace(lead.Company) != "",
		HasMessage:      strings.TrimSpace(lead.Message) != "",
		Industry:        lead.Metadata.Industry,
		Location:        lead.Metadata.Location,
		CreatedAt:       lead.CreatedAt,
	}
	if calc := lead.CalculationData; calc != nil {
		preview.Role = calc.Role
		if preview.Location == "" {
			preview.Location = calc.Location
		}
	}
	return preview
}

// MaskEmail keeps the first letter of the local part and of the domain label
// plus the TLD: "dana@stmarys.org" becomes "d***@s***.org".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}

	label, tld := domain, ""
	if i := strings.LastIndex(domain, "."); i > 0 {
		label, tld = domain[:i], domain[i:]
	}
	return firstRune(local) + "***@" + firstRune(label) + "***" + tld
}

func firstRune(s string) string {
	_, n := utf8.DecodeRuneInString(s)
	return s[:n]
}
