package usecase

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medjobs/leadmarket/internal/entity"
)

func TestListingPrice(t *testing.T) {
	tests := []struct {
		base  int64
		score int
		want  int64
	}{
		{2500, 0, 1250},
		{2500, 50, 2250},
		{2500, 100, 3250},
		{7500, 85, 8850},
		{10000, 100, 10000},
		{1000, 0, 1000},
		{5000, 150, 6500},
		{5000, -10, 2500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ListingPrice(tt.base, tt.score), "base=%d score=%d", tt.base, tt.score)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "d***@s***.org", MaskEmail("dana@stmarys.org"))
	assert.Equal(t, "r***@c***.uk", MaskEmail("recruiting@clinic.co.uk"))
	assert.Equal(t, "a***@l***", MaskEmail("a@localhost"))
	assert.Equal(t, "***", MaskEmail("broken"))

	masked := MaskEmail("élise@hôpital.fr")
	assert.Equal(t, "é***@h***.fr", masked)
	assert.True(t, utf8.ValidString(masked))
	assert.Equal(t, "ø***@ü***.de", MaskEmail("øyvind@über.de"))
}

func TestCategoryForScore(t *testing.T) {
	assert.Equal(t, entity.PriceCategoryHotLead, CategoryForScore(80))
	assert.Equal(t, entity.PriceCategoryPremium, CategoryForScore(50))
	assert.Equal(t, entity.PriceCategoryStandard, CategoryForScore(49))
}

func newListingFixture(t *testing.T, score int) (*CreateListingUseCase, *memMarket, *recordingPublisher, *entity.Lead) {
	t.Helper()
	leads := &memLeadRepo{}
	lead := entity.NewLead("dana@stmarys.org", "referral", baseTime.Add(-time.Hour))
	lead.Score = score
	lead.Company = "St Marys Hospital"
	lead.Metadata.Industry = "hospital"
	lead.CalculationData = &entity.CalculationData{Role: "Registered Nurse", Location: "Austin, TX"}
	require.NoError(t, leads.Create(context.Background(), lead, baseTime.Add(-48*time.Hour)))

	market := &memMarket{}
	events := &recordingPublisher{}
	uc := NewCreateListingUseCase(leads, market, events, nil)
	uc.Now = func() time.Time { return baseTime }
	return uc, market, events, lead
}

func TestCreateListingDefaults(t *testing.T) {
	uc, market, events, lead := newListingFixture(t, 85)

	listing, err := uc.Execute(context.Background(), CreateListingInput{LeadID: lead.ID})
	require.NoError(t, err)

	assert.Equal(t, entity.PriceCategoryHotLead, listing.PriceCategory)
	assert.Equal(t, int64(7500), listing.BasePrice)
	assert.Equal(t, int64(8850), listing.CurrentPrice)
	assert.Equal(t, entity.EngagementHigh, listing.EngagementLevel)
	assert.Equal(t, 3, listing.MaxPurchases)
	assert.Equal(t, 0, listing.CurrentPurchases)
	assert.True(t, listing.IsAvailable)
	assert.Equal(t, baseTime.AddDate(0, 0, 30), listing.ExpiresAt)

	assert.Equal(t, entity.LeadPreview{
		MaskedEmail:     "d***@s***.org",
		Source:          "referral",
		Score:           85,
		EngagementLevel: entity.EngagementHigh,
		HasCompany:      true,
		Industry:        "hospital",
		Location:        "Austin, TX",
		Role:            "Registered Nurse",
		CreatedAt:       lead.CreatedAt,
	}, listing.Preview)

	stored, err := market.ExistsForLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, []string{entity.EventListingCreated}, events.names())
}

func TestCreateListingWithOverrides(t *testing.T) {
	uc, _, _, lead := newListingFixture(t, 20)
	base := int64(4000)

	listing, err := uc.Execute(context.Background(), CreateListingInput{
		LeadID:       lead.ID,
		BasePrice:    &base,
		Category:     entity.PriceCategoryPremium,
		MaxPurchases: 1,
		TTLDays:      7,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.PriceCategoryPremium, listing.PriceCategory)
	assert.Equal(t, int64(4000), listing.BasePrice)
	assert.Equal(t, int64(2640), listing.CurrentPrice)
	assert.Equal(t, entity.EngagementLow, listing.EngagementLevel)
	assert.Equal(t, 1, listing.MaxPurchases)
	assert.Equal(t, baseTime.AddDate(0, 0, 7), listing.ExpiresAt)
}

func TestCreateListingOncePerLead(t *testing.T) {
	uc, _, _, lead := newListingFixture(t, 60)

	_, err := uc.Execute(context.Background(), CreateListingInput{LeadID: lead.ID})
	require.NoError(t, err)
	_, err = uc.Execute(context.Background(), CreateListingInput{LeadID: lead.ID})

	assert.Equal(t, CodeConflict, ErrorCode(err))
}

func TestCreateListingRejectsBadInput(t *testing.T) {
	uc, _, _, lead := newListingFixture(t, 60)
	tooCheap := int64(500)

	tests := []struct {
		name  string
		input CreateListingInput
		code  string
	}{
		{"unknown lead", CreateListingInput{LeadID: leadUnknown}, CodeNotFound},
		{"no lead", CreateListingInput{}, CodeValidation},
		{"base price below floor", CreateListingInput{LeadID: lead.ID, BasePrice: &tooCheap}, CodeValidation},
		{"unknown category", CreateListingInput{LeadID: lead.ID, Category: "platinum"}, CodeValidation},
		{"too many purchases", CreateListingInput{LeadID: lead.ID, MaxPurchases: 51}, CodeValidation},
		{"ttl too long", CreateListingInput{LeadID: lead.ID, TTLDays: 91}, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.input)
			assert.Equal(t, tt.code, ErrorCode(err))
		})
	}
}

func TestBrowseReturnsMaskedPreviews(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 3)
	seedListing(market, leadB, 6000, 3)
	seedListing(market, leadC, 3000, 3)
	market.listings[1].PriceCategory = entity.PriceCategoryPremium
	market.listings[2].ExpiresAt = baseTime.Add(-time.Second)
	market.listings[0].Preview = entity.LeadPreview{MaskedEmail: "d***@s***.org"}

	uc := NewMarketplaceUseCase(market, market, "usd")
	uc.Now = func() time.Time { return baseTime }

	out, err := uc.Browse(context.Background(), BrowseListingsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 20, out.Limit)
	require.Len(t, out.Listings, 2)
	assert.Equal(t, leadA, out.Listings[0].LeadID)
	assert.Equal(t, "d***@s***.org", out.Listings[0].Preview.MaskedEmail)
	assert.Equal(t, 3, out.Listings[0].RemainingSlots)
	assert.Equal(t, "usd", out.Listings[0].Currency)

	out, err = uc.Browse(context.Background(), BrowseListingsInput{PriceCategory: entity.PriceCategoryPremium})
	require.NoError(t, err)
	require.Len(t, out.Listings, 1)
	assert.Equal(t, leadB, out.Listings[0].LeadID)

	out, err = uc.Browse(context.Background(), BrowseListingsInput{MaxPrice: 5000})
	require.NoError(t, err)
	require.Len(t, out.Listings, 1)
	assert.Equal(t, leadA, out.Listings[0].LeadID)

	_, err = uc.Browse(context.Background(), BrowseListingsInput{Limit: 500})
	assert.Equal(t, CodeValidation, ErrorCode(err))
}

func TestGetListingHidesUnavailable(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 1)
	seedListing(market, leadB, 3000, 1)
	market.listings[1].CurrentPurchases = 1
	market.listings[1].IsAvailable = false

	uc := NewMarketplaceUseCase(market, market, "usd")
	uc.Now = func() time.Time { return baseTime }

	view, err := uc.GetListing(context.Background(), leadA)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), view.Price)

	_, err = uc.GetListing(context.Background(), leadB)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	_, err = uc.GetListing(context.Background(), leadUnknown)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestListPurchasesNeverNil(t *testing.T) {
	uc := NewMarketplaceUseCase(&memMarket{}, &memMarket{}, "usd")

	purchases, err := uc.ListPurchases(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.NotNil(t, purchases)
	assert.Empty(t, purchases)

	_, err = uc.ListPurchases(context.Background(), "")
	assert.Equal(t, CodeValidation, ErrorCode(err))
}
