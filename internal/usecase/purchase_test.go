package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medjobs/leadmarket/internal/entity"
)

var (
	leadA       = "0b5c3f0e-6d4a-4c2e-9a51-6f7d2b1c8e01"
	leadB       = "1c6d4a1f-7e5b-4d3f-8b62-7a8e3c2d9f02"
	leadC       = "2d7e5b2a-8f6c-4e4a-9c73-8b9f4d3eaf03"
	leadUnknown = "9f0a1b2c-3d4e-4f5a-8b6c-7d8e9f0a1b2c"
)

func seedListing(m *memMarket, leadID string, price int64, maxPurchases int) {
	l := entity.NewListing(leadID, baseTime.Add(-time.Hour))
	l.BasePrice = price
	l.CurrentPrice = price
	l.PriceCategory = entity.PriceCategoryStandard
	l.MaxPurchases = maxPurchases
	l.ExpiresAt = baseTime.Add(24 * time.Hour)
	m.listings = append(m.listings, l)
}

func newPurchaseUseCase(m *memMarket, gateway PaymentGateway) *PurchaseLeadUseCase {
	uc := NewPurchaseLeadUseCase(m, m, gateway, "usd", nil)
	uc.Now = func() time.Time { return baseTime }
	return uc
}

func TestPurchaseLeadCreatesPendingPurchase(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 3)

	gateway := new(MockPaymentGateway)
	gateway.On("CreateIntent", mock.Anything, int64(3000), "usd", mock.MatchedBy(func(md map[string]string) bool {
		return md["lead_id"] == leadA && md["buyer_id"] == "buyer-1" && md["purchase_id"] != ""
	})).Return(&entity.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

	out, err := newPurchaseUseCase(market, gateway).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadA, BuyerID: "buyer-1", ExpectedPrice: 3000,
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", out.ClientSecret)
	assert.Equal(t, int64(3000), out.Amount)
	assert.Equal(t, "usd", out.Currency)

	p, err := market.FindByID(context.Background(), out.PurchaseID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, p.PaymentStatus)
	assert.Equal(t, "pi_1", p.PaymentIntentID)
	assert.False(t, p.AccessGranted)

	l := market.snapshot(leadA)
	assert.Equal(t, 1, l.CurrentPurchases)
	assert.True(t, l.IsAvailable)
	gateway.AssertExpectations(t)
}

func TestPurchaseLeadStalePriceDoesNotMutate(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 3)
	gateway := new(MockPaymentGateway)

	_, err := newPurchaseUseCase(market, gateway).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadA, BuyerID: "buyer-1", ExpectedPrice: 2900,
	})

	assert.Equal(t, CodeConflict, ErrorCode(err))
	assert.Equal(t, 0, market.snapshot(leadA).CurrentPurchases)
	assert.Empty(t, market.purchases)
	gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseLeadRejectsSecondPurchaseBySameBuyer(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 3)
	gateway := new(MockPaymentGateway)
	gateway.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.PaymentIntent{ID: "pi_1", ClientSecret: "s"}, nil).Once()
	uc := newPurchaseUseCase(market, gateway)
	input := PurchaseLeadInput{LeadID: leadA, BuyerID: "buyer-1", ExpectedPrice: 3000}

	_, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)
	_, err = uc.Execute(context.Background(), input)

	assert.Equal(t, CodeConflict, ErrorCode(err))
	assert.Equal(t, 1, market.snapshot(leadA).CurrentPurchases)
	gateway.AssertNumberOfCalls(t, "CreateIntent", 1)
}

func TestPurchaseLeadUnavailableListings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *entity.Listing)
		code   string
	}{
		{"sold out", func(l *entity.Listing) { l.CurrentPurchases = l.MaxPurchases; l.IsAvailable = false }, CodeConflict},
		{"expired", func(l *entity.Listing) { l.ExpiresAt = baseTime.Add(-time.Minute) }, CodeConflict},
		{"withdrawn", func(l *entity.Listing) { l.IsAvailable = false }, CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := &memMarket{}
			seedListing(market, leadA, 3000, 2)
			tt.mutate(market.listings[0])
			gateway := new(MockPaymentGateway)

			_, err := newPurchaseUseCase(market, gateway).Execute(context.Background(), PurchaseLeadInput{
				LeadID: leadA, BuyerID: "buyer-1", ExpectedPrice: 3000,
			})

			assert.Equal(t, tt.code, ErrorCode(err))
			gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPurchaseLeadUnknownListing(t *testing.T) {
	_, err := newPurchaseUseCase(&memMarket{}, new(MockPaymentGateway)).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadUnknown, BuyerID: "buyer-1", ExpectedPrice: 3000,
	})
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestPurchaseLeadGatewayFailureIsInternal(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 3)
	gateway := new(MockPaymentGateway)
	gateway.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := newPurchaseUseCase(market, gateway).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadA, BuyerID: "buyer-1", ExpectedPrice: 3000,
	})

	assert.Equal(t, CodeInternal, ErrorCode(err))
	assert.Equal(t, 0, market.snapshot(leadA).CurrentPurchases)
	gateway.AssertNotCalled(t, "CancelIntent", mock.Anything, mock.Anything)
}

// The last slot is taken between the availability read and the reservation:
// the intent that was already created must be cancelled.
func TestPurchaseLeadCancelsIntentWhenSlotLost(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 1)
	gateway := new(MockPaymentGateway)
	gateway.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			market.mu.Lock()
			market.listings[0].CurrentPurchases = 1
			market.listings[0].IsAvailable = false
			market.mu.Unlock()
		}).
		Return(&entity.PaymentIntent{ID: "pi_late", ClientSecret: "s"}, nil)
	gateway.On("CancelIntent", mock.Anything, "pi_late").Return(nil)

	_, err := newPurchaseUseCase(market, gateway).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadA, BuyerID: "buyer-2", ExpectedPrice: 3000,
	})

	assert.Equal(t, CodeConflict, ErrorCode(err))
	assert.Empty(t, market.purchases)
	gateway.AssertCalled(t, "CancelIntent", mock.Anything, "pi_late")
}

func TestPurchaseLeadLastSlotRace(t *testing.T) {
	market := &memMarket{}
	seedListing(market, leadA, 3000, 1)
	gateway := new(MockPaymentGateway)
	gateway.On("CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&entity.PaymentIntent{ID: "pi", ClientSecret: "s"}, nil).Maybe()
	gateway.On("CancelIntent", mock.Anything, mock.Anything).Return(nil).Maybe()
	uc := newPurchaseUseCase(market, gateway)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, buyer := range []string{"buyer-a", "buyer-b"} {
		wg.Add(1)
		go func(i int, buyer string) {
			defer wg.Done()
			<-start
			_, errs[i] = uc.Execute(context.Background(), PurchaseLeadInput{
				LeadID: leadA, BuyerID: buyer, ExpectedPrice: 3000,
			})
		}(i, buyer)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, CodeConflict, ErrorCode(err))
	}
	assert.Equal(t, 1, succeeded)

	l := market.snapshot(leadA)
	assert.Equal(t, 1, l.CurrentPurchases)
	assert.False(t, l.IsAvailable)
	assert.Len(t, market.purchases, 1)
}

func TestPurchaseLeadRequiresBuyer(t *testing.T) {
	_, err := newPurchaseUseCase(&memMarket{}, new(MockPaymentGateway)).Execute(context.Background(), PurchaseLeadInput{
		LeadID: leadA, ExpectedPrice: 3000,
	})
	assert.Equal(t, CodeValidation, ErrorCode(err))
}

type completeFixture struct {
	uc         *CompletePurchaseUseCase
	market     *memMarket
	leads      *memLeadRepo
	gateway    *MockPaymentGateway
	events     *recordingPublisher
	lead       *entity.Lead
	purchaseID string
}

func newCompleteFixture(t *testing.T) *completeFixture {
	t.Helper()
	f := &completeFixture{
		market:  &memMarket{},
		leads:   &memLeadRepo{},
		gateway: new(MockPaymentGateway),
		events:  &recordingPublisher{},
	}
	f.lead = entity.NewLead("dana@stmarys.org", "referral", baseTime.Add(-48*time.Hour))
	f.lead.Phone = "+1 555 123 4567"
	require.NoError(t, f.leads.Create(context.Background(), f.lead, baseTime.Add(-72*time.Hour)))

	seedListing(f.market, f.lead.ID, 3000, 3)
	p := entity.NewPurchase(f.market.listings[0], "buyer-1", "usd", baseTime.Add(-time.Minute))
	p.PaymentIntentID = "pi_1"
	_, err := f.market.Reserve(context.Background(), p, baseTime)
	require.NoError(t, err)
	f.purchaseID = p.ID

	f.uc = NewCompletePurchaseUseCase(f.market, f.leads, f.gateway, f.events, nil)
	f.uc.Now = func() time.Time { return baseTime }
	return f
}

func TestCompletePurchaseGrantsAccessOnce(t *testing.T) {
	f := newCompleteFixture(t)
	f.gateway.On("GetIntent", mock.Anything, "pi_1").
		Return(&entity.PaymentIntent{ID: "pi_1", Status: entity.IntentStatusSucceeded}, nil).Once()
	input := CompletePurchaseInput{PurchaseID: f.purchaseID, BuyerID: "buyer-1"}

	first, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := f.uc.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, first.Success)
	assert.Equal(t, "dana@stmarys.org", first.Lead.Email)
	assert.Equal(t, "+1 555 123 4567", first.Lead.Phone)
	assert.Equal(t, baseTime, first.PurchaseDate)
	assert.Equal(t, first, second)

	p, err := f.market.FindByID(context.Background(), f.purchaseID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, p.PaymentStatus)
	assert.True(t, p.AccessGranted)

	assert.Equal(t, []string{entity.EventPurchaseCompleted}, f.events.names())
	assert.Equal(t, 1, f.market.snapshot(f.lead.ID).CurrentPurchases)
	f.gateway.AssertNumberOfCalls(t, "GetIntent", 1)
}

func TestCompletePurchaseOtherBuyerSeesNotFound(t *testing.T) {
	f := newCompleteFixture(t)

	_, err := f.uc.Execute(context.Background(), CompletePurchaseInput{PurchaseID: f.purchaseID, BuyerID: "buyer-2"})

	assert.Equal(t, CodeNotFound, ErrorCode(err))
	f.gateway.AssertNotCalled(t, "GetIntent", mock.Anything, mock.Anything)
}

func TestCompletePurchasePendingPayment(t *testing.T) {
	f := newCompleteFixture(t)
	f.gateway.On("GetIntent", mock.Anything, "pi_1").
		Return(&entity.PaymentIntent{ID: "pi_1", Status: entity.IntentStatusProcessing}, nil)

	_, err := f.uc.Execute(context.Background(), CompletePurchaseInput{PurchaseID: f.purchaseID, BuyerID: "buyer-1"})

	assert.Equal(t, CodePaymentRequired, ErrorCode(err))
	p, _ := f.market.FindByID(context.Background(), f.purchaseID)
	assert.Equal(t, entity.PaymentStatusPending, p.PaymentStatus)
	assert.Empty(t, f.events.names())
}

func TestCompletePurchaseCanceledIntentFailsPurchase(t *testing.T) {
	f := newCompleteFixture(t)
	f.gateway.On("GetIntent", mock.Anything, "pi_1").
		Return(&entity.PaymentIntent{ID: "pi_1", Status: entity.IntentStatusCanceled}, nil).Once()
	input := CompletePurchaseInput{PurchaseID: f.purchaseID, BuyerID: "buyer-1"}

	_, err := f.uc.Execute(context.Background(), input)
	assert.Equal(t, CodePaymentRequired, ErrorCode(err))

	p, _ := f.market.FindByID(context.Background(), f.purchaseID)
	assert.Equal(t, entity.PaymentStatusFailed, p.PaymentStatus)
	assert.False(t, p.AccessGranted)
	assert.Equal(t, 1, f.market.snapshot(f.lead.ID).CurrentPurchases)

	_, err = f.uc.Execute(context.Background(), input)
	assert.Equal(t, CodePaymentRequired, ErrorCode(err))
	f.gateway.AssertNumberOfCalls(t, "GetIntent", 1)
}

func TestCompletePurchaseGatewayError(t *testing.T) {
	f := newCompleteFixture(t)
	f.gateway.On("GetIntent", mock.Anything, "pi_1").Return(nil, assert.AnError)

	_, err := f.uc.Execute(context.Background(), CompletePurchaseInput{PurchaseID: f.purchaseID, BuyerID: "buyer-1"})

	assert.Equal(t, CodeInternal, ErrorCode(err))
}
