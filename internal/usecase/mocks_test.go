package usecase

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/medjobs/leadmarket/internal/entity"
)

// MockPaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*entity.PaymentIntent, error) {
	args := m.Called(ctx, amount, currency, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) GetIntent(ctx context.Context, id string) (*entity.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) CancelIntent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *entity.Lead, since time.Time) error {
	args := m.Called(ctx, lead, since)
	return args.Error(0)
}

func (m *MockLeadRepository) Merge(ctx context.Context, lead *entity.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindRecentByEmail(ctx context.Context, email string, since time.Time) (*entity.Lead, error) {
	args := m.Called(ctx, email, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) UpdateScore(ctx context.Context, id string, score int, breakdown entity.ScoreBreakdown) error {
	args := m.Called(ctx, id, score, breakdown)
	return args.Error(0)
}

func (m *MockLeadRepository) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockLeadRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockWebhookEndpointRepository
type MockWebhookEndpointRepository struct {
	mock.Mock
}

func (m *MockWebhookEndpointRepository) Create(ctx context.Context, endpoint *entity.WebhookEndpoint) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockWebhookEndpointRepository) ListActive(ctx context.Context) ([]*entity.WebhookEndpoint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.WebhookEndpoint), args.Error(1)
}

type limiterFunc func(ctx context.Context, identity string) bool

func (f limiterFunc) Allow(ctx context.Context, identity string) bool { return f(ctx, identity) }

func allowAll() limiterFunc {
	return func(context.Context, string) bool { return true }
}

type publishedEvent struct {
	Event string
	Data  any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, Data: data})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

type chanNotifier chan string

func (c chanNotifier) NotifyHotLead(lead *entity.Lead) error {
	c <- lead.ID
	return nil
}

// memLeadRepo serializes Create per email the way the Postgres advisory
// lock does.
type memLeadRepo struct {
	mu    sync.Mutex
	leads []*entity.Lead
}

func cloneLead(l *entity.Lead) *entity.Lead {
	c := *l
	if l.CalculationData != nil {
		calc := *l.CalculationData
		c.CalculationData = &calc
	}
	c.Metadata.Extra = maps.Clone(l.Metadata.Extra)
	return &c
}

func (r *memLeadRepo) find(id string) int {
	for i, l := range r.leads {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (r *memLeadRepo) Create(_ context.Context, lead *entity.Lead, since time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.Email == lead.Email && !l.CreatedAt.Before(since) {
			return entity.ErrLeadExists
		}
	}
	r.leads = append(r.leads, cloneLead(lead))
	return nil
}

func (r *memLeadRepo) Merge(_ context.Context, lead *entity.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(lead.ID)
	if i < 0 {
		return entity.ErrLeadNotFound
	}
	count := r.leads[i].Metadata.SubmissionCount + 1
	r.leads[i] = cloneLead(lead)
	r.leads[i].Metadata.SubmissionCount = count
	lead.Metadata.SubmissionCount = count
	return nil
}

func (r *memLeadRepo) FindByID(_ context.Context, id string) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.find(id); i >= 0 {
		return cloneLead(r.leads[i]), nil
	}
	return nil, entity.ErrLeadNotFound
}

func (r *memLeadRepo) FindRecentByEmail(_ context.Context, email string, since time.Time) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *entity.Lead
	for _, l := range r.leads {
		if l.Email != email || l.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || l.CreatedAt.After(newest.CreatedAt) {
			newest = l
		}
	}
	if newest == nil {
		return nil, entity.ErrLeadNotFound
	}
	return cloneLead(newest), nil
}

func (r *memLeadRepo) UpdateScore(_ context.Context, id string, score int, breakdown entity.ScoreBreakdown) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return entity.ErrLeadNotFound
	}
	r.leads[i].Score = score
	r.leads[i].ScoreBreakdown = breakdown
	return nil
}

func (r *memLeadRepo) UpdateStatus(_ context.Context, id string, status entity.LeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return entity.ErrLeadNotFound
	}
	r.leads[i].Status = status
	return nil
}

func (r *memLeadRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return entity.ErrLeadNotFound
	}
	r.leads = append(r.leads[:i], r.leads[i+1:]...)
	return nil
}

func (r *memLeadRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads)
}

// memMarket backs both listings and purchases. Reserve mirrors the single
// conditional UPDATE the Postgres repository issues.
type memMarket struct {
	mu        sync.Mutex
	listings  []*entity.Listing
	purchases []*entity.Purchase
}

func (m *memMarket) listing(leadID string) *entity.Listing {
	for _, l := range m.listings {
		if l.LeadID == leadID {
			return l
		}
	}
	return nil
}

func (m *memMarket) Create(_ context.Context, listing *entity.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listing(listing.LeadID) != nil {
		return entity.ErrListingExists
	}
	c := *listing
	m.listings = append(m.listings, &c)
	return nil
}

func (m *memMarket) FindByLeadID(_ context.Context, leadID string) (*entity.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.listing(leadID); l != nil {
		c := *l
		return &c, nil
	}
	return nil, entity.ErrListingNotFound
}

func (m *memMarket) ListAvailable(_ context.Context, f entity.ListingFilter, now time.Time) ([]*entity.Listing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*entity.Listing
	for _, l := range m.listings {
		if !l.Purchasable(now) {
			continue
		}
		if f.PriceCategory != "" && l.PriceCategory != f.PriceCategory {
			continue
		}
		if l.Preview.Score < f.MinScore || (f.MaxPrice > 0 && l.CurrentPrice > f.MaxPrice) {
			continue
		}
		c := *l
		matched = append(matched, &c)
	}
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}

func (m *memMarket) ExistsForLead(_ context.Context, leadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listing(leadID) != nil, nil
}

func (m *memMarket) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.listings {
		if l.IsAvailable && !now.Before(l.ExpiresAt) {
			l.IsAvailable = false
			n++
		}
	}
	return n, nil
}

func (m *memMarket) Reserve(_ context.Context, p *entity.Purchase, now time.Time) (*entity.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.listing(p.LeadID)
	if l == nil || !l.Purchasable(now) {
		return nil, entity.ErrListingUnavailable
	}
	for _, existing := range m.purchases {
		if existing.LeadID == p.LeadID && existing.BuyerID == p.BuyerID {
			return nil, entity.ErrDuplicatePurchase
		}
	}
	l.CurrentPurchases++
	l.IsAvailable = l.CurrentPurchases < l.MaxPurchases
	c := *p
	m.purchases = append(m.purchases, &c)
	out := *l
	return &out, nil
}

func (m *memMarket) purchase(id string) *entity.Purchase {
	for _, p := range m.purchases {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memMarket) FindByID(_ context.Context, id string) (*entity.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.purchase(id); p != nil {
		c := *p
		return &c, nil
	}
	return nil, entity.ErrPurchaseNotFound
}

func (m *memMarket) ExistsForBuyer(_ context.Context, leadID, buyerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.LeadID == leadID && p.BuyerID == buyerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memMarket) ListByBuyer(_ context.Context, buyerID string) ([]*entity.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Purchase
	for _, p := range m.purchases {
		if p.BuyerID == buyerID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memMarket) MarkCompleted(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.purchase(id)
	if p == nil || p.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}
	p.PaymentStatus = entity.PaymentStatusCompleted
	p.AccessGranted = true
	p.CompletedAt = &at
	p.UpdatedAt = at
	return true, nil
}

func (m *memMarket) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.purchase(id)
	if p == nil || p.PaymentStatus != entity.PaymentStatusPending {
		return false, nil
	}
	p.PaymentStatus = entity.PaymentStatusFailed
	return true, nil
}

func (m *memMarket) snapshot(leadID string) entity.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.listing(leadID)
}
