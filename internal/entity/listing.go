package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PriceCategory string

const (
	PriceCategoryStandard PriceCategory = "standard"
	PriceCategoryPremium  PriceCategory = "premium"
	PriceCategoryHotLead  PriceCategory = "hot_lead"
)

func (c PriceCategory) Valid() bool {
	switch c {
	case PriceCategoryStandard, PriceCategoryPremium, PriceCategoryHotLead:
		return true
	}
	return false
}

type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

// Listing prices are integer minor currency units (cents).
type Listing struct {
	ID               string          `json:"id"`
	LeadID           string          `json:"lead_id"`
	BasePrice        int64           `json:"base_price"`
	CurrentPrice     int64           `json:"current_price"`
	PriceCategory    PriceCategory   `json:"price_category"`
	EngagementLevel  EngagementLevel `json:"engagement_level"`
	MaxPurchases     int             `json:"max_purchases"`
	CurrentPurchases int             `json:"current_purchases"`
	IsAvailable      bool            `json:"is_available"`
	Preview          LeadPreview     `json:"preview"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// LeadPreview is the privacy-masked projection shown before purchase.
type LeadPreview struct {
	MaskedEmail     string          `json:"masked_email"`
	Source          string          `json:"source"`
	Score           int             `json:"score"`
	EngagementLevel EngagementLevel `json:"engagement_level"`
	HasPhone        bool            `json:"has_phone"`
	HasCompany      bool            `json:"has_company"`
	HasMessage      bool            `json:"has_message"`
	Industry        string          `json:"industry,omitempty"`
	Location        string          `json:"location,omitempty"`
	Role            string          `json:"role,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewListing(leadID string, now time.Time) *Listing {
	return &Listing{
		ID:          uuid.New().String(),
		LeadID:      leadID,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Purchasable reports whether a buyer could still claim a slot at now.
func (l *Listing) Purchasable(now time.Time) bool {
	return l.IsAvailable && l.CurrentPurchases < l.MaxPurchases && now.Before(l.ExpiresAt)
}

func (l *Listing) RemainingSlots() int {
	if l.CurrentPurchases >= l.MaxPurchases {
		return 0
	}
	return l.MaxPurchases - l.CurrentPurchases
}

type ListingFilter struct {
	Limit         int
	Offset        int
	Industry      string
	Location      string
	PriceCategory PriceCategory
	MinScore      int
	MaxPrice      int64
}

type ListingRepositoryInterface interface {
	// Create fails with ErrListingExists when the lead already has a listing.
	Create(ctx context.Context, listing *Listing) error
	FindByLeadID(ctx context.Context, leadID string) (*Listing, error)
	ListAvailable(ctx context.Context, filter ListingFilter, now time.Time) ([]*Listing, int, error)
	ExistsForLead(ctx context.Context, leadID string) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
