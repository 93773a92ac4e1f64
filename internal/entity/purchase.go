package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Purchase struct {
	ID              string        `json:"id"`
	LeadID          string        `json:"lead_id"`
	ListingID       string        `json:"listing_id"`
	BuyerID         string        `json:"buyer_id"`
	Price           int64         `json:"price"`
	Currency        string        `json:"currency"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	AccessGranted   bool          `json:"access_granted"`
	PaymentIntentID string        `json:"payment_intent_id"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewPurchase(listing *Listing, buyerID, currency string, now time.Time) *Purchase {
	return &Purchase{
		ID:            uuid.New().String(),
		LeadID:        listing.LeadID,
		ListingID:     listing.ID,
		BuyerID:       buyerID,
		Price:         listing.CurrentPrice,
		Currency:      currency,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type PurchaseRepositoryInterface interface {
	// Reserve claims one slot on the listing and inserts the pending purchase
	// in a single transaction. It fails with ErrListingUnavailable when no
	// slot is left and ErrDuplicatePurchase when the buyer already owns one.
	Reserve(ctx context.Context, purchase *Purchase, now time.Time) (*Listing, error)
	FindByID(ctx context.Context, id string) (*Purchase, error)
	ExistsForBuyer(ctx context.Context, leadID, buyerID string) (bool, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*Purchase, error)
	// MarkCompleted transitions pending -> completed. It reports false when the
	// purchase was no longer pending.
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}
