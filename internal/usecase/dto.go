package usecase

import (
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

type SubmissionMetadata struct {
	UTMSource       string            `json:"utm_source"`
	UTMCampaign     string            `json:"utm_campaign"`
	Referrer        string            `json:"referrer"`
	SessionDuration int               `json:"session_duration"`
	IPAddress       string            `json:"ip_address"`
	UserAgent       string            `json:"user_agent"`
	Industry        string            `json:"industry"`
	Location        string            `json:"location"`
	Extra           map[string]string `json:"extra"`
}

type SubmitLeadInput struct {
	Email           string                  `json:"email"`
	Name            string                  `json:"name"`
	Company         string                  `json:"company"`
	Phone           string                  `json:"phone"`
	Message         string                  `json:"message"`
	Source          string                  `json:"source"`
	SourceID        string                  `json:"source_id"`
	Metadata        SubmissionMetadata      `json:"metadata"`
	CalculationData *entity.CalculationData `json:"calculation_data"`

	// Identity keys the rate limiter; the handler fills it with the client IP.
	Identity string `json:"-"`
}

type IntakeOutcome string

const (
	OutcomeCreated     IntakeOutcome = "created"
	OutcomeMerged      IntakeOutcome = "merged"
	OutcomeSpam        IntakeOutcome = "spam"
	OutcomeRateLimited IntakeOutcome = "rate_limited"
)

type SubmitLeadOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LeadID  string `json:"leadId,omitempty"`
	Score   *int   `json:"score,omitempty"`

	// Outcome never reaches the submitter; it feeds logs and metrics.
	Outcome IntakeOutcome `json:"-"`
}

type CreateListingInput struct {
	LeadID       string               `json:"lead_id"`
	BasePrice    *int64               `json:"base_price"`
	Category     entity.PriceCategory `json:"price_category"`
	MaxPurchases int                  `json:"max_purchases"`
	TTLDays      int                  `json:"ttl_days"`
}

type BrowseListingsInput struct {
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
	Industry      string               `json:"industry"`
	Location      string               `json:"location"`
	PriceCategory entity.PriceCategory `json:"price_category"`
	MinScore      int                  `json:"min_score"`
	MaxPrice      int64                `json:"max_price"`
}

// ListingView is what buyers see before purchase.
type ListingView struct {
	LeadID          string                 `json:"leadId"`
	Price           int64                  `json:"price"`
	Currency        string                 `json:"currency"`
	PriceCategory   entity.PriceCategory   `json:"priceCategory"`
	EngagementLevel entity.EngagementLevel `json:"engagementLevel"`
	RemainingSlots  int                    `json:"remainingSlots"`
	ExpiresAt       time.Time              `json:"expiresAt"`
	Preview         entity.LeadPreview     `json:"preview"`
}

type BrowseListingsOutput struct {
	Listings []ListingView `json:"listings"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

type PurchaseLeadInput struct {
	LeadID        string `json:"leadId"`
	ExpectedPrice int64  `json:"expectedPrice"`
	BuyerID       string `json:"-"`
}

type PurchaseLeadOutput struct {
	PurchaseID   string `json:"purchaseId"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type CompletePurchaseInput struct {
	PurchaseID string `json:"purchaseId"`
	BuyerID    string `json:"-"`
}

type CompletePurchaseOutput struct {
	Success      bool         `json:"success"`
	Lead         *entity.Lead `json:"lead"`
	PurchaseDate time.Time    `json:"purchaseDate"`
}

type RegisterWebhookInput struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type RegisterWebhookOutput struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Signed    bool      `json:"signed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
