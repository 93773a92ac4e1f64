package entity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// CalculationData is what the salary/ROI calculator submits alongside a lead.
type CalculationData struct {
	Role               string  `json:"role,omitempty"`
	Specialty          string  `json:"specialty,omitempty"`
	Location           string  `json:"location,omitempty"`
	YearsExperience    int     `json:"years_experience,omitempty"`
	AnnualCompensation float64 `json:"annual_compensation,omitempty"`
}

// LeadMetadata holds provenance and engagement data. Extra carries any
// unknown keys the submitter sent so nothing is dropped on merge.
type LeadMetadata struct {
	SubmissionCount  int               `json:"submission_count"`
	LastSubmissionAt time.Time         `json:"last_submission_at"`
	UTMSource        string            `json:"utm_source,omitempty"`
	UTMCampaign      string            `json:"utm_campaign,omitempty"`
	Referrer         string            `json:"referrer,omitempty"`
	SessionDuration  int               `json:"session_duration,omitempty"` // seconds
	IPAddress        string            `json:"ip_address,omitempty"`
	UserAgent        string            `json:"user_agent,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	Location         string            `json:"location,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

type Lead struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	Name            string           `json:"name,omitempty"`
	Company         string           `json:"company,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Message         string           `json:"message,omitempty"`
	Source          string           `json:"source"`
	SourceID        string           `json:"source_id,omitempty"`
	Score           int              `json:"score"`
	ScoreBreakdown  ScoreBreakdown   `json:"score_breakdown"`
	Status          LeadStatus       `json:"status"`
	CalculationData *CalculationData `json:"calculation_data,omitempty"`
	Metadata        LeadMetadata     `json:"metadata"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NormalizeEmail is the dedup key: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewLead(email, source string, now time.Time) *Lead {
	return &Lead{
		ID:     uuid.New().String(),
		Email:  NormalizeEmail(email),
		Source: source,
		Status: LeadStatusNew,
		Metadata: LeadMetadata{
			SubmissionCount:  1,
			LastSubmissionAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type LeadRepositoryInterface interface {
	// Create inserts lead unless another lead with the same email was created
	// at or after dedupSince, in which case it returns ErrLeadExists. The check
	// and insert are serialized per email.
	Create(ctx context.Context, lead *Lead, dedupSince time.Time) error
	// Merge persists the overlaid fields and score of an existing lead and
	// bumps its submission count atomically, writing the stored count back
	// into lead.Metadata.
	Merge(ctx context.Context, lead *Lead) error
	FindByID(ctx context.Context, id string) (*Lead, error)
	// FindRecentByEmail returns the newest lead with this normalized email
	// created at or after since, or ErrLeadNotFound.
	FindRecentByEmail(ctx context.Context, email string, since time.Time) (*Lead, error)
	UpdateScore(ctx context.Context, id string, score int, breakdown ScoreBreakdown) error
	UpdateStatus(ctx context.Context, id string, status LeadStatus) error
	// Delete returns ErrLeadReferenced while a listing or purchase points at
	// the lead.
	Delete(ctx context.Context, id string) error
}
