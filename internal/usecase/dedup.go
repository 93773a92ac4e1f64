package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

const DefaultDedupWindow = 24 * time.Hour

type ResolveMode string

const (
	ResolveCreate ResolveMode = "create"
	ResolveMerge  ResolveMode = "merge"
)

type Resolution struct {
	Mode   ResolveMode
	Target *entity.Lead
}

type recentLeadFinder interface {
	FindRecentByEmail(ctx context.Context, email string, since time.Time) (*entity.Lead, error)
}

// Resolver collapses submissions from the same normalized email within the
// window into one lead.
type Resolver struct {
	leads  recentLeadFinder
	window time.Duration
}

func NewResolver(leads recentLeadFinder, window time.Duration) *Resolver {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Resolver{leads: leads, window: window}
}

func (r *Resolver) Since(now time.Time) time.Time {
	return now.Add(-r.window)
}

// Resolve returns the lead the submission should be written to. In merge
// mode the target already carries the overlaid fields; in create mode it is a
// fresh, unsaved lead.
func (r *Resolver) Resolve(ctx context.Context, input SubmitLeadInput, now time.Time) (Resolution, error) {
	email := entity.NormalizeEmail(input.Email)

	existing, err := r.leads.FindRecentByEmail(ctx, email, r.Since(now))
	if err != nil && !errors.Is(err, entity.ErrLeadNotFound) {
		return Resolution{}, err
	}

	if existing == nil {
		lead := entity.NewLead(email, strings.TrimSpace(input.Source), now)
		overlay(lead, input)
		return Resolution{Mode: ResolveCreate, Target: lead}, nil
	}

	overlay(existing, input)
	existing.Metadata.SubmissionCount++
	existing.Metadata.LastSubmissionAt = now
	existing.UpdatedAt = now
	return Resolution{Mode: ResolveMerge, Target: existing}, nil
}

// overlay copies every non-empty submission field onto lead. Source is kept
// from the first submission so attribution stays first-touch.
func overlay(lead *entity.Lead, input SubmitLeadInput) {
	setIfPresent(&lead.Name, input.Name)
	setIfPresent(&lead.Company, input.Company)
	setIfPresent(&lead.Phone, input.Phone)
	setIfPresent(&lead.Message, input.Message)
	setIfPresent(&lead.SourceID, input.SourceID)
	if input.CalculationData != nil {
		calc := *input.CalculationData
		lead.CalculationData = &calc
	}
	mergeMetadata(&lead.Metadata, input.Metadata)
}

func mergeMetadata(dst *entity.LeadMetadata, src SubmissionMetadata) {
	setIfPresent(&dst.UTMSource, src.UTMSource)
	setIfPresent(&dst.UTMCampaign, src.UTMCampaign)
	setIfPresent(&dst.Referrer, src.Referrer)
	setIfPresent(&dst.IPAddress, src.IPAddress)
	setIfPresent(&dst.UserAgent, src.UserAgent)
	setIfPresent(&dst.Industry, src.Industry)
	setIfPresent(&dst.Location, src.Location)
	if src.SessionDuration > 0 {
		dst.SessionDuration = src.SessionDuration
	}
	if len(src.Extra) > 0 {
		if dst.Extra == nil {
			dst.Extra = make(map[string]string, len(src.Extra))
		}
		for k, v := range src.Extra {
			dst.Extra[k] = v
		}
	}
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
