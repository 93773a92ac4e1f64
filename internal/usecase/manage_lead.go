package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/scoring"
)

// ManageLeadUseCase backs the admin lead endpoints.
type ManageLeadUseCase struct {
	Leads    entity.LeadRepositoryInterface
	Listings entity.ListingRepositoryInterface
	Scorer   *scoring.Engine
	Events   EventPublisher
	Logger   logger.Logger
	Now      func() time.Time
}

func NewManageLeadUseCase(
	leads entity.LeadRepositoryInterface,
	listings entity.ListingRepositoryInterface,
	scorer *scoring.Engine,
	events EventPublisher,
	log logger.Logger,
) *ManageLeadUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &ManageLeadUseCase{
		Leads:    leads,
		Listings: listings,
		Scorer:   scorer,
		Events:   events,
		Logger:   log,
		Now:      time.Now,
	}
}

func (uc *ManageLeadUseCase) Get(ctx context.Context, id string) (*entity.Lead, error) {
	if !validID(id) {
		return nil, notFound("lead not found")
	}
	lead, err := uc.Leads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, notFound("lead not found")
		}
		return nil, internal("failed to load lead", err)
	}
	return lead, nil
}

// Rescore recomputes the score from the lead's stored fields and overwrites
// the previous score and breakdown. An existing listing keeps the preview and
// price it was created with.
func (uc *ManageLeadUseCase) Rescore(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := lead.Score
	result := uc.Scorer.Apply(lead)
	if err := uc.Leads.UpdateScore(ctx, lead.ID, result.Score, result.Breakdown); err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, notFound("lead not found")
		}
		return nil, internal("failed to store score", err)
	}
	lead.UpdatedAt = uc.Now()

	uc.Logger.Info("lead rescored",
		logger.String("lead_id", lead.ID),
		logger.Int("previous_score", previous),
		logger.Int("score", lead.Score))
	uc.Events.Publish(ctx, entity.EventLeadScored, lead)
	return lead, nil
}

func (uc *ManageLeadUseCase) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus) (*entity.Lead, error) {
	if !status.Valid() {
		return nil, validationError("validation failed: status (must be new, contacted, qualified, converted or lost)")
	}

	lead, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status == status {
		return lead, nil
	}

	if err := uc.Leads.UpdateStatus(ctx, lead.ID, status); err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return nil, notFound("lead not found")
		}
		return nil, internal("failed to update lead status", err)
	}
	lead.Status = status
	lead.UpdatedAt = uc.Now()

	uc.Events.Publish(ctx, entity.EventLeadStatusChanged, lead)
	return lead, nil
}

// Delete removes a lead permanently. Leads already offered on the marketplace
// are kept so purchases stay resolvable.
func (uc *ManageLeadUseCase) Delete(ctx context.Context, id string) error {
	if _, err := uc.Get(ctx, id); err != nil {
		return err
	}

	listed, err := uc.Listings.ExistsForLead(ctx, id)
	if err != nil {
		return internal("failed to check listing", err)
	}
	if listed {
		return conflict("lead has a marketplace listing and cannot be deleted")
	}

	if err := uc.Leads.Delete(ctx, id); err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return notFound("lead not found")
		}
		// A listing created after the check above.
		if errors.Is(err, entity.ErrLeadReferenced) {
			return conflict("lead has a marketplace listing and cannot be deleted")
		}
		return internal("failed to delete lead", err)
	}
	uc.Logger.Info("lead deleted", logger.String("lead_id", id))
	return nil
}
