package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
	"github.com/medjobs/leadmarket/internal/logger"
	"github.com/medjobs/leadmarket/internal/scoring"
	"github.com/medjobs/leadmarket/internal/spam"
)

const (
	HotLeadThreshold = 80

	acceptedMessage = "Thanks! Your information was received and our team will be in touch shortly."
)

type SubmitLeadUseCase struct {
	Limiter  RateLimiter
	Spam     SpamClassifier
	Resolver *Resolver
	Repo     entity.LeadRepositoryInterface
	Scorer   *scoring.Engine
	Events   EventPublisher
	Notifier HotLeadNotifier
	Logger   logger.Logger
	Now      func() time.Time
}

func NewSubmitLeadUseCase(
	limiter RateLimiter,
	classifier SpamClassifier,
	resolver *Resolver,
	repo entity.LeadRepositoryInterface,
	scorer *scoring.Engine,
	events EventPublisher,
	notifier HotLeadNotifier,
	log logger.Logger,
) *SubmitLeadUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &SubmitLeadUseCase{
		Limiter:  limiter,
		Spam:     classifier,
		Resolver: resolver,
		Repo:     repo,
		Scorer:   scorer,
		Events:   events,
		Notifier: notifier,
		Logger:   log,
		Now:      time.Now,
	}
}

// Execute runs the intake pipeline. Rate-limited and spam submissions get the
// same response as an accepted one, minus the lead id and score.
func (uc *SubmitLeadUseCase) Execute(ctx context.Context, input SubmitLeadInput) (*SubmitLeadOutput, error) {
	identity := strings.TrimSpace(input.Identity)
	if identity == "" {
		identity = "anonymous"
	}

	if !uc.Limiter.Allow(ctx, identity) {
		uc.Logger.Warn("lead submission rejected",
			logger.String("reason", string(OutcomeRateLimited)),
			logger.String("code", CodeRateLimited),
			logger.String("identity", identity))
		return silentAccept(OutcomeRateLimited), nil
	}

	if err := joinValidation(ValidateSubmitLeadInput(input)); err != nil {
		return nil, err
	}

	verdict := uc.Spam.Classify(spam.Submission{
		Email:   input.Email,
		Name:    input.Name,
		Company: input.Company,
		Message: input.Message,
	})
	if verdict.IsSpam {
		uc.Logger.Warn("lead submission rejected",
			logger.String("reason", string(OutcomeSpam)),
			logger.String("code", CodeSpamRejected),
			logger.String("spam_reason", verdict.Reason),
			logger.String("identity", identity),
			logger.String("source", input.Source))
		return silentAccept(OutcomeSpam), nil
	}

	now := uc.Now()
	lead, outcome, err := uc.persist(ctx, input, now)
	if err != nil {
		return nil, err
	}

	event := entity.EventLeadCreated
	if outcome == OutcomeMerged {
		event = entity.EventLeadMerged
	}
	uc.Events.Publish(ctx, event, lead)

	if outcome == OutcomeCreated && lead.Score >= HotLeadThreshold && uc.Notifier != nil {
		go uc.notifyHotLead(*lead)
	}

	uc.Logger.Info("lead accepted",
		logger.String("lead_id", lead.ID),
		logger.String("outcome", string(outcome)),
		logger.Int("score", lead.Score),
		logger.Int("submission_count", lead.Metadata.SubmissionCount))

	score := lead.Score
	return &SubmitLeadOutput{
		Success: true,
		Message: acceptedMessage,
		LeadID:  lead.ID,
		Score:   &score,
		Outcome: outcome,
	}, nil
}

// persist resolves, scores and stores the submission. A concurrent request for
// the same email can win the insert; the submission is then merged into the
// winner instead.
func (uc *SubmitLeadUseCase) persist(ctx context.Context, input SubmitLeadInput, now time.Time) (*entity.Lead, IntakeOutcome, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := uc.Resolver.Resolve(ctx, input, now)
		if err != nil {
			return nil, "", internal("failed to look up existing lead", err)
		}
		uc.Scorer.Apply(res.Target)

		if res.Mode == ResolveMerge {
			if err := uc.Repo.Merge(ctx, res.Target); err != nil {
				return nil, "", internal("failed to merge lead", err)
			}
			return res.Target, OutcomeMerged, nil
		}

		err = uc.Repo.Create(ctx, res.Target, uc.Resolver.Since(now))
		if err == nil {
			return res.Target, OutcomeCreated, nil
		}
		if !errors.Is(err, entity.ErrLeadExists) {
			return nil, "", internal("failed to create lead", err)
		}
	}
	return nil, "", internal("failed to create lead", entity.ErrLeadExists)
}

func (uc *SubmitLeadUseCase) notifyHotLead(lead entity.Lead) {
	if err := uc.Notifier.NotifyHotLead(&lead); err != nil {
		uc.Logger.Error("hot lead alert failed",
			logger.String("lead_id", lead.ID), logger.Error(err))
	}
}

func silentAccept(outcome IntakeOutcome) *SubmitLeadOutput {
	return &SubmitLeadOutput{Success: true, Message: acceptedMessage, Outcome: outcome}
}
