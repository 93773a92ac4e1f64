package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medjobs/leadmarket/internal/entity"
)

type RegisterWebhookUseCase struct {
	Repo entity.WebhookEndpointRepositoryInterface
	Now  func() time.Time
}

func NewRegisterWebhookUseCase(repo entity.WebhookEndpointRepositoryInterface) *RegisterWebhookUseCase {
	return &RegisterWebhookUseCase{Repo: repo, Now: time.Now}
}

func (uc *RegisterWebhookUseCase) Execute(ctx context.Context, input RegisterWebhookInput) (*RegisterWebhookOutput, error) {
	if err := joinValidation(ValidateWebhookInput(input)); err != nil {
		return nil, err
	}

	endpoint := &entity.WebhookEndpoint{
		ID:        uuid.New().String(),
		URL:       strings.TrimSpace(input.URL),
		Secret:    input.Secret,
		Events:    dedupeEvents(input.Events),
		Active:    true,
		CreatedAt: uc.Now(),
	}
	if err := uc.Repo.Create(ctx, endpoint); err != nil {
		return nil, internal("failed to register webhook", err)
	}

	return &RegisterWebhookOutput{
		ID:        endpoint.ID,
		URL:       endpoint.URL,
		Events:    endpoint.Events,
		Signed:    endpoint.Secret != "",
		Active:    endpoint.Active,
		CreatedAt: endpoint.CreatedAt,
	}, nil
}

func dedupeEvents(events []string) []string {
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if !seen[ev] {
			seen[ev] = true
			out = append(out, ev)
		}
	}
	return out
}
