package usecase

import (
	"context"
	"fmt"

	"github.com/medjobs/leadmarket/internal/logger"
)

// Transaction runs a sequence of steps that span systems without a shared
// database transaction (e.g. the payment gateway and Postgres). When a step
// fails, the compensations of the steps that already ran are applied in
// reverse order.
type Transaction struct {
	steps  []step
	logger logger.Logger
}

type step struct {
	name       string
	run        func(context.Context) error
	compensate func(context.Context) error
}

func NewTransaction(log logger.Logger) *Transaction {
	if log == nil {
		log = logger.NewNop()
	}
	return &Transaction{logger: log}
}

// AddStep registers a step; compensate may be nil.
func (t *Transaction) AddStep(name string, run, compensate func(context.Context) error) {
	t.steps = append(t.steps, step{name: name, run: run, compensate: compensate})
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, s := range t.steps {
		if err := s.run(ctx); err != nil {
			t.rollback(ctx, i)
			return fmt.Errorf("step '%s' failed: %w (rolled back %d steps)", s.name, err, i)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		s := t.steps[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			t.logger.Error("compensation failed, manual reconciliation needed",
				logger.String("step", s.name), logger.Error(err))
		}
	}
}
