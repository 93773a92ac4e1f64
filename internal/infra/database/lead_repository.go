package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

const leadColumns = `id, email, name, company, phone, message, source, source_id, score, score_breakdown,
	status, calculation_data, metadata, submission_count, last_submission_at, created_at, updated_at`

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type leadParams struct {
	breakdown, calculation, metadata any
}

func encodeLead(lead *entity.Lead) (leadParams, error) {
	var p leadParams
	var err error
	if p.breakdown, err = jsonParam(lead.ScoreBreakdown); err != nil {
		return p, err
	}
	if lead.CalculationData != nil {
		if p.calculation, err = jsonParam(lead.CalculationData); err != nil {
			return p, err
		}
	}
	p.metadata, err = jsonParam(lead.Metadata)
	return p, err
}

// Create holds a transaction-scoped advisory lock on the email while it checks
// the dedup window, so two concurrent first submissions cannot both insert.
func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead, dedupSince time.Time) error {
	params, err := encodeLead(lead)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lead.Email); err != nil {
		return fmt.Errorf("lock email: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE email = $1 AND created_at >= $2)`,
		lead.Email, dedupSince,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check recent lead: %w", err)
	}
	if exists {
		return entity.ErrLeadExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		lead.ID, lead.Email, lead.Name, lead.Company, lead.Phone, lead.Message,
		lead.Source, lead.SourceID, lead.Score, params.breakdown, lead.Status,
		params.calculation, params.metadata, lead.Metadata.SubmissionCount,
		lead.Metadata.LastSubmissionAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	return tx.Commit()
}

// Merge increments submission_count in SQL rather than writing the value read
// earlier, so concurrent merges never lose a submission.
func (r *LeadRepository) Merge(ctx context.Context, lead *entity.Lead) error {
	params, err := encodeLead(lead)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}

	var count int
	err = r.DB.QueryRowContext(ctx, `
		UPDATE leads SET
			name = $2, company = $3, phone = $4, message = $5, source_id = $6,
			score = $7, score_breakdown = $8, calculation_data = $9, metadata = $10,
			submission_count = submission_count + 1,
			last_submission_at = $11, updated_at = $12
		WHERE id = $1
		RETURNING submission_count`,
		lead.ID, lead.Name, lead.Company, lead.Phone, lead.Message, lead.SourceID,
		lead.Score, params.breakdown, params.calculation, params.metadata,
		lead.Metadata.LastSubmissionAt, lead.UpdatedAt,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrLeadNotFound
	}
	if err != nil {
		return fmt.Errorf("merge lead: %w", err)
	}

	lead.Metadata.SubmissionCount = count
	return nil
}

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (r *LeadRepository) FindRecentByEmail(ctx context.Context, email string, since time.Time) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE email = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1`,
		email, since,
	)
	return scanLead(row)
}

func (r *LeadRepository) UpdateScore(ctx context.Context, id string, score int, breakdown entity.ScoreBreakdown) error {
	b, err := jsonParam(breakdown)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET score = $2, score_breakdown = $3, updated_at = NOW() WHERE id = $1`,
		id, score, b,
	)
	return affectedOne(res, err, entity.ErrLeadNotFound)
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	return affectedOne(res, err, entity.ErrLeadNotFound)
}

func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return entity.ErrLeadReferenced
	}
	return affectedOne(res, err, entity.ErrLeadNotFound)
}

func scanLead(row rowScanner) (*entity.Lead, error) {
	var (
		lead                         entity.Lead
		breakdown, calculation, meta []byte
		submissionCount              int
		lastSubmission               time.Time
	)
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Company, &lead.Phone, &lead.Message,
		&lead.Source, &lead.SourceID, &lead.Score, &breakdown, &lead.Status,
		&calculation, &meta, &submissionCount, &lastSubmission,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := scanJSON(breakdown, &lead.ScoreBreakdown); err != nil {
		return nil, fmt.Errorf("decode score breakdown: %w", err)
	}
	if len(calculation) > 0 {
		lead.CalculationData = &entity.CalculationData{}
		if err := scanJSON(calculation, lead.CalculationData); err != nil {
			return nil, fmt.Errorf("decode calculation data: %w", err)
		}
	}
	if err := scanJSON(meta, &lead.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	lead.Metadata.SubmissionCount = submissionCount
	lead.Metadata.LastSubmissionAt = lastSubmission

	return &lead, nil
}

func affectedOne(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
