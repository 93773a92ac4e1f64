package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

const purchaseColumns = `id, lead_id, listing_id, buyer_id, price, currency, payment_status,
	access_granted, payment_intent_id, completed_at, created_at, updated_at`

type PurchaseRepository struct {
	DB *sql.DB
}

func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

// Reserve claims a slot with a single conditional UPDATE: the row only changes
// while a slot is left, and is_available is recomputed in the same statement.
// The purchase insert shares the transaction, so a duplicate buyer rolls the
// increment back.
func (r *PurchaseRepository) Reserve(ctx context.Context, p *entity.Purchase, now time.Time) (*entity.Listing, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE listings SET
			current_purchases = current_purchases + 1,
			is_available = (current_purchases + 1 < max_purchases),
			updated_at = $2
		WHERE lead_id = $1
			AND is_available
			AND current_purchases < max_purchases
			AND expires_at > $2
		RETURNING `+listingColumns,
		p.LeadID, now,
	)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrListingUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim listing slot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.LeadID, listing.ID, p.BuyerID, p.Price, p.Currency, p.PaymentStatus,
		p.AccessGranted, p.PaymentIntentID, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, entity.ErrDuplicatePurchase
		}
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *PurchaseRepository) FindByID(ctx context.Context, id string) (*entity.Purchase, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrPurchaseNotFound
	}
	return p, err
}

func (r *PurchaseRepository) ExistsForBuyer(ctx context.Context, leadID, buyerID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE lead_id = $1 AND buyer_id = $2)`,
		leadID, buyerID,
	).Scan(&exists)
	return exists, err
}

func (r *PurchaseRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*entity.Purchase, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE buyer_id = $1 ORDER BY created_at DESC`,
		buyerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []*entity.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// MarkCompleted only moves a pending purchase; the bool reports whether this
// call made the transition.
func (r *PurchaseRepository) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE purchases
		SET payment_status = 'completed', access_granted = TRUE, completed_at = $2, updated_at = $2
		WHERE id = $1 AND payment_status = 'pending'`,
		id, at,
	)
	return transitioned(res, err)
}

func (r *PurchaseRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE purchases SET payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`,
		id,
	)
	return transitioned(res, err)
}

func transitioned(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanPurchase(row rowScanner) (*entity.Purchase, error) {
	var (
		p           entity.Purchase
		completedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.LeadID, &p.ListingID, &p.BuyerID, &p.Price, &p.Currency, &p.PaymentStatus,
		&p.AccessGranted, &p.PaymentIntentID, &completedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return &p, nil
}
