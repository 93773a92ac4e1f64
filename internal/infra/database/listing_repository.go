package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medjobs/leadmarket/internal/entity"
)

const listingColumns = `id, lead_id, base_price, current_price, price_category, engagement_level,
	max_purchases, current_purchases, is_available, preview, expires_at, created_at, updated_at`

type ListingRepository struct {
	DB *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{DB: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *entity.Listing) error {
	preview, err := jsonParam(l.Preview)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.LeadID, l.BasePrice, l.CurrentPrice, l.PriceCategory, l.EngagementLevel,
		l.MaxPurchases, l.CurrentPurchases, l.IsAvailable, preview, l.ExpiresAt, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrListingExists
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) FindByLeadID(ctx context.Context, leadID string) (*entity.Listing, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE lead_id = $1`, leadID)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrListingNotFound
	}
	return l, err
}

// ListAvailable returns one page of purchasable listings, newest first, plus
// the total number of matches.
func (r *ListingRepository) ListAvailable(ctx context.Context, f entity.ListingFilter, now time.Time) ([]*entity.Listing, int, error) {
	where, args := listingFilterClause(f, now)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	if total == 0 {
		return []*entity.Listing{}, 0, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		listingColumns, where, len(args)+1, len(args)+2)
	rows, err := r.DB.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := []*entity.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	return listings, total, rows.Err()
}

func listingFilterClause(f entity.ListingFilter, now time.Time) (string, []any) {
	conds := []string{"is_available", "current_purchases < max_purchases", "expires_at > $1"}
	args := []any{now}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Industry != "" {
		add("lower(preview->>'industry') = lower($%d)", f.Industry)
	}
	if f.Location != "" {
		add("preview->>'location' ILIKE '%%' || $%d || '%%'", f.Location)
	}
	if f.PriceCategory != "" {
		add("price_category = $%d", string(f.PriceCategory))
	}
	// The preview score is the score the listing was priced at; rescoring a
	// lead does not move an existing listing.
	if f.MinScore > 0 {
		add("(preview->>'score')::int >= $%d", f.MinScore)
	}
	if f.MaxPrice > 0 {
		add("current_price <= $%d", f.MaxPrice)
	}
	return strings.Join(conds, " AND "), args
}

func (r *ListingRepository) ExistsForLead(ctx context.Context, leadID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM listings WHERE lead_id = $1)`, leadID).Scan(&exists)
	return exists, err
}

// ExpireStale flips listings whose expiry has passed to unavailable.
func (r *ListingRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE listings SET is_available = FALSE, updated_at = $1 WHERE is_available AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanListing(row rowScanner) (*entity.Listing, error) {
	var (
		l       entity.Listing
		preview []byte
	)
	err := row.Scan(
		&l.ID, &l.LeadID, &l.BasePrice, &l.CurrentPrice, &l.PriceCategory, &l.EngagementLevel,
		&l.MaxPurchases, &l.CurrentPurchases, &l.IsAvailable, &preview, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := scanJSON(preview, &l.Preview); err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return &l, nil
}
