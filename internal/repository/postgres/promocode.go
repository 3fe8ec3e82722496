package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/database"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

// PromoCodeRepository implements repository.PromoCodeRepository using PostgreSQL.
type PromoCodeRepository struct {
	pool database.DBTX
}

// NewPromoCodeRepository creates a new PostgreSQL-backed promo code repository.
func NewPromoCodeRepository(pool database.DBTX) *PromoCodeRepository {
	return &PromoCodeRepository{pool: pool}
}

const promoCodeColumns = `id, code, type, value, duration, start_date, end_date,
	       usage_limit, usage_count, min_order_amount, owner_id, status, is_active,
	       activation_price, created_at, updated_at`

// Create inserts a new promo code. Codes are unique case-insensitively; a
// duplicate maps to an already-exists error.
func (r *PromoCodeRepository) Create(ctx context.Context, code *domain.PromoCode) error {
	query := `
		INSERT INTO promo_codes (id, code, type, value, duration, start_date, end_date,
		                         usage_limit, usage_count, min_order_amount, owner_id, status,
		                         is_active, activation_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		code.ID,
		code.Code,
		code.Type,
		code.Value,
		code.Duration,
		code.StartDate,
		code.EndDate,
		code.UsageLimit,
		code.UsageCount,
		code.MinOrderAmount,
		code.OwnerID,
		code.Status,
		code.IsActive,
		code.ActivationPrice,
		code.CreatedAt,
		code.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promo code", "code", code.Code)
		}
		return fmt.Errorf("create promo code: %w", err)
	}

	return nil
}

// GetByID retrieves a promo code by its unique identifier.
func (r *PromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	query := `
		SELECT ` + promoCodeColumns + `
		FROM promo_codes
		WHERE id = $1`

	code, err := scanPromoCode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promo code", id)
		}
		return nil, fmt.Errorf("get promo code by id: %w", err)
	}

	return code, nil
}

// GetByCode looks a promo code up by its value, case-insensitively. The code
// column stores the normalized uppercase form, so lookup uppercases the input.
func (r *PromoCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `
		SELECT ` + promoCodeColumns + `
		FROM promo_codes
		WHERE code = upper($1)`

	pc, err := scanPromoCode(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promo code", code)
		}
		return nil, fmt.Errorf("get promo code by code: %w", err)
	}

	return pc, nil
}

// ListByOwner returns an owner's promo codes, newest first.
func (r *PromoCodeRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.PromoCode, error) {
	query := `
		SELECT ` + promoCodeColumns + `
		FROM promo_codes
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list promo codes by owner: %w", err)
	}
	defer rows.Close()

	return collectPromoCodes(rows)
}

// Update rewrites a promo code's mutable fields.
func (r *PromoCodeRepository) Update(ctx context.Context, code *domain.PromoCode) error {
	query := `
		UPDATE promo_codes
		SET status = $1, is_active = $2, start_date = $3, end_date = $4,
		    usage_limit = $5, min_order_amount = $6, activation_price = $7, updated_at = $8
		WHERE id = $9`

	ct, err := r.pool.Exec(ctx, query,
		code.Status,
		code.IsActive,
		code.StartDate,
		code.EndDate,
		code.UsageLimit,
		code.MinOrderAmount,
		code.ActivationPrice,
		code.UpdatedAt,
		code.ID,
	)
	if err != nil {
		return fmt.Errorf("update promo code: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promo code", code.ID)
	}

	return nil
}

// IncrementUsage consumes one usage. The guard on usage_limit makes the
// increment conditional, so concurrent redeems cannot push the counter past
// the limit; zero rows affected means the code is exhausted (callers verify
// existence before redeeming).
func (r *PromoCodeRepository) IncrementUsage(ctx context.Context, id string) error {
	query := `
		UPDATE promo_codes
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment promo code usage: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.StateConflict("promo code usage limit reached")
	}

	return nil
}

// ListExpired returns ACTIVE codes past their end date or usage limit,
// oldest end date first.
func (r *PromoCodeRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.PromoCode, error) {
	query := `
		SELECT ` + promoCodeColumns + `
		FROM promo_codes
		WHERE status = 'ACTIVE'
		  AND (end_date < $1 OR (usage_limit IS NOT NULL AND usage_count >= usage_limit))
		ORDER BY end_date ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired promo codes: %w", err)
	}
	defer rows.Close()

	return collectPromoCodes(rows)
}

func scanPromoCode(row pgx.Row) (*domain.PromoCode, error) {
	var c domain.PromoCode
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Type,
		&c.Value,
		&c.Duration,
		&c.StartDate,
		&c.EndDate,
		&c.UsageLimit,
		&c.UsageCount,
		&c.MinOrderAmount,
		&c.OwnerID,
		&c.Status,
		&c.IsActive,
		&c.ActivationPrice,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectPromoCodes(rows pgx.Rows) ([]domain.PromoCode, error) {
	var codes []domain.PromoCode

	for rows.Next() {
		var c domain.PromoCode
		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Type,
			&c.Value,
			&c.Duration,
			&c.StartDate,
			&c.EndDate,
			&c.UsageLimit,
			&c.UsageCount,
			&c.MinOrderAmount,
			&c.OwnerID,
			&c.Status,
			&c.IsActive,
			&c.ActivationPrice,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan promo code row: %w", err)
		}
		codes = append(codes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promo code rows: %w", err)
	}

	if codes == nil {
		codes = []domain.PromoCode{}
	}

	return codes, nil
}
