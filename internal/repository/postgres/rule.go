package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/database"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

// RuleRepository implements repository.RuleRepository using PostgreSQL.
// Conditions are stored as jsonb so the closed condition set can grow without
// a migration per field.
type RuleRepository struct {
	pool database.DBTX
}

// NewRuleRepository creates a new PostgreSQL-backed promotion rule repository.
func NewRuleRepository(pool database.DBTX) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// Create inserts a new promotion rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.PromotionRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal rule conditions: %w", err)
	}

	query := `
		INSERT INTO promotion_rules (id, name, priority, conditions, discount_percentage,
		                             start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.Priority,
		conditionsJSON,
		rule.Actions.DiscountPercent,
		rule.StartDate,
		rule.EndDate,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion rule", "name", rule.Name)
		}
		return fmt.Errorf("create promotion rule: %w", err)
	}

	return nil
}

// GetByID retrieves a promotion rule by its unique identifier.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.PromotionRule, error) {
	query := `
		SELECT id, name, priority, conditions, discount_percentage,
		       start_date, end_date, is_active, created_at, updated_at
		FROM promotion_rules
		WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion rule", id)
		}
		return nil, fmt.Errorf("get promotion rule by id: %w", err)
	}

	return rule, nil
}

// List returns promotion rules ordered by priority (highest first, creation
// time as tiebreaker) with the total count for pagination.
func (r *RuleRepository) List(ctx context.Context, f repository.RuleFilter) ([]domain.PromotionRule, int, error) {
	page := f.Page
	if page <= 0 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	query := `
		SELECT id, name, priority, conditions, discount_percentage,
		       start_date, end_date, is_active, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM promotion_rules
		WHERE ($1::bool IS NULL OR is_active = $1)
		ORDER BY priority DESC, created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, f.IsActive, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotion rules: %w", err)
	}
	defer rows.Close()

	var (
		rules      []domain.PromotionRule
		totalCount int
	)

	for rows.Next() {
		var (
			rule           domain.PromotionRule
			conditionsJSON []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Priority,
			&conditionsJSON,
			&rule.Actions.DiscountPercent,
			&rule.StartDate,
			&rule.EndDate,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan promotion rule row: %w", err)
		}
		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			return nil, 0, fmt.Errorf("unmarshal rule conditions: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rule rows: %w", err)
	}

	if rules == nil {
		rules = []domain.PromotionRule{}
	}

	return rules, totalCount, nil
}

// Update rewrites a promotion rule's mutable fields.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.PromotionRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal rule conditions: %w", err)
	}

	query := `
		UPDATE promotion_rules
		SET name = $1, priority = $2, conditions = $3, discount_percentage = $4,
		    start_date = $5, end_date = $6, is_active = $7, updated_at = $8
		WHERE id = $9`

	ct, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.Priority,
		conditionsJSON,
		rule.Actions.DiscountPercent,
		rule.StartDate,
		rule.EndDate,
		rule.IsActive,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion rule", "name", rule.Name)
		}
		return fmt.Errorf("update promotion rule: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion rule", rule.ID)
	}

	return nil
}

// Delete removes a promotion rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM promotion_rules WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete promotion rule: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion rule", id)
	}

	return nil
}

// ListExpired returns active rules whose end date has passed, oldest first.
func (r *RuleRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.PromotionRule, error) {
	query := `
		SELECT id, name, priority, conditions, discount_percentage,
		       start_date, end_date, is_active, created_at, updated_at
		FROM promotion_rules
		WHERE is_active = TRUE AND end_date IS NOT NULL AND end_date < $1
		ORDER BY end_date ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired promotion rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.PromotionRule
	for rows.Next() {
		var (
			rule           domain.PromotionRule
			conditionsJSON []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Priority,
			&conditionsJSON,
			&rule.Actions.DiscountPercent,
			&rule.StartDate,
			&rule.EndDate,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expired rule row: %w", err)
		}
		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired rule rows: %w", err)
	}

	if rules == nil {
		rules = []domain.PromotionRule{}
	}

	return rules, nil
}

// scanRule reads a single rule row in the standard column order.
func scanRule(row pgx.Row) (*domain.PromotionRule, error) {
	var (
		rule           domain.PromotionRule
		conditionsJSON []byte
	)
	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Priority,
		&conditionsJSON,
		&rule.Actions.DiscountPercent,
		&rule.StartDate,
		&rule.EndDate,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
	}
	return &rule, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
