package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/database"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
// Products and variants live in separate tables; listing flattens both into
// the unified priced-entity shape with a UNION ALL.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// pricedEntityUnion flattens products and variants into one row shape.
// Variants inherit name, owner, category, and flags from their parent
// product; their reference is the SKU.
const pricedEntityUnion = `
	SELECT 'product' AS kind, p.id, p.reference, p.name, p.owner_id, p.category_id,
	       p.is_new, p.is_best_seller, p.is_promotion,
	       p.price, p.old_price, p.applied_ref,
	       NULL AS product_id, NULL AS color, NULL AS size, 0 AS stock,
	       p.created_at, p.updated_at
	FROM products p
	UNION ALL
	SELECT 'variant', v.id, v.sku, p.name, p.owner_id, p.category_id,
	       p.is_new, p.is_best_seller, p.is_promotion,
	       v.price, v.old_price, v.applied_ref,
	       v.product_id, v.color, v.size, v.stock,
	       v.created_at, v.updated_at
	FROM product_variants v
	JOIN products p ON p.id = v.product_id`

// ListEntities returns products and variants matching the filter in stable
// ID order so callers can page through the catalog in chunks.
func (r *CatalogRepository) ListEntities(ctx context.Context, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT * FROM (` + pricedEntityUnion + `
		) e
		WHERE ($1::text IS NULL OR e.owner_id = $1)
		  AND e.id > $2
		ORDER BY e.id ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, f.OwnerID, f.AfterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ListTaggedBy returns entities whose pricing is currently owned by the given
// ref.
func (r *CatalogRepository) ListTaggedBy(ctx context.Context, ref domain.DiscountRef, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT * FROM (` + pricedEntityUnion + `
		) e
		WHERE e.applied_ref = $1
		  AND ($2::text IS NULL OR e.owner_id = $2)
		  AND e.id > $3
		ORDER BY e.id ASC
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, ref.String(), f.OwnerID, f.AfterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities tagged %s: %w", ref, err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// CompareAndSetPricing writes the pricing fields of one entity guarded by its
// current applied ref. The guard (`applied_ref IS NOT DISTINCT FROM expected`)
// makes the write a compare-and-set: a concurrent apply or revert that changed
// the tag first causes this write to affect zero rows, returned as false with
// no error. A missing entity also returns false.
func (r *CatalogRepository) CompareAndSetPricing(ctx context.Context, kind domain.EntityKind, id string, expected *domain.DiscountRef, u repository.PricingUpdate) (bool, error) {
	var query string
	switch kind {
	case domain.EntityKindProduct:
		// is_promotion is the storefront badge: on while a promotion rule
		// owns the pricing, off otherwise (including markups).
		query = `
			UPDATE products
			SET price = $1, old_price = $2, applied_ref = $3, is_promotion = $4, updated_at = NOW()
			WHERE id = $5 AND applied_ref IS NOT DISTINCT FROM $6`
	case domain.EntityKindVariant:
		query = `
			UPDATE product_variants
			SET price = $1, old_price = $2, applied_ref = $3, updated_at = NOW()
			WHERE id = $4 AND applied_ref IS NOT DISTINCT FROM $5`
	default:
		return false, apperrors.InvalidInput(fmt.Sprintf("unknown entity kind %q", kind))
	}

	args := []any{u.Price, u.OldPrice, refToText(u.AppliedRef)}
	if kind == domain.EntityKindProduct {
		isPromotion := u.AppliedRef != nil && u.AppliedRef.Kind == domain.RefKindRule
		args = append(args, isPromotion)
	}
	args = append(args, id, refToText(expected))

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("compare and set pricing for %s %s: %w", kind, id, err)
	}

	return ct.RowsAffected() == 1, nil
}

// GetProduct retrieves a single product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.PricedEntity, error) {
	query := `
		SELECT id, reference, name, owner_id, category_id,
		       is_new, is_best_seller, is_promotion,
		       price, old_price, applied_ref, created_at, updated_at
		FROM products
		WHERE id = $1`

	var (
		e       domain.PricedEntity
		refText *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Reference,
		&e.Name,
		&e.OwnerID,
		&e.CategoryID,
		&e.IsNew,
		&e.IsBestSeller,
		&e.IsPromotion,
		&e.Price,
		&e.OldPrice,
		&refText,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	e.Kind = domain.EntityKindProduct
	if e.AppliedRef, err = refFromText(refText); err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return &e, nil
}

// GetVariant retrieves a single variant by ID, flattened with its parent
// product's attributes.
func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*domain.PricedEntity, error) {
	query := `
		SELECT v.id, v.sku, p.name, p.owner_id, p.category_id,
		       p.is_new, p.is_best_seller, p.is_promotion,
		       v.price, v.old_price, v.applied_ref,
		       v.product_id, v.color, v.size, v.stock,
		       v.created_at, v.updated_at
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`

	var (
		e       domain.PricedEntity
		refText *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Reference,
		&e.Name,
		&e.OwnerID,
		&e.CategoryID,
		&e.IsNew,
		&e.IsBestSeller,
		&e.IsPromotion,
		&e.Price,
		&e.OldPrice,
		&refText,
		&e.ProductID,
		&e.Color,
		&e.Size,
		&e.Stock,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", id)
		}
		return nil, fmt.Errorf("get variant by id: %w", err)
	}

	e.Kind = domain.EntityKindVariant
	if e.AppliedRef, err = refFromText(refText); err != nil {
		return nil, fmt.Errorf("get variant by id: %w", err)
	}

	return &e, nil
}

// scanEntities reads rows in the unified priced-entity column order.
func scanEntities(rows pgx.Rows) ([]domain.PricedEntity, error) {
	var entities []domain.PricedEntity

	for rows.Next() {
		var (
			e         domain.PricedEntity
			kind      string
			refText   *string
			productID *string
			color     *string
			size      *string
		)
		if err := rows.Scan(
			&kind,
			&e.ID,
			&e.Reference,
			&e.Name,
			&e.OwnerID,
			&e.CategoryID,
			&e.IsNew,
			&e.IsBestSeller,
			&e.IsPromotion,
			&e.Price,
			&e.OldPrice,
			&refText,
			&productID,
			&color,
			&size,
			&e.Stock,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan priced entity row: %w", err)
		}

		e.Kind = domain.EntityKind(kind)
		ref, err := refFromText(refText)
		if err != nil {
			return nil, fmt.Errorf("scan priced entity row: %w", err)
		}
		e.AppliedRef = ref
		if productID != nil {
			e.ProductID = *productID
		}
		if color != nil {
			e.Color = *color
		}
		if size != nil {
			e.Size = *size
		}

		entities = append(entities, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate priced entity rows: %w", err)
	}

	if entities == nil {
		entities = []domain.PricedEntity{}
	}

	return entities, nil
}

// refToText converts a ref to its nullable storage form.
func refToText(r *domain.DiscountRef) *string {
	if r == nil {
		return nil
	}
	s := r.String()
	return &s
}

// refFromText parses the nullable storage form back into a ref.
func refFromText(s *string) (*domain.DiscountRef, error) {
	if s == nil {
		return nil, nil
	}
	ref, err := domain.ParseDiscountRef(*s)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
