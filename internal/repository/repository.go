package repository

import (
	"context"
	"time"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
)

// EntityFilter narrows catalog enumeration. AfterID and Limit page through
// the catalog in stable ID order so large batches can be chunked and
// resumed.
type EntityFilter struct {
	OwnerID *string
	AfterID string
	Limit   int
}

// PricingUpdate is the set of pricing fields written together on an entity.
// Price, OldPrice, and AppliedRef always change as one unit: an entity is
// never left with a stale backup price or a dangling tag.
type PricingUpdate struct {
	Price      int64
	OldPrice   *int64
	AppliedRef *domain.DiscountRef
}

// CatalogRepository is the boundary to the catalog store. The engine never
// assumes a specific storage engine beyond these operations.
type CatalogRepository interface {
	// ListEntities returns products and variants matching the filter in
	// stable ID order.
	ListEntities(ctx context.Context, f EntityFilter) ([]domain.PricedEntity, error)

	// ListTaggedBy returns entities whose pricing is owned by the given ref.
	ListTaggedBy(ctx context.Context, ref domain.DiscountRef, f EntityFilter) ([]domain.PricedEntity, error)

	// CompareAndSetPricing atomically writes the pricing fields of one entity
	// if and only if its applied ref still equals expected (nil meaning
	// untagged). It returns false without error when the guard fails.
	CompareAndSetPricing(ctx context.Context, kind domain.EntityKind, id string, expected *domain.DiscountRef, u PricingUpdate) (bool, error)

	// GetProduct retrieves a single product by ID.
	GetProduct(ctx context.Context, id string) (*domain.PricedEntity, error)

	// GetVariant retrieves a single variant by ID.
	GetVariant(ctx context.Context, id string) (*domain.PricedEntity, error)
}

// RuleFilter narrows promotion rule listing.
type RuleFilter struct {
	IsActive *bool
	Page     int
	PerPage  int
}

// RuleRepository persists promotion rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.PromotionRule) error
	GetByID(ctx context.Context, id string) (*domain.PromotionRule, error)

	// List returns rules ordered by priority (highest first) with the total count.
	List(ctx context.Context, f RuleFilter) ([]domain.PromotionRule, int, error)

	Update(ctx context.Context, rule *domain.PromotionRule) error
	Delete(ctx context.Context, id string) error

	// ListExpired returns active rules whose end date has passed.
	ListExpired(ctx context.Context, now time.Time) ([]domain.PromotionRule, error)
}

// PromoCodeRepository persists promo codes.
type PromoCodeRepository interface {
	Create(ctx context.Context, code *domain.PromoCode) error
	GetByID(ctx context.Context, id string) (*domain.PromoCode, error)

	// GetByCode looks a code up by its normalized (uppercase) value.
	// Uniqueness is case-insensitive.
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)

	// ListByOwner returns an owner's codes, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.PromoCode, error)

	Update(ctx context.Context, code *domain.PromoCode) error

	// IncrementUsage atomically increments a code's usage counter.
	IncrementUsage(ctx context.Context, id string) error

	// ListExpired returns ACTIVE codes past their end date or usage limit.
	ListExpired(ctx context.Context, now time.Time) ([]domain.PromoCode, error)
}
