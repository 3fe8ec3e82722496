package domain

import (
	"time"
)

// EntityKind discriminates the two priced entity shapes in the catalog.
type EntityKind string

const (
	EntityKindProduct EntityKind = "product"
	EntityKindVariant EntityKind = "variant"
)

// PricedEntity is a product or one of its variants, flattened to the fields
// the pricing engine operates on. Prices are in minor currency units.
//
// Invariant: OldPrice is nil exactly when the entity carries no discount or
// markup. When OldPrice is set it is the authoritative base price, Price is
// derived from it, and AppliedRef records which rule or promo code owns the
// current pricing.
type PricedEntity struct {
	Kind      EntityKind `json:"kind"`
	ID        string     `json:"id"`
	Reference string     `json:"reference"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"owner_id"`

	CategoryID   *string `json:"category_id,omitempty"`
	IsNew        bool    `json:"is_new"`
	IsBestSeller bool    `json:"is_best_seller"`
	IsPromotion  bool    `json:"is_promotion"`

	Price      int64        `json:"price"`
	OldPrice   *int64       `json:"old_price,omitempty"`
	AppliedRef *DiscountRef `json:"applied_ref,omitempty"`

	// Variant-only fields. Zero for products.
	ProductID string `json:"product_id,omitempty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Stock     int    `json:"stock,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Discounted reports whether the entity currently carries an applied discount
// or markup.
func (e *PricedEntity) Discounted() bool {
	return e.OldPrice != nil
}

// TaggedBy reports whether the entity's pricing is owned by the given ref.
func (e *PricedEntity) TaggedBy(ref DiscountRef) bool {
	return e.AppliedRef != nil && *e.AppliedRef == ref
}
