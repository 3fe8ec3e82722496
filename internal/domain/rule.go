package domain

import (
	"time"
)

// RuleConditions is the closed set of conditions a promotion rule can match
// on. Only fields that are set participate in matching; all set fields must
// match (conjunction). A conditions value with nothing set matches no entity
// at all, so a freshly created rule cannot accidentally discount the whole
// catalog.
type RuleConditions struct {
	CategoryID   *string `json:"category_id,omitempty"`
	ProductID    *string `json:"product_id,omitempty"`
	Reference    *string `json:"reference,omitempty"`
	IsNew        *bool   `json:"is_new,omitempty"`
	IsBestSeller *bool   `json:"is_best_seller,omitempty"`
}

// IsEmpty reports whether the condition set carries no effective condition.
// A flag condition set to false is not a condition (there is no
// "must be false" match), so it counts as absent here too.
func (c RuleConditions) IsEmpty() bool {
	return c.CategoryID == nil &&
		c.ProductID == nil &&
		c.Reference == nil &&
		(c.IsNew == nil || !*c.IsNew) &&
		(c.IsBestSeller == nil || !*c.IsBestSeller)
}

// Matches reports whether the entity satisfies every present condition.
// Reference comparison is exact and case-sensitive against the entity's own
// reference (the SKU for variants). For variants, a ProductID condition
// matches the owning product.
func (c RuleConditions) Matches(e *PricedEntity) bool {
	if c.IsEmpty() {
		return false
	}
	if c.CategoryID != nil {
		if e.CategoryID == nil || *e.CategoryID != *c.CategoryID {
			return false
		}
	}
	if c.ProductID != nil {
		switch e.Kind {
		case EntityKindProduct:
			if e.ID != *c.ProductID {
				return false
			}
		case EntityKindVariant:
			if e.ProductID != *c.ProductID {
				return false
			}
		default:
			return false
		}
	}
	if c.Reference != nil && e.Reference != *c.Reference {
		return false
	}
	if c.IsNew != nil && *c.IsNew && !e.IsNew {
		return false
	}
	if c.IsBestSeller != nil && *c.IsBestSeller && !e.IsBestSeller {
		return false
	}
	return true
}

// RuleActions is the closed set of actions a promotion rule applies. There is
// a single action kind today: a percentage discount.
type RuleActions struct {
	DiscountPercent int `json:"discount_percentage"`
}

// PromotionRule is an admin-defined, priority-ordered condition-to-discount
// mapping applied and reverted in bulk. Apply and revert mutate tagged
// entities, never the rule itself.
type PromotionRule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Priority   int            `json:"priority"`
	Conditions RuleConditions `json:"conditions"`
	Actions    RuleActions    `json:"actions"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	EndDate    *time.Time     `json:"end_date,omitempty"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// InWindow reports whether now falls inside the rule's validity window.
// A nil boundary is unbounded on that side.
func (r *PromotionRule) InWindow(now time.Time) bool {
	if r.StartDate != nil && now.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return false
	}
	return true
}

// Expired reports whether the rule's end date has passed.
func (r *PromotionRule) Expired(now time.Time) bool {
	return r.EndDate != nil && now.After(*r.EndDate)
}
