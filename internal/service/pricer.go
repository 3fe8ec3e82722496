package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
)

// pageSize bounds how many entities a single catalog query returns. Apply and
// revert walk the catalog in ID-ordered pages so a large catalog never loads
// into memory at once.
const pageSize = 500

// ApplySummary reports the outcome of a bulk pricing pass over the catalog.
type ApplySummary struct {
	// Updated counts entities whose pricing was written this pass.
	Updated int `json:"updated"`
	// Skipped counts entities already at the target pricing.
	Skipped int `json:"skipped"`
	// Conflicted counts entities left untouched because another rule or code
	// owns their pricing, or a concurrent writer changed them mid-pass.
	Conflicted int `json:"conflicted"`
}

// Pricer is the shared engine below the promotion, promo code, and markup
// services. It owns the two bulk passes every discount mechanism reduces to:
// tag-and-reprice matching entities, and restore everything a ref owns.
type Pricer struct {
	catalog repository.CatalogRepository
	logger  *slog.Logger
}

// NewPricer creates the shared pricing core.
func NewPricer(catalog repository.CatalogRepository, logger *slog.Logger) *Pricer {
	return &Pricer{catalog: catalog, logger: logger}
}

// applyToMatching walks the catalog and reprices every entity accepted by
// match, tagging it with ref. The price function receives the entity's base
// price: its old price when a discount is already applied, its current price
// otherwise, so re-running a changed rule recomputes from the base instead of
// compounding on an already discounted price.
//
// Entities tagged by a different ref are counted as conflicted and left
// untouched: one ref owns an entity's pricing at a time. Entities already at
// the target pricing under the same ref are skipped, which makes the pass
// idempotent. Every write goes through the compare-and-set guard, so a
// concurrent pass on the same entity loses cleanly instead of interleaving.
func (p *Pricer) applyToMatching(
	ctx context.Context,
	operation string,
	ref domain.DiscountRef,
	filter repository.EntityFilter,
	match func(*domain.PricedEntity) bool,
	price func(base int64) int64,
) (ApplySummary, error) {
	var summary ApplySummary

	afterID := ""
	for {
		f := filter
		f.AfterID = afterID
		f.Limit = pageSize

		entities, err := p.catalog.ListEntities(ctx, f)
		if err != nil {
			return summary, fmt.Errorf("list entities for %s: %w", operation, err)
		}
		if len(entities) == 0 {
			break
		}
		afterID = entities[len(entities)-1].ID

		for i := range entities {
			e := &entities[i]
			if !match(e) {
				continue
			}

			switch {
			case e.AppliedRef == nil:
				// Fresh apply from the current price.
				base := e.Price
				newPrice := price(base)
				if err := p.reprice(ctx, operation, e, nil, repository.PricingUpdate{
					Price:      newPrice,
					OldPrice:   &base,
					AppliedRef: &ref,
				}, &summary); err != nil {
					return summary, err
				}

			case e.TaggedBy(ref):
				// Re-apply under the same ref: recompute from the stored base.
				base := *e.OldPrice
				newPrice := price(base)
				if e.Price == newPrice {
					summary.Skipped++
					entitiesSkipped.WithLabelValues(operation).Inc()
					continue
				}
				expected := ref
				if err := p.reprice(ctx, operation, e, &expected, repository.PricingUpdate{
					Price:      newPrice,
					OldPrice:   &base,
					AppliedRef: &ref,
				}, &summary); err != nil {
					return summary, err
				}

			default:
				// Another rule or code owns this entity's pricing.
				summary.Conflicted++
				entitiesConflicted.WithLabelValues(operation).Inc()
			}
		}

		if len(entities) < pageSize {
			break
		}
	}

	return summary, nil
}

// revertTagged restores the original price of every entity the ref owns and
// clears its tag. Entities whose tag changed mid-pass are skipped; they now
// belong to another ref and restoring them would clobber its pricing.
func (p *Pricer) revertTagged(ctx context.Context, operation string, ref domain.DiscountRef, filter repository.EntityFilter) (int, error) {
	reverted := 0

	afterID := ""
	for {
		f := filter
		f.AfterID = afterID
		f.Limit = pageSize

		entities, err := p.catalog.ListTaggedBy(ctx, ref, f)
		if err != nil {
			return reverted, fmt.Errorf("list entities for %s: %w", operation, err)
		}
		if len(entities) == 0 {
			break
		}
		afterID = entities[len(entities)-1].ID

		for i := range entities {
			e := &entities[i]
			if e.OldPrice == nil {
				// A tag without a stored base price cannot be restored.
				p.logger.WarnContext(ctx, "tagged entity has no base price, skipping revert",
					slog.String("kind", string(e.Kind)),
					slog.String("entity_id", e.ID),
					slog.String("ref", ref.String()),
				)
				continue
			}

			expected := ref
			ok, err := p.catalog.CompareAndSetPricing(ctx, e.Kind, e.ID, &expected, repository.PricingUpdate{
				Price:      *e.OldPrice,
				OldPrice:   nil,
				AppliedRef: nil,
			})
			if err != nil {
				return reverted, fmt.Errorf("revert pricing for %s %s: %w", e.Kind, e.ID, err)
			}
			if ok {
				reverted++
				entitiesRepriced.WithLabelValues(operation).Inc()
			} else {
				entitiesConflicted.WithLabelValues(operation).Inc()
			}
		}

		if len(entities) < pageSize {
			break
		}
	}

	return reverted, nil
}

// reprice performs one guarded pricing write and folds the outcome into the
// summary.
func (p *Pricer) reprice(ctx context.Context, operation string, e *domain.PricedEntity, expected *domain.DiscountRef, u repository.PricingUpdate, summary *ApplySummary) error {
	ok, err := p.catalog.CompareAndSetPricing(ctx, e.Kind, e.ID, expected, u)
	if err != nil {
		return fmt.Errorf("reprice %s %s: %w", e.Kind, e.ID, err)
	}
	if ok {
		summary.Updated++
		entitiesRepriced.WithLabelValues(operation).Inc()
	} else {
		summary.Conflicted++
		entitiesConflicted.WithLabelValues(operation).Inc()
	}
	return nil
}
