package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
)

// MarkupEngine raises an owner's catalog prices when their promo code
// activates. The markup funds the discount the code grants at checkout; both
// the markup factor and the activation price come from the configured policy
// and grow with the code's value and duration tier.
type MarkupEngine struct {
	policy domain.MarkupPolicy
	pricer *Pricer
	logger *slog.Logger
}

// NewMarkupEngine creates a markup engine with the given policy.
func NewMarkupEngine(policy domain.MarkupPolicy, pricer *Pricer, logger *slog.Logger) *MarkupEngine {
	return &MarkupEngine{
		policy: policy,
		pricer: pricer,
		logger: logger,
	}
}

// ActivationPrice quotes what activating a code with the given parameters
// costs its owner.
func (m *MarkupEngine) ActivationPrice(d domain.CodeDuration, t domain.CodeType, value int64) int64 {
	return m.policy.ActivationPrice(d, t, value)
}

// Factor returns the markup factor for the given code parameters. It is
// always at least 1.0: activation never lowers a price.
func (m *MarkupEngine) Factor(d domain.CodeDuration, t domain.CodeType, value int64) float64 {
	return m.policy.Factor(d, t, value)
}

// ApplyOwnerMarkup reprices the owner's whole catalog by the code's markup
// factor and tags every repriced entity with the code's ref. Entities already
// priced by a promotion rule or another code are left untouched and reported
// as conflicted. Re-running with the same code converges: already marked-up
// entities are skipped.
func (m *MarkupEngine) ApplyOwnerMarkup(ctx context.Context, code *domain.PromoCode) (ApplySummary, float64, error) {
	factor := m.policy.Factor(code.Duration, code.Type, code.Value)
	ref := domain.PromoRef(code.ID)

	summary, err := m.pricer.applyToMatching(ctx, "markup_apply", ref,
		repository.EntityFilter{OwnerID: &code.OwnerID},
		func(e *domain.PricedEntity) bool { return e.OwnerID == code.OwnerID },
		func(base int64) int64 { return domain.ApplyFactor(base, factor) },
	)
	if err != nil {
		return summary, factor, fmt.Errorf("apply owner markup: %w", err)
	}

	m.logger.InfoContext(ctx, "owner catalog marked up",
		slog.String("code_id", code.ID),
		slog.String("owner_id", code.OwnerID),
		slog.Float64("factor", factor),
		slog.Int("updated", summary.Updated),
		slog.Int("conflicted", summary.Conflicted),
	)

	return summary, factor, nil
}

// RevertOwnerMarkup restores the original prices of everything the code's
// ref owns.
func (m *MarkupEngine) RevertOwnerMarkup(ctx context.Context, code *domain.PromoCode) (int, error) {
	ref := domain.PromoRef(code.ID)

	reverted, err := m.pricer.revertTagged(ctx, "markup_revert", ref, repository.EntityFilter{OwnerID: &code.OwnerID})
	if err != nil {
		return reverted, fmt.Errorf("revert owner markup: %w", err)
	}

	m.logger.InfoContext(ctx, "owner catalog markup reverted",
		slog.String("code_id", code.ID),
		slog.String("owner_id", code.OwnerID),
		slog.Int("reverted", reverted),
	)

	return reverted, nil
}
