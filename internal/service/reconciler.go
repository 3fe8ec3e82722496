package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
)

// ExpiryReconciler periodically sweeps for promotion rules and promo codes
// whose validity ended and reverts their pricing through the same code paths
// a manual revert uses. It is the safety net for windows that lapse without
// anyone calling revert.
type ExpiryReconciler struct {
	rules      repository.RuleRepository
	codes      repository.PromoCodeRepository
	promotions *PromotionService
	promoCodes *PromoCodeService
	logger     *slog.Logger
	now        func() time.Time
}

// NewExpiryReconciler creates a reconciler over the given services.
func NewExpiryReconciler(rules repository.RuleRepository, codes repository.PromoCodeRepository, promotions *PromotionService, promoCodes *PromoCodeService, logger *slog.Logger) *ExpiryReconciler {
	return &ExpiryReconciler{
		rules:      rules,
		codes:      codes,
		promotions: promotions,
		promoCodes: promoCodes,
		logger:     logger,
		now:        time.Now,
	}
}

// ReconcileSummary reports what a reconciliation pass expired.
type ReconcileSummary struct {
	RulesExpired     int `json:"rules_expired"`
	CodesExpired     int `json:"codes_expired"`
	EntitiesReverted int `json:"entities_reverted"`
}

// RunOnce performs a single reconciliation pass. Failures on individual rules
// or codes are logged and skipped so one bad record cannot stall the sweep;
// the next pass retries them.
func (r *ExpiryReconciler) RunOnce(ctx context.Context) ReconcileSummary {
	reconcilerRuns.Inc()
	now := r.now().UTC()
	var summary ReconcileSummary

	expiredRules, err := r.rules.ListExpired(ctx, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list expired rules",
			slog.String("error", err.Error()),
		)
	} else {
		for i := range expiredRules {
			rule := &expiredRules[i]
			reverted, err := r.promotions.ExpireRule(ctx, rule.ID)
			if err != nil {
				r.logger.ErrorContext(ctx, "failed to expire promotion rule",
					slog.String("rule_id", rule.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			summary.RulesExpired++
			summary.EntitiesReverted += reverted
			r.logger.InfoContext(ctx, "reconciled expired promotion rule",
				slog.String("rule_id", rule.ID),
				slog.Int("reverted", reverted),
			)
		}
	}

	expiredCodes, err := r.codes.ListExpired(ctx, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list expired promo codes",
			slog.String("error", err.Error()),
		)
		return summary
	}
	for i := range expiredCodes {
		code := &expiredCodes[i]
		reverted, err := r.promoCodes.ExpireCode(ctx, code.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to expire promo code",
				slog.String("code_id", code.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.CodesExpired++
		summary.EntitiesReverted += reverted
		r.logger.InfoContext(ctx, "reconciled expired promo code",
			slog.String("code_id", code.ID),
			slog.Int("reverted", reverted),
		)
	}

	return summary
}

// Run executes reconciliation passes on the given interval until the context
// is canceled. An initial pass runs immediately so restarts do not delay
// overdue expiries by a full interval.
func (r *ExpiryReconciler) Run(ctx context.Context, interval time.Duration) {
	r.logger.Info("expiry reconciler started",
		slog.Duration("interval", interval),
	)

	r.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("expiry reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
