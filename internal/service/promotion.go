package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/event"
	"github.com/tahiry-dev-29/boutique-pricing/internal/lock"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

// lockTTL bounds how long a crashed apply or revert can hold a rule's lock.
const lockTTL = 5 * time.Minute

// PromotionService implements promotion rule management and the bulk
// apply/revert operations over the catalog.
type PromotionService struct {
	rules    repository.RuleRepository
	pricer   *Pricer
	locker   lock.Locker
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPromotionService creates a new promotion service.
func NewPromotionService(rules repository.RuleRepository, pricer *Pricer, locker lock.Locker, producer *event.Producer, logger *slog.Logger) *PromotionService {
	return &PromotionService{
		rules:    rules,
		pricer:   pricer,
		locker:   locker,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRuleInput holds the parameters for creating a promotion rule.
type CreateRuleInput struct {
	Name            string
	Priority        int
	Conditions      domain.RuleConditions
	DiscountPercent int
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        bool
}

// UpdateRuleInput holds the parameters for partially updating a rule.
type UpdateRuleInput struct {
	Name            *string
	Priority        *int
	Conditions      *domain.RuleConditions
	DiscountPercent *int
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        *bool
}

// CreateRule creates a new promotion rule. The rule is stored only; pricing
// changes happen when the rule is explicitly applied.
func (s *PromotionService) CreateRule(ctx context.Context, input *CreateRuleInput) (*domain.PromotionRule, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("rule name is required")
	}
	if input.DiscountPercent < 1 || input.DiscountPercent > 99 {
		return nil, apperrors.OutOfRange("discount percentage", 1, 99)
	}
	if input.Conditions.IsEmpty() {
		return nil, apperrors.InvalidInput("rule must have at least one condition")
	}
	if input.StartDate != nil && input.EndDate != nil && !input.EndDate.After(*input.StartDate) {
		return nil, apperrors.InvalidInput("end date must be after start date")
	}

	now := s.now().UTC()
	rule := &domain.PromotionRule{
		ID:         uuid.New().String(),
		Name:       input.Name,
		Priority:   input.Priority,
		Conditions: input.Conditions,
		Actions:    domain.RuleActions{DiscountPercent: input.DiscountPercent},
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		IsActive:   input.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create promotion rule: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion rule created",
		slog.String("rule_id", rule.ID),
		slog.String("name", rule.Name),
		slog.Int("discount_percentage", rule.Actions.DiscountPercent),
	)

	return rule, nil
}

// GetRule retrieves a promotion rule by its ID.
func (s *PromotionService) GetRule(ctx context.Context, id string) (*domain.PromotionRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion rule by id: %w", err)
	}
	return rule, nil
}

// ListRules returns a filtered, paginated list of rules ordered by priority.
func (s *PromotionService) ListRules(ctx context.Context, filter repository.RuleFilter) ([]domain.PromotionRule, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	rules, total, err := s.rules.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotion rules: %w", err)
	}

	return rules, total, nil
}

// UpdateRule applies partial updates to an existing rule. The stored rule
// changes immediately; already-applied pricing is reconciled by re-running
// ApplyRule, which recomputes every tagged entity from its base price.
func (s *PromotionService) UpdateRule(ctx context.Context, id string, input *UpdateRuleInput) (*domain.PromotionRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion rule for update: %w", err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("rule name must not be empty")
		}
		rule.Name = *input.Name
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.Conditions != nil {
		if input.Conditions.IsEmpty() {
			return nil, apperrors.InvalidInput("rule must have at least one condition")
		}
		rule.Conditions = *input.Conditions
	}
	if input.DiscountPercent != nil {
		if *input.DiscountPercent < 1 || *input.DiscountPercent > 99 {
			return nil, apperrors.OutOfRange("discount percentage", 1, 99)
		}
		rule.Actions.DiscountPercent = *input.DiscountPercent
	}
	if input.StartDate != nil {
		rule.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		rule.EndDate = input.EndDate
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if rule.StartDate != nil && rule.EndDate != nil && !rule.EndDate.After(*rule.StartDate) {
		return nil, apperrors.InvalidInput("end date must be after start date")
	}

	rule.UpdatedAt = s.now().UTC()

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("update promotion rule: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion rule updated",
		slog.String("rule_id", rule.ID),
		slog.String("name", rule.Name),
	)

	return rule, nil
}

// DeleteRule reverts any pricing the rule owns, then removes the rule. The
// revert-first ordering guarantees no entity is left discounted by a rule
// that no longer exists.
func (s *PromotionService) DeleteRule(ctx context.Context, id string) error {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get promotion rule for delete: %w", err)
	}

	ref := domain.RuleRef(rule.ID)
	release, err := s.locker.Acquire(ctx, ref.String(), lockTTL)
	if err != nil {
		return lockError(ref, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	reverted, err := s.pricer.revertTagged(ctx, "rule_revert", ref, repository.EntityFilter{})
	if err != nil {
		return fmt.Errorf("revert rule before delete: %w", err)
	}

	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete promotion rule: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion rule deleted",
		slog.String("rule_id", rule.ID),
		slog.Int("reverted", reverted),
	)

	return nil
}

// ApplyRule reprices every catalog entity matching the rule's conditions and
// tags it with the rule's ref. Re-running is idempotent: entities already at
// the rule's target price are skipped, and a changed discount percentage is
// recomputed from each entity's base price. Entities owned by another rule or
// code are reported as conflicted and left untouched.
func (s *PromotionService) ApplyRule(ctx context.Context, id string) (*ApplySummary, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion rule for apply: %w", err)
	}

	if !rule.IsActive {
		return nil, apperrors.StateConflict(fmt.Sprintf("promotion rule %s is not active", rule.ID))
	}
	if !rule.InWindow(s.now().UTC()) {
		return nil, apperrors.StateConflict(fmt.Sprintf("promotion rule %s is outside its validity window", rule.ID))
	}

	ref := domain.RuleRef(rule.ID)
	release, err := s.locker.Acquire(ctx, ref.String(), lockTTL)
	if err != nil {
		return nil, lockError(ref, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	percent := rule.Actions.DiscountPercent
	summary, err := s.pricer.applyToMatching(ctx, "rule_apply", ref, repository.EntityFilter{},
		func(e *domain.PricedEntity) bool { return rule.Conditions.Matches(e) },
		func(base int64) int64 { return domain.ApplyPercentDiscount(base, percent) },
	)
	if err != nil {
		return nil, fmt.Errorf("apply promotion rule: %w", err)
	}

	if err := s.producer.PublishRuleApplied(ctx, rule, summary.Updated, summary.Skipped, summary.Conflicted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish pricing.rule_applied event",
			slog.String("rule_id", rule.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "promotion rule applied",
		slog.String("rule_id", rule.ID),
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
		slog.Int("conflicted", summary.Conflicted),
	)

	return &summary, nil
}

// RevertRule restores the original price of every entity the rule owns and
// clears its tags. Reverting a rule that owns nothing is a no-op.
func (s *PromotionService) RevertRule(ctx context.Context, id string) (int, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get promotion rule for revert: %w", err)
	}

	ref := domain.RuleRef(rule.ID)
	release, err := s.locker.Acquire(ctx, ref.String(), lockTTL)
	if err != nil {
		return 0, lockError(ref, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	reverted, err := s.pricer.revertTagged(ctx, "rule_revert", ref, repository.EntityFilter{})
	if err != nil {
		return 0, fmt.Errorf("revert promotion rule: %w", err)
	}

	if err := s.producer.PublishRuleReverted(ctx, rule, reverted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish pricing.rule_reverted event",
			slog.String("rule_id", rule.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion rule reverted",
		slog.String("rule_id", rule.ID),
		slog.Int("reverted", reverted),
	)

	return reverted, nil
}

// ExpireRule reverts everything an ended rule owns and deactivates it. It is
// the rule-side half of expiry reconciliation and shares RevertRule's revert
// path, so manual revert and reconciliation cannot diverge.
func (s *PromotionService) ExpireRule(ctx context.Context, id string) (int, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get promotion rule for expiry: %w", err)
	}

	if !rule.IsActive {
		return 0, nil
	}

	reverted, err := s.RevertRule(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("revert rule for expiry: %w", err)
	}

	rule.IsActive = false
	rule.UpdatedAt = s.now().UTC()
	if err := s.rules.Update(ctx, rule); err != nil {
		return reverted, fmt.Errorf("deactivate expired rule: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion rule expired",
		slog.String("rule_id", rule.ID),
		slog.Int("reverted", reverted),
	)

	return reverted, nil
}

// lockError maps a lock acquisition failure to the API error taxonomy.
func lockError(ref domain.DiscountRef, err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return apperrors.StateConflict(fmt.Sprintf("a pricing operation for %s is already in progress", ref))
	}
	return fmt.Errorf("acquire lock for %s: %w", ref, err)
}
