package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/event"
	"github.com/tahiry-dev-29/boutique-pricing/internal/lock"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
	pkgkafka "github.com/tahiry-dev-29/boutique-pricing/pkg/kafka"
)

// fakeCatalog is an in-memory catalog with real compare-and-set semantics,
// so apply/revert flows are exercised against the same guard behavior the
// SQL implementation has.
type fakeCatalog struct {
	mu       sync.Mutex
	entities map[string]*domain.PricedEntity
}

func newFakeCatalog(entities ...domain.PricedEntity) *fakeCatalog {
	c := &fakeCatalog{entities: make(map[string]*domain.PricedEntity)}
	for i := range entities {
		e := entities[i]
		c.entities[e.ID] = &e
	}
	return c
}

func (c *fakeCatalog) get(id string) domain.PricedEntity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.entities[id]
}

func (c *fakeCatalog) list(f repository.EntityFilter, keep func(*domain.PricedEntity) bool) []domain.PricedEntity {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entities))
	for id := range c.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}

	var out []domain.PricedEntity
	for _, id := range ids {
		e := c.entities[id]
		if id <= f.AfterID {
			continue
		}
		if f.OwnerID != nil && e.OwnerID != *f.OwnerID {
			continue
		}
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (c *fakeCatalog) ListEntities(_ context.Context, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	return c.list(f, nil), nil
}

func (c *fakeCatalog) ListTaggedBy(_ context.Context, ref domain.DiscountRef, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	return c.list(f, func(e *domain.PricedEntity) bool { return e.TaggedBy(ref) }), nil
}

func (c *fakeCatalog) CompareAndSetPricing(_ context.Context, _ domain.EntityKind, id string, expected *domain.DiscountRef, u repository.PricingUpdate) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[id]
	if !ok {
		return false, nil
	}
	switch {
	case expected == nil && e.AppliedRef != nil:
		return false, nil
	case expected != nil && (e.AppliedRef == nil || *e.AppliedRef != *expected):
		return false, nil
	}

	e.Price = u.Price
	e.OldPrice = u.OldPrice
	e.AppliedRef = u.AppliedRef
	return true, nil
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.PricedEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	if !ok || e.Kind != domain.EntityKindProduct {
		return nil, apperrors.NotFound("product", id)
	}
	clone := *e
	return &clone, nil
}

func (c *fakeCatalog) GetVariant(_ context.Context, id string) (*domain.PricedEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	if !ok || e.Kind != domain.EntityKindVariant {
		return nil, apperrors.NotFound("variant", id)
	}
	clone := *e
	return &clone, nil
}

// fakeRuleRepo is an in-memory rule store.
type fakeRuleRepo struct {
	mu    sync.Mutex
	rules map[string]*domain.PromotionRule
}

func newFakeRuleRepo(rules ...domain.PromotionRule) *fakeRuleRepo {
	r := &fakeRuleRepo{rules: make(map[string]*domain.PromotionRule)}
	for i := range rules {
		rule := rules[i]
		r.rules[rule.ID] = &rule
	}
	return r
}

func (r *fakeRuleRepo) Create(_ context.Context, rule *domain.PromotionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rules {
		if existing.Name == rule.Name {
			return apperrors.AlreadyExists("promotion rule", "name", rule.Name)
		}
	}
	clone := *rule
	r.rules[rule.ID] = &clone
	return nil
}

func (r *fakeRuleRepo) GetByID(_ context.Context, id string) (*domain.PromotionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, apperrors.NotFound("promotion rule", id)
	}
	clone := *rule
	return &clone, nil
}

func (r *fakeRuleRepo) List(_ context.Context, f repository.RuleFilter) ([]domain.PromotionRule, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PromotionRule
	for _, rule := range r.rules {
		if f.IsActive != nil && rule.IsActive != *f.IsActive {
			continue
		}
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, len(out), nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *domain.PromotionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return apperrors.NotFound("promotion rule", rule.ID)
	}
	clone := *rule
	r.rules[rule.ID] = &clone
	return nil
}

func (r *fakeRuleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return apperrors.NotFound("promotion rule", id)
	}
	delete(r.rules, id)
	return nil
}

func (r *fakeRuleRepo) ListExpired(_ context.Context, now time.Time) ([]domain.PromotionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PromotionRule
	for _, rule := range r.rules {
		if rule.IsActive && rule.Expired(now) {
			out = append(out, *rule)
		}
	}
	return out, nil
}

// fakePromoRepo is an in-memory promo code store.
type fakePromoRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.PromoCode
}

func newFakePromoRepo(codes ...domain.PromoCode) *fakePromoRepo {
	r := &fakePromoRepo{codes: make(map[string]*domain.PromoCode)}
	for i := range codes {
		c := codes[i]
		r.codes[c.ID] = &c
	}
	return r
}

func (r *fakePromoRepo) Create(_ context.Context, code *domain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.codes {
		if existing.Code == code.Code {
			return apperrors.AlreadyExists("promo code", "code", code.Code)
		}
	}
	clone := *code
	r.codes[code.ID] = &clone
	return nil
}

func (r *fakePromoRepo) GetByID(_ context.Context, id string) (*domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return nil, apperrors.NotFound("promo code", id)
	}
	clone := *c
	return &clone, nil
}

func (r *fakePromoRepo) GetByCode(_ context.Context, code string) (*domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return nil, apperrors.NotFound("promo code", code)
	}
	for _, c := range r.codes {
		if c.Code == normalized {
			clone := *c
			return &clone, nil
		}
	}
	return nil, apperrors.NotFound("promo code", code)
}

func (r *fakePromoRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PromoCode
	for _, c := range r.codes {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) Update(_ context.Context, code *domain.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code.ID]; !ok {
		return apperrors.NotFound("promo code", code.ID)
	}
	clone := *code
	r.codes[code.ID] = &clone
	return nil
}

func (r *fakePromoRepo) IncrementUsage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return apperrors.NotFound("promo code", id)
	}
	c.UsageCount++
	return nil
}

func (r *fakePromoRepo) ListExpired(_ context.Context, now time.Time) ([]domain.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PromoCode
	for _, c := range r.codes {
		if c.Status == domain.CodeStatusActive && c.Expired(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer builds an async producer pointed at a broker that does not
// exist; publishes return immediately and failures are swallowed by the
// services' log-and-continue handling.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	cfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	cfg.Async = true
	return event.NewProducer(pkgkafka.NewProducer(cfg, logger), logger)
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func boolPtr(b bool) *bool { return &b }

func newTestPromotionService(catalog *fakeCatalog, rules *fakeRuleRepo) *PromotionService {
	logger := newTestLogger()
	pricer := NewPricer(catalog, logger)
	return NewPromotionService(rules, pricer, lock.NewMemoryLocker(), newTestProducer(), logger)
}

func newTestPromoCodeService(catalog *fakeCatalog, codes *fakePromoRepo) *PromoCodeService {
	logger := newTestLogger()
	pricer := NewPricer(catalog, logger)
	markup := NewMarkupEngine(domain.DefaultMarkupPolicy(), pricer, logger)
	return NewPromoCodeService(codes, markup, lock.NewMemoryLocker(), newTestProducer(), logger)
}
