package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/event"
	"github.com/tahiry-dev-29/boutique-pricing/internal/lock"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
	pkgkafka "github.com/tahiry-dev-29/boutique-pricing/pkg/kafka"
)

// ============================================================================
// Mock repositories
// ============================================================================

type mockRuleRepository struct {
	mock.Mock
}

func (m *mockRuleRepository) Create(ctx context.Context, rule *domain.PromotionRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *mockRuleRepository) GetByID(ctx context.Context, id string) (*domain.PromotionRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromotionRule), args.Error(1)
}

func (m *mockRuleRepository) List(ctx context.Context, f repository.RuleFilter) ([]domain.PromotionRule, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.PromotionRule), args.Int(1), args.Error(2)
}

func (m *mockRuleRepository) Update(ctx context.Context, rule *domain.PromotionRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *mockRuleRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRuleRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.PromotionRule, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.PromotionRule), args.Error(1)
}

type mockPromoCodeRepository struct {
	mock.Mock
}

func (m *mockPromoCodeRepository) Create(ctx context.Context, code *domain.PromoCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockPromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromoCode), args.Error(1)
}

func (m *mockPromoCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromoCode), args.Error(1)
}

func (m *mockPromoCodeRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.PromoCode, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.PromoCode), args.Error(1)
}

func (m *mockPromoCodeRepository) Update(ctx context.Context, code *domain.PromoCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockPromoCodeRepository) IncrementUsage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPromoCodeRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.PromoCode, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.PromoCode), args.Error(1)
}

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) ListEntities(ctx context.Context, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.PricedEntity), args.Error(1)
}

func (m *mockCatalogRepository) ListTaggedBy(ctx context.Context, ref domain.DiscountRef, f repository.EntityFilter) ([]domain.PricedEntity, error) {
	args := m.Called(ctx, ref, f)
	return args.Get(0).([]domain.PricedEntity), args.Error(1)
}

func (m *mockCatalogRepository) CompareAndSetPricing(ctx context.Context, kind domain.EntityKind, id string, expected *domain.DiscountRef, u repository.PricingUpdate) (bool, error) {
	args := m.Called(ctx, kind, id, expected, u)
	return args.Bool(0), args.Error(1)
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, id string) (*domain.PricedEntity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricedEntity), args.Error(1)
}

func (m *mockCatalogRepository) GetVariant(ctx context.Context, id string) (*domain.PricedEntity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricedEntity), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaCfg.Async = true
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// setupRouter wires mock repositories through real services into a chi router
// matching the production route layout.
func setupRouter(rules *mockRuleRepository, codes *mockPromoCodeRepository, catalog *mockCatalogRepository) *chi.Mux {
	logger := testLogger()
	producer := testEventProducer()
	locker := lock.NewMemoryLocker()

	pricer := service.NewPricer(catalog, logger)
	promotionService := service.NewPromotionService(rules, pricer, locker, producer, logger)
	markup := service.NewMarkupEngine(domain.DefaultMarkupPolicy(), pricer, logger)
	promoCodeService := service.NewPromoCodeService(codes, markup, locker, producer, logger)

	reconciler := service.NewExpiryReconciler(rules, codes, promotionService, promoCodeService, logger)

	promotionHandler := NewPromotionHandler(promotionService, logger)
	promoCodeHandler := NewPromoCodeHandler(promoCodeService, logger)
	webhookHandler := NewWebhookHandler(promoCodeService, nil, logger)
	catalogHandler := NewCatalogHandler(catalog, logger)
	adminHandler := NewAdminHandler(reconciler, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Route("/promotions", func(r chi.Router) {
			r.Post("/", promotionHandler.CreateRule)
			r.Get("/", promotionHandler.ListRules)
			r.Get("/{id}", promotionHandler.GetRule)
			r.Put("/{id}", promotionHandler.UpdateRule)
			r.Delete("/{id}", promotionHandler.DeleteRule)
			r.Post("/{id}/apply", promotionHandler.ApplyRule)
			r.Post("/{id}/revert", promotionHandler.RevertRule)
		})
		r.Post("/reconcile", adminHandler.Reconcile)
	})
	r.Route("/api/v1/promo-codes", func(r chi.Router) {
		r.Post("/", promoCodeHandler.CreateCode)
		r.Get("/", promoCodeHandler.ListOwnerCodes)
		r.Post("/quote", promoCodeHandler.QuoteActivation)
		r.Post("/validate", promoCodeHandler.ValidateCode)
		r.Post("/redeem", promoCodeHandler.RedeemCode)
		r.Get("/{id}", promoCodeHandler.GetCode)
	})
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookHandler.HandlePayment)
	})
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/entities", catalogHandler.ListEntities)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/variants/{id}", catalogHandler.GetVariant)
	})
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

// listResponse mirrors the paginated envelope for decoding in tests.
type listResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

func decodeListResponse(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}
