package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/health"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/middleware"
)

// NewRouter creates a chi router with all pricing service routes registered.
func NewRouter(
	promotionService *service.PromotionService,
	promoCodeService *service.PromoCodeService,
	catalog repository.CatalogRepository,
	payments PaymentVerifier,
	reconciler *service.ExpiryReconciler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("pricing"))
	r.Use(middleware.Tracing("pricing"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	promotionHandler := NewPromotionHandler(promotionService, logger)
	promoCodeHandler := NewPromoCodeHandler(promoCodeService, logger)
	webhookHandler := NewWebhookHandler(promoCodeService, payments, logger)
	catalogHandler := NewCatalogHandler(catalog, logger)
	adminHandler := NewAdminHandler(reconciler, logger)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)

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
		r.Use(ContentTypeJSON)

		r.Post("/", promoCodeHandler.CreateCode)
		r.Get("/", promoCodeHandler.ListOwnerCodes)

		// Fixed segments must come before /{id} to avoid being captured.
		r.Post("/quote", promoCodeHandler.QuoteActivation)
		r.Post("/validate", promoCodeHandler.ValidateCode)
		r.Post("/redeem", promoCodeHandler.RedeemCode)

		r.Get("/{id}", promoCodeHandler.GetCode)
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/payment", webhookHandler.HandlePayment)
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		// Prices move on apply/revert, so keep downstream caches short-lived.
		r.Use(middleware.CacheControl(30))

		r.Get("/entities", catalogHandler.ListEntities)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/variants/{id}", catalogHandler.GetVariant)
	})

	return r
}
