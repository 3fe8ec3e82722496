package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/validator"
)

// PromoCodeHandler handles HTTP requests for promo code endpoints.
type PromoCodeHandler struct {
	service *service.PromoCodeService
	logger  *slog.Logger
}

// NewPromoCodeHandler creates a new promo code HTTP handler.
func NewPromoCodeHandler(svc *service.PromoCodeService, logger *slog.Logger) *PromoCodeHandler {
	return &PromoCodeHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateCodeRequest is the JSON request body for purchasing a promo code.
type CreateCodeRequest struct {
	Code           string `json:"code" validate:"required,min=3,max=32"`
	Type           string `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value          int64  `json:"value" validate:"required,gt=0"`
	Duration       string `json:"duration" validate:"required,oneof=1_WEEK 1_MONTH 3_MONTHS 1_YEAR"`
	UsageLimit     *int   `json:"usage_limit" validate:"omitempty,gt=0"`
	MinOrderAmount int64  `json:"min_order_amount" validate:"gte=0"`
	OwnerID        string `json:"owner_id" validate:"required,uuid"`
	// ActivationPrice lets the owner set the activation price by hand instead
	// of taking the computed quote.
	ActivationPrice *int64 `json:"activation_price" validate:"omitempty,gt=0"`
}

// QuoteActivationRequest is the JSON request body for pricing an activation.
type QuoteActivationRequest struct {
	Type     string `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value    int64  `json:"value" validate:"required,gt=0"`
	Duration string `json:"duration" validate:"required,oneof=1_WEEK 1_MONTH 3_MONTHS 1_YEAR"`
}

// ValidateCodeRequest is the JSON request body for validating a code at checkout.
type ValidateCodeRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount int64  `json:"order_amount" validate:"required,gt=0"`
}

// RedeemCodeRequest is the JSON request body for redeeming a code.
type RedeemCodeRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount int64  `json:"order_amount" validate:"required,gt=0"`
}

// --- Handlers ---

// CreateCode handles POST /api/v1/promo-codes
func (h *PromoCodeHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req CreateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	code, err := h.service.CreateCode(r.Context(), &service.CreateCodeInput{
		Code:            req.Code,
		Type:            req.Type,
		Value:           req.Value,
		Duration:        req.Duration,
		UsageLimit:      req.UsageLimit,
		MinOrderAmount:  req.MinOrderAmount,
		OwnerID:         req.OwnerID,
		ActivationPrice: req.ActivationPrice,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: code})
}

// GetCode handles GET /api/v1/promo-codes/{id}
func (h *PromoCodeHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "promo code id is required")
		return
	}

	code, err := h.service.GetCode(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: code})
}

// ListOwnerCodes handles GET /api/v1/promo-codes?owner_id=...
func (h *PromoCodeHandler) ListOwnerCodes(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeBadRequest(w, "owner_id query parameter is required")
		return
	}

	codes, err := h.service.ListOwnerCodes(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: codes})
}

// QuoteActivation handles POST /api/v1/promo-codes/quote
func (h *PromoCodeHandler) QuoteActivation(w http.ResponseWriter, r *http.Request) {
	var req QuoteActivationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	quote, err := h.service.QuoteActivation(r.Context(), req.Type, req.Duration, req.Value)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: quote})
}

// ValidateCode handles POST /api/v1/promo-codes/validate
func (h *PromoCodeHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req ValidateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	validation, err := h.service.ValidateCode(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: validation})
}

// RedeemCode handles POST /api/v1/promo-codes/redeem
func (h *PromoCodeHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	var req RedeemCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	validation, err := h.service.RedeemCode(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: validation})
}
