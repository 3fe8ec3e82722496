package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/httputil"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/validator"
)

// PromotionHandler handles HTTP requests for promotion rule endpoints.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion rule HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// RuleConditionsRequest is the JSON shape of a rule's condition set.
type RuleConditionsRequest struct {
	CategoryID   *string `json:"category_id" validate:"omitempty,min=1"`
	ProductID    *string `json:"product_id" validate:"omitempty,min=1"`
	Reference    *string `json:"reference" validate:"omitempty,min=1,max=100"`
	IsNew        *bool   `json:"is_new"`
	IsBestSeller *bool   `json:"is_best_seller"`
}

func (r RuleConditionsRequest) toDomain() domain.RuleConditions {
	return domain.RuleConditions{
		CategoryID:   r.CategoryID,
		ProductID:    r.ProductID,
		Reference:    r.Reference,
		IsNew:        r.IsNew,
		IsBestSeller: r.IsBestSeller,
	}
}

// CreateRuleRequest is the JSON request body for creating a promotion rule.
type CreateRuleRequest struct {
	Name            string                `json:"name" validate:"required,min=1,max=255"`
	Priority        int                   `json:"priority" validate:"gte=0"`
	Conditions      RuleConditionsRequest `json:"conditions"`
	DiscountPercent int                   `json:"discount_percentage" validate:"required,gte=1,lte=99"`
	StartDate       *string               `json:"start_date"`
	EndDate         *string               `json:"end_date"`
	IsActive        bool                  `json:"is_active"`
}

// UpdateRuleRequest is the JSON request body for updating a promotion rule.
type UpdateRuleRequest struct {
	Name            *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Priority        *int                   `json:"priority" validate:"omitempty,gte=0"`
	Conditions      *RuleConditionsRequest `json:"conditions"`
	DiscountPercent *int                   `json:"discount_percentage" validate:"omitempty,gte=1,lte=99"`
	StartDate       *string                `json:"start_date"`
	EndDate         *string                `json:"end_date"`
	IsActive        *bool                  `json:"is_active"`
}

// --- Handlers ---

// CreateRule handles POST /api/v1/admin/promotions
func (h *PromotionHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := &service.CreateRuleInput{
		Name:            req.Name,
		Priority:        req.Priority,
		Conditions:      req.Conditions.toDomain(),
		DiscountPercent: req.DiscountPercent,
		IsActive:        req.IsActive,
	}

	var ok bool
	if input.StartDate, ok = parseOptionalTime(w, req.StartDate, "start_date"); !ok {
		return
	}
	if input.EndDate, ok = parseOptionalTime(w, req.EndDate, "end_date"); !ok {
		return
	}

	rule, err := h.service.CreateRule(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: rule})
}

// ListRules handles GET /api/v1/admin/promotions
func (h *PromotionHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	filter := repository.RuleFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 && perPage <= 100 {
			filter.PerPage = perPage
		}
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		if isActive, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &isActive
		}
	}

	rules, total, err := h.service.ListRules(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, httputil.NewPaginatedResponse(rules, total, filter.Page, filter.PerPage))
}

// GetRule handles GET /api/v1/admin/promotions/{id}
func (h *PromotionHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "rule id is required")
		return
	}

	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: rule})
}

// UpdateRule handles PUT /api/v1/admin/promotions/{id}
func (h *PromotionHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "rule id is required")
		return
	}

	var req UpdateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := &service.UpdateRuleInput{
		Name:            req.Name,
		Priority:        req.Priority,
		DiscountPercent: req.DiscountPercent,
		IsActive:        req.IsActive,
	}
	if req.Conditions != nil {
		conditions := req.Conditions.toDomain()
		input.Conditions = &conditions
	}

	var ok bool
	if input.StartDate, ok = parseOptionalTime(w, req.StartDate, "start_date"); !ok {
		return
	}
	if input.EndDate, ok = parseOptionalTime(w, req.EndDate, "end_date"); !ok {
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), id, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: rule})
}

// DeleteRule handles DELETE /api/v1/admin/promotions/{id}
func (h *PromotionHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "rule id is required")
		return
	}

	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ApplyRule handles POST /api/v1/admin/promotions/{id}/apply
func (h *PromotionHandler) ApplyRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "rule id is required")
		return
	}

	summary, err := h.service.ApplyRule(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: summary})
}

// RevertRule handles POST /api/v1/admin/promotions/{id}/revert
func (h *PromotionHandler) RevertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "rule id is required")
		return
	}

	reverted, err := h.service.RevertRule(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]int{"reverted": reverted}})
}

// parseOptionalTime parses an optional RFC3339 field, writing a 400 response
// on malformed input.
func parseOptionalTime(w http.ResponseWriter, s *string, field string) (*time.Time, bool) {
	if s == nil {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		writeBadRequest(w, field+" must be in RFC3339 format")
		return nil, false
	}
	return &t, true
}
