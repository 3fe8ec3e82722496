package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
)

// CatalogHandler exposes read-only views over the priced catalog, mainly for
// inspecting what a rule or code did to prices.
type CatalogHandler struct {
	catalog repository.CatalogRepository
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(catalog repository.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ListEntities handles GET /api/v1/catalog/entities
func (h *CatalogHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	filter := repository.EntityFilter{Limit: 100}

	if v := r.URL.Query().Get("owner_id"); v != "" {
		filter.OwnerID = &v
	}
	if v := r.URL.Query().Get("after_id"); v != "" {
		filter.AfterID = v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}

	entities, err := h.catalog.ListEntities(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: entities})
}

// GetProduct handles GET /api/v1/catalog/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "product id is required")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: product})
}

// GetVariant handles GET /api/v1/catalog/variants/{id}
func (h *CatalogHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "variant id is required")
		return
	}

	variant, err := h.catalog.GetVariant(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: variant})
}
