package http

import (
	"log/slog"
	"net/http"

	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
)

// AdminHandler exposes operational endpoints for the admin gateway.
type AdminHandler struct {
	reconciler *service.ExpiryReconciler
	logger     *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(reconciler *service.ExpiryReconciler, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Reconcile handles POST /api/v1/admin/reconcile
//
// It runs a reconciliation pass on demand instead of waiting for the next
// scheduled sweep and reports what the pass expired.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	summary := h.reconciler.RunOnce(r.Context())

	h.logger.InfoContext(r.Context(), "on-demand reconciliation completed",
		slog.Int("rules_expired", summary.RulesExpired),
		slog.Int("codes_expired", summary.CodesExpired),
		slog.Int("entities_reverted", summary.EntitiesReverted),
	)

	writeJSON(w, http.StatusOK, response{Data: summary})
}
