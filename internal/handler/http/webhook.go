package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tahiry-dev-29/boutique-pricing/internal/service"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/validator"
)

// PaymentVerifier double-checks a webhook's payment claims against the
// payment service before they are acted on.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentID string, expectedAmount int64) error
}

// WebhookHandler receives payment provider callbacks. A succeeded payment for
// a code's activation price activates the code; providers redeliver webhooks,
// so the activation path is idempotent.
type WebhookHandler struct {
	codes    *service.PromoCodeService
	payments PaymentVerifier
	logger   *slog.Logger
}

// NewWebhookHandler creates a new payment webhook handler. payments may be
// nil, in which case webhook payloads are trusted as-is.
func NewWebhookHandler(codes *service.PromoCodeService, payments PaymentVerifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		codes:    codes,
		payments: payments,
		logger:   logger,
	}
}

// PaymentWebhookRequest is the JSON payload a payment provider posts back.
type PaymentWebhookRequest struct {
	EventType string `json:"event_type" validate:"required,oneof=payment.succeeded payment.failed"`
	PaymentID string `json:"payment_id" validate:"required"`
	CodeID    string `json:"code_id" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

// HandlePayment handles POST /api/v1/webhooks/payment
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if req.EventType != "payment.succeeded" {
		// Failed payments change nothing; the code stays PENDING.
		h.logger.InfoContext(r.Context(), "ignoring non-success payment webhook",
			slog.String("event_type", req.EventType),
			slog.String("payment_id", req.PaymentID),
			slog.String("code_id", req.CodeID),
		)
		writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "ignored"}})
		return
	}

	if h.payments != nil {
		if err := h.payments.VerifyPayment(r.Context(), req.PaymentID, req.Amount); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	code, err := h.codes.ActivateCode(r.Context(), req.CodeID, req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: code})
}
