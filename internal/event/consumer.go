package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
	pkgkafka "github.com/tahiry-dev-29/boutique-pricing/pkg/kafka"
)

// Topics consumed from the payment service.
const (
	TopicPaymentSucceeded = "boutique.payment.succeeded"
	TopicPaymentFailed    = "boutique.payment.failed"
)

// ConsumerGroupID for the pricing service.
const ConsumerGroupID = "pricing-service"

// PaymentSucceededData is the payload of a payment.succeeded event. CodeID is
// set when the payment was a promo code activation charge; payments for other
// purposes carry an empty CodeID and are ignored here.
type PaymentSucceededData struct {
	PaymentID string `json:"payment_id"`
	CodeID    string `json:"code_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// PaymentFailedData is the payload of a payment.failed event.
type PaymentFailedData struct {
	PaymentID     string `json:"payment_id"`
	CodeID        string `json:"code_id,omitempty"`
	Amount        int64  `json:"amount"`
	FailureReason string `json:"failure_reason"`
}

// CodeActivator activates a pending promo code after its activation price was
// paid. Implemented by the promo code service.
type CodeActivator interface {
	ActivateCode(ctx context.Context, codeID string, amountPaid int64) (*domain.PromoCode, error)
}

// ConsumerHandler routes incoming payment events to the promo code lifecycle.
type ConsumerHandler struct {
	activator CodeActivator
	logger    *slog.Logger
}

// NewConsumerHandler creates a new payment event consumer handler.
func NewConsumerHandler(activator CodeActivator, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		activator: activator,
		logger:    logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicPaymentSucceeded:
		return h.handlePaymentSucceeded(ctx, event)
	case TopicPaymentFailed:
		return h.handlePaymentFailed(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handlePaymentSucceeded activates the promo code a successful payment was
// charged for. Payments that do not reference a code belong to other
// services and are skipped. Activation conflicts (an expired code paid for
// too late) are logged and acknowledged rather than retried: redelivery
// cannot change the outcome.
func (h *ConsumerHandler) handlePaymentSucceeded(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentSucceededData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal payment.succeeded payload: %w", err)
	}

	if data.CodeID == "" {
		return nil
	}

	if _, err := h.activator.ActivateCode(ctx, data.CodeID, data.Amount); err != nil {
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrPaymentFailed) {
			h.logger.WarnContext(ctx, "payment.succeeded event could not activate code",
				slog.String("event_id", event.EventID),
				slog.String("code_id", data.CodeID),
				slog.String("payment_id", data.PaymentID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return fmt.Errorf("activate code %s: %w", data.CodeID, err)
	}

	h.logger.InfoContext(ctx, "promo code activated from payment event",
		slog.String("event_id", event.EventID),
		slog.String("code_id", data.CodeID),
		slog.String("payment_id", data.PaymentID),
	)
	return nil
}

// handlePaymentFailed logs the failure. The code stays PENDING; nothing to
// undo.
func (h *ConsumerHandler) handlePaymentFailed(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentFailedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal payment.failed payload: %w", err)
	}

	if data.CodeID == "" {
		return nil
	}

	h.logger.InfoContext(ctx, "activation payment failed, code stays pending",
		slog.String("event_id", event.EventID),
		slog.String("code_id", data.CodeID),
		slog.String("payment_id", data.PaymentID),
		slog.String("reason", data.FailureReason),
	)
	return nil
}

// NewConsumers creates Kafka consumers for the payment topics the pricing
// service subscribes to. The handler should already be wrapped for
// idempotency; payment events redeliver.
func NewConsumers(brokers []string, handler pkgkafka.Handler, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := []string{
		TopicPaymentSucceeded,
		TopicPaymentFailed,
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))

	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:   brokers,
			GroupID:   ConsumerGroupID,
			Topic:     topic,
			MinBytes:  1,
			MaxBytes:  10e6,
			EnableDLQ: true,
		}

		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handler, logger))
	}

	return consumers
}
