package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
	"github.com/tahiry-dev-29/boutique-pricing/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Payment is the payment provider's view of a charge.
type Payment struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentClient talks to the payment service to confirm that a webhook's
// claims about a payment are real. Webhook payloads are attacker-reachable,
// so activation never trusts them without a provider-side lookup.
type PaymentClient struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewPaymentClient creates a payment service client.
func NewPaymentClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *PaymentClient {
	return &PaymentClient{
		http:    doer,
		baseURL: baseURL,
		logger:  logger,
	}
}

// GetPayment fetches a payment by ID from the payment service.
func (c *PaymentClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("create payment lookup request: %w", err)
	}

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("payment", paymentID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "payment")
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}

	return &payment, nil
}

// VerifyPayment confirms that the payment exists, succeeded, and covers the
// expected amount.
func (c *PaymentClient) VerifyPayment(ctx context.Context, paymentID string, expectedAmount int64) error {
	payment, err := c.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if payment.Status != "succeeded" {
		return apperrors.PaymentFailed(fmt.Sprintf("payment %s has status %q", paymentID, payment.Status))
	}
	if payment.Amount < expectedAmount {
		return apperrors.PaymentFailed(fmt.Sprintf("payment %s amount %d does not cover %d", paymentID, payment.Amount, expectedAmount))
	}

	c.logger.DebugContext(ctx, "payment verified",
		slog.String("payment_id", paymentID),
		slog.Int64("amount", payment.Amount),
	)
	return nil
}
