package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	"github.com/tahiry-dev-29/boutique-pricing/internal/event"
	"github.com/tahiry-dev-29/boutique-pricing/internal/lock"
	"github.com/tahiry-dev-29/boutique-pricing/internal/repository"
	apperrors "github.com/tahiry-dev-29/boutique-pricing/pkg/errors"
)

// PromoCodeService implements the promo code lifecycle: creation in PENDING,
// activation through payment confirmation, validation and redemption at
// checkout, and expiry.
type PromoCodeService struct {
	codes    repository.PromoCodeRepository
	markup   *MarkupEngine
	locker   lock.Locker
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPromoCodeService creates a new promo code service.
func NewPromoCodeService(codes repository.PromoCodeRepository, markup *MarkupEngine, locker lock.Locker, producer *event.Producer, logger *slog.Logger) *PromoCodeService {
	return &PromoCodeService{
		codes:    codes,
		markup:   markup,
		locker:   locker,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateCodeInput holds the parameters for purchasing a promo code.
type CreateCodeInput struct {
	Code           string
	Type           string
	Value          int64
	Duration       string
	UsageLimit     *int
	MinOrderAmount int64
	OwnerID        string
	// ActivationPrice overrides the computed activation price when set.
	ActivationPrice *int64
}

// ActivationQuote is the price quoted for activating a code with the given
// parameters.
type ActivationQuote struct {
	Type            domain.CodeType     `json:"type"`
	Value           int64               `json:"value"`
	Duration        domain.CodeDuration `json:"duration"`
	ActivationPrice int64               `json:"activation_price"`
}

// CodeValidation is the result of validating a code against an order.
type CodeValidation struct {
	Valid          bool   `json:"valid"`
	CodeID         string `json:"code_id,omitempty"`
	DiscountAmount int64  `json:"discount_amount"`
	Message        string `json:"message"`
}

// CreateCode registers a new promo code in PENDING state. The code grants
// nothing until payment of the activation price is confirmed; dates are
// provisional and recomputed from the actual activation time.
func (s *PromoCodeService) CreateCode(ctx context.Context, input *CreateCodeInput) (*domain.PromoCode, error) {
	code, err := domain.NormalizeCode(input.Code)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if !domain.IsValidCodeType(input.Type) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid code type %q", input.Type))
	}
	codeType := domain.CodeType(input.Type)
	if err := domain.ValidateCodeValue(codeType, input.Value); err != nil {
		if codeType == domain.CodeTypePercentage {
			return nil, apperrors.OutOfRange("percentage value", domain.PercentageValueMin, domain.PercentageValueMax)
		}
		return nil, apperrors.OutOfRange("fixed amount value", domain.FixedAmountValueMin, domain.FixedAmountValueMax)
	}
	duration := domain.CodeDuration(input.Duration)
	if !duration.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid duration %q", input.Duration))
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return nil, apperrors.InvalidInput("usage limit must be positive")
	}
	if input.MinOrderAmount < 0 {
		return nil, apperrors.InvalidInput("min order amount must not be negative")
	}
	if input.OwnerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}
	if input.ActivationPrice != nil && *input.ActivationPrice <= 0 {
		return nil, apperrors.InvalidInput("activation price override must be positive")
	}

	activationPrice := s.markup.ActivationPrice(duration, codeType, input.Value)
	if input.ActivationPrice != nil {
		activationPrice = *input.ActivationPrice
	}

	now := s.now().UTC()
	pc := &domain.PromoCode{
		ID:              uuid.New().String(),
		Code:            code,
		Type:            codeType,
		Value:           input.Value,
		Duration:        duration,
		StartDate:       now,
		EndDate:         duration.EndDateFrom(now),
		UsageLimit:      input.UsageLimit,
		UsageCount:      0,
		MinOrderAmount:  input.MinOrderAmount,
		OwnerID:         input.OwnerID,
		Status:          domain.CodeStatusPending,
		IsActive:        false,
		ActivationPrice: activationPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.codes.Create(ctx, pc); err != nil {
		return nil, fmt.Errorf("create promo code: %w", err)
	}

	if err := s.producer.PublishCodeCreated(ctx, pc); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish pricing.code_created event",
			slog.String("code_id", pc.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "promo code created",
		slog.String("code_id", pc.ID),
		slog.String("code", pc.Code),
		slog.String("owner_id", pc.OwnerID),
		slog.Int64("activation_price", pc.ActivationPrice),
	)

	return pc, nil
}

// GetCode retrieves a promo code by its ID.
func (s *PromoCodeService) GetCode(ctx context.Context, id string) (*domain.PromoCode, error) {
	pc, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promo code by id: %w", err)
	}
	return pc, nil
}

// GetCodeByValue retrieves a promo code by its value, case-insensitively.
func (s *PromoCodeService) GetCodeByValue(ctx context.Context, code string) (*domain.PromoCode, error) {
	pc, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get promo code by value: %w", err)
	}
	return pc, nil
}

// ListOwnerCodes returns the promo codes belonging to an owner.
func (s *PromoCodeService) ListOwnerCodes(ctx context.Context, ownerID string) ([]domain.PromoCode, error) {
	codes, err := s.codes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list promo codes by owner: %w", err)
	}
	return codes, nil
}

// QuoteActivation prices an activation without creating anything.
func (s *PromoCodeService) QuoteActivation(ctx context.Context, codeType, duration string, value int64) (*ActivationQuote, error) {
	if !domain.IsValidCodeType(codeType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid code type %q", codeType))
	}
	t := domain.CodeType(codeType)
	if err := domain.ValidateCodeValue(t, value); err != nil {
		if t == domain.CodeTypePercentage {
			return nil, apperrors.OutOfRange("percentage value", domain.PercentageValueMin, domain.PercentageValueMax)
		}
		return nil, apperrors.OutOfRange("fixed amount value", domain.FixedAmountValueMin, domain.FixedAmountValueMax)
	}
	d := domain.CodeDuration(duration)
	if !d.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid duration %q", duration))
	}

	return &ActivationQuote{
		Type:            t,
		Value:           value,
		Duration:        d,
		ActivationPrice: s.markup.ActivationPrice(d, t, value),
	}, nil
}

// ActivateCode transitions a code from PENDING to ACTIVE after its activation
// price was paid. The owner's catalog markup is applied before the status
// flip, so a crash mid-activation leaves the code PENDING and a webhook retry
// converges: the markup pass is idempotent and the flip happens exactly once.
// Activating an already ACTIVE code is a no-op re-convergence, not an error,
// because payment webhooks redeliver.
func (s *PromoCodeService) ActivateCode(ctx context.Context, id string, amountPaid int64) (*domain.PromoCode, error) {
	pc, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promo code for activation: %w", err)
	}

	ref := domain.PromoRef(pc.ID)
	release, err := s.locker.Acquire(ctx, ref.String(), lockTTL)
	if err != nil {
		return nil, lockError(ref, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	switch pc.Status {
	case domain.CodeStatusExpired:
		return nil, apperrors.StateConflict(fmt.Sprintf("promo code %s is expired and cannot be activated", pc.Code))
	case domain.CodeStatusActive:
		// Webhook redelivery: converge the markup and return the code as-is.
		if _, _, err := s.markup.ApplyOwnerMarkup(ctx, pc); err != nil {
			return nil, fmt.Errorf("reconverge markup for active code: %w", err)
		}
		return pc, nil
	}

	if amountPaid < pc.ActivationPrice {
		return nil, apperrors.PaymentFailed(fmt.Sprintf("amount paid %d is less than activation price %d", amountPaid, pc.ActivationPrice))
	}

	summary, factor, err := s.markup.ApplyOwnerMarkup(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("apply markup for activation: %w", err)
	}

	now := s.now().UTC()
	pc.Status = domain.CodeStatusActive
	pc.IsActive = true
	pc.StartDate = now
	pc.EndDate = pc.Duration.EndDateFrom(now)
	pc.UpdatedAt = now

	if err := s.codes.Update(ctx, pc); err != nil {
		return nil, fmt.Errorf("activate promo code: %w", err)
	}

	if err := s.producer.PublishCodeActivated(ctx, pc, summary.Updated, strconv.FormatFloat(factor, 'f', 4, 64)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish pricing.code_activated event",
			slog.String("code_id", pc.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code activated",
		slog.String("code_id", pc.ID),
		slog.String("code", pc.Code),
		slog.String("owner_id", pc.OwnerID),
		slog.Int("marked_up", summary.Updated),
		slog.Time("end_date", pc.EndDate),
	)

	return pc, nil
}

// ValidateCode checks whether a code is redeemable against an order amount.
func (s *PromoCodeService) ValidateCode(ctx context.Context, code string, orderAmount int64) (*CodeValidation, error) {
	pc, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		return &CodeValidation{Valid: false, Message: "promo code not found"}, nil
	}

	now := s.now().UTC()
	switch {
	case pc.Status == domain.CodeStatusPending:
		return &CodeValidation{Valid: false, CodeID: pc.ID, Message: "promo code is not activated"}, nil
	case pc.Status == domain.CodeStatusExpired:
		return &CodeValidation{Valid: false, CodeID: pc.ID, Message: "promo code has expired"}, nil
	case pc.Expired(now):
		return &CodeValidation{Valid: false, CodeID: pc.ID, Message: "promo code has expired"}, nil
	case pc.MinOrderAmount > 0 && orderAmount < pc.MinOrderAmount:
		return &CodeValidation{
			Valid:   false,
			CodeID:  pc.ID,
			Message: fmt.Sprintf("minimum order amount is %d", pc.MinOrderAmount),
		}, nil
	}

	return &CodeValidation{
		Valid:          true,
		CodeID:         pc.ID,
		DiscountAmount: codeDiscount(pc, orderAmount),
		Message:        "promo code is valid",
	}, nil
}

// RedeemCode validates a code against an order and consumes one usage.
func (s *PromoCodeService) RedeemCode(ctx context.Context, code string, orderAmount int64) (*CodeValidation, error) {
	validation, err := s.ValidateCode(ctx, code, orderAmount)
	if err != nil {
		return nil, fmt.Errorf("validate promo code for redeem: %w", err)
	}
	if !validation.Valid {
		return nil, apperrors.InvalidInput(validation.Message)
	}

	if err := s.codes.IncrementUsage(ctx, validation.CodeID); err != nil {
		return nil, fmt.Errorf("increment promo code usage: %w", err)
	}

	s.logger.InfoContext(ctx, "promo code redeemed",
		slog.String("code_id", validation.CodeID),
		slog.Int64("discount", validation.DiscountAmount),
	)

	return validation, nil
}

// ExpireCode reverts the owner's markup and transitions the code to EXPIRED.
// It is shared by the reconciler and manual expiry; reverting before the
// status flip means a crash leaves the code ACTIVE and the next pass retries
// the same idempotent revert.
func (s *PromoCodeService) ExpireCode(ctx context.Context, id string) (int, error) {
	pc, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get promo code for expiry: %w", err)
	}

	if pc.Status == domain.CodeStatusExpired {
		return 0, nil
	}

	ref := domain.PromoRef(pc.ID)
	release, err := s.locker.Acquire(ctx, ref.String(), lockTTL)
	if err != nil {
		return 0, lockError(ref, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	reverted := 0
	if pc.Status == domain.CodeStatusActive {
		reverted, err = s.markup.RevertOwnerMarkup(ctx, pc)
		if err != nil {
			return 0, fmt.Errorf("revert markup for expiry: %w", err)
		}
	}

	pc.Status = domain.CodeStatusExpired
	pc.IsActive = false
	pc.UpdatedAt = s.now().UTC()

	if err := s.codes.Update(ctx, pc); err != nil {
		return reverted, fmt.Errorf("expire promo code: %w", err)
	}

	if err := s.producer.PublishCodeExpired(ctx, pc, reverted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish pricing.code_expired event",
			slog.String("code_id", pc.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code expired",
		slog.String("code_id", pc.ID),
		slog.String("code", pc.Code),
		slog.Int("reverted", reverted),
	)

	return reverted, nil
}

// codeDiscount computes the checkout discount a code grants on an order.
func codeDiscount(pc *domain.PromoCode, orderAmount int64) int64 {
	switch pc.Type {
	case domain.CodeTypePercentage:
		return orderAmount * pc.Value / 100
	case domain.CodeTypeFixedAmount:
		if pc.Value > orderAmount {
			return orderAmount
		}
		return pc.Value
	default:
		return 0
	}
}
