package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	pkgkafka "github.com/tahiry-dev-29/boutique-pricing/pkg/kafka"
)

// Kafka topic constants for pricing domain events.
const (
	TopicRuleApplied   = "boutique.pricing.rule_applied"
	TopicRuleReverted  = "boutique.pricing.rule_reverted"
	TopicCodeCreated   = "boutique.pricing.code_created"
	TopicCodeActivated = "boutique.pricing.code_activated"
	TopicCodeExpired   = "boutique.pricing.code_expired"
)

// Aggregate type constants.
const (
	AggregateTypeRule      = "promotion_rule"
	AggregateTypePromoCode = "promo_code"
)

// Source identifier for events originating from the pricing service.
const SourcePricingService = "pricing-service"

// RuleAppliedData is the payload for a pricing.rule_applied event.
type RuleAppliedData struct {
	RuleID          string `json:"rule_id"`
	Name            string `json:"name"`
	DiscountPercent int    `json:"discount_percentage"`
	Updated         int    `json:"updated"`
	Skipped         int    `json:"skipped"`
	Conflicted      int    `json:"conflicted"`
}

// RuleRevertedData is the payload for a pricing.rule_reverted event.
type RuleRevertedData struct {
	RuleID   string `json:"rule_id"`
	Name     string `json:"name"`
	Reverted int    `json:"reverted"`
}

// CodeCreatedData is the payload for a pricing.code_created event.
type CodeCreatedData struct {
	CodeID          string `json:"code_id"`
	Code            string `json:"code"`
	Type            string `json:"type"`
	Value           int64  `json:"value"`
	Duration        string `json:"duration"`
	OwnerID         string `json:"owner_id"`
	ActivationPrice int64  `json:"activation_price"`
}

// CodeActivatedData is the payload for a pricing.code_activated event.
type CodeActivatedData struct {
	CodeID       string `json:"code_id"`
	Code         string `json:"code"`
	OwnerID      string `json:"owner_id"`
	EndDate      string `json:"end_date"`
	MarkedUp     int    `json:"marked_up"`
	MarkupFactor string `json:"markup_factor"`
}

// CodeExpiredData is the payload for a pricing.code_expired event.
type CodeExpiredData struct {
	CodeID   string `json:"code_id"`
	Code     string `json:"code"`
	OwnerID  string `json:"owner_id"`
	Reverted int    `json:"reverted"`
}

// Producer publishes pricing domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the pricing service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishRuleApplied publishes a pricing.rule_applied event.
func (p *Producer) PublishRuleApplied(ctx context.Context, rule *domain.PromotionRule, updated, skipped, conflicted int) error {
	data := RuleAppliedData{
		RuleID:          rule.ID,
		Name:            rule.Name,
		DiscountPercent: rule.Actions.DiscountPercent,
		Updated:         updated,
		Skipped:         skipped,
		Conflicted:      conflicted,
	}

	event, err := pkgkafka.NewEvent(TopicRuleApplied, rule.ID, AggregateTypeRule, SourcePricingService, data)
	if err != nil {
		return fmt.Errorf("create pricing.rule_applied event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRuleApplied, event); err != nil {
		return fmt.Errorf("publish pricing.rule_applied event: %w", err)
	}

	p.logger.DebugContext(ctx, "published pricing.rule_applied event",
		slog.String("rule_id", rule.ID),
		slog.Int("updated", updated),
	)

	return nil
}

// PublishRuleReverted publishes a pricing.rule_reverted event.
func (p *Producer) PublishRuleReverted(ctx context.Context, rule *domain.PromotionRule, reverted int) error {
	data := RuleRevertedData{
		RuleID:   rule.ID,
		Name:     rule.Name,
		Reverted: reverted,
	}

	event, err := pkgkafka.NewEvent(TopicRuleReverted, rule.ID, AggregateTypeRule, SourcePricingService, data)
	if err != nil {
		return fmt.Errorf("create pricing.rule_reverted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRuleReverted, event); err != nil {
		return fmt.Errorf("publish pricing.rule_reverted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published pricing.rule_reverted event",
		slog.String("rule_id", rule.ID),
		slog.Int("reverted", reverted),
	)

	return nil
}

// PublishCodeCreated publishes a pricing.code_created event.
func (p *Producer) PublishCodeCreated(ctx context.Context, code *domain.PromoCode) error {
	data := CodeCreatedData{
		CodeID:          code.ID,
		Code:            code.Code,
		Type:            string(code.Type),
		Value:           code.Value,
		Duration:        string(code.Duration),
		OwnerID:         code.OwnerID,
		ActivationPrice: code.ActivationPrice,
	}

	event, err := pkgkafka.NewEvent(TopicCodeCreated, code.ID, AggregateTypePromoCode, SourcePricingService, data)
	if err != nil {
		return fmt.Errorf("create pricing.code_created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCodeCreated, event); err != nil {
		return fmt.Errorf("publish pricing.code_created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published pricing.code_created event",
		slog.String("code_id", code.ID),
		slog.String("code", code.Code),
	)

	return nil
}

// PublishCodeActivated publishes a pricing.code_activated event.
func (p *Producer) PublishCodeActivated(ctx context.Context, code *domain.PromoCode, markedUp int, factor string) error {
	data := CodeActivatedData{
		CodeID:       code.ID,
		Code:         code.Code,
		OwnerID:      code.OwnerID,
		EndDate:      code.EndDate.Format("2006-01-02T15:04:05Z07:00"),
		MarkedUp:     markedUp,
		MarkupFactor: factor,
	}

	event, err := pkgkafka.NewEvent(TopicCodeActivated, code.ID, AggregateTypePromoCode, SourcePricingService, data)
	if err != nil {
		return fmt.Errorf("create pricing.code_activated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCodeActivated, event); err != nil {
		return fmt.Errorf("publish pricing.code_activated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published pricing.code_activated event",
		slog.String("code_id", code.ID),
		slog.String("owner_id", code.OwnerID),
	)

	return nil
}

// PublishCodeExpired publishes a pricing.code_expired event.
func (p *Producer) PublishCodeExpired(ctx context.Context, code *domain.PromoCode, reverted int) error {
	data := CodeExpiredData{
		CodeID:   code.ID,
		Code:     code.Code,
		OwnerID:  code.OwnerID,
		Reverted: reverted,
	}

	event, err := pkgkafka.NewEvent(TopicCodeExpired, code.ID, AggregateTypePromoCode, SourcePricingService, data)
	if err != nil {
		return fmt.Errorf("create pricing.code_expired event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCodeExpired, event); err != nil {
		return fmt.Errorf("publish pricing.code_expired event: %w", err)
	}

	p.logger.DebugContext(ctx, "published pricing.code_expired event",
		slog.String("code_id", code.ID),
		slog.Int("reverted", reverted),
	)

	return nil
}
