package kafka

import (
	"log/slog"
	"testing"
)

func TestDLQTopicPrefix(t *testing.T) {
	if DLQTopicPrefix != "boutique.dlq" {
		t.Errorf("DLQTopicPrefix = %q, want %q", DLQTopicPrefix, "boutique.dlq")
	}
}

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		name          string
		originalTopic string
		want          string
	}{
		{
			name:          "standard topic",
			originalTopic: "boutique.payment.succeeded",
			want:          "boutique.dlq.boutique.payment.succeeded",
		},
		{
			name:          "simple topic name",
			originalTopic: "payments",
			want:          "boutique.dlq.payments",
		},
		{
			name:          "deeply nested topic",
			originalTopic: "boutique.payment.stripe.webhook",
			want:          "boutique.dlq.boutique.payment.stripe.webhook",
		},
		{
			name:          "topic with hyphens",
			originalTopic: "pricing-events",
			want:          "boutique.dlq.pricing-events",
		},
		{
			name:          "topic with underscores",
			originalTopic: "boutique.pricing.rule_applied",
			want:          "boutique.dlq.boutique.pricing.rule_applied",
		},
		{
			name:          "empty topic",
			originalTopic: "",
			want:          "boutique.dlq.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DLQTopic(tt.originalTopic)
			if got != tt.want {
				t.Errorf("DLQTopic(%q) = %q, want %q", tt.originalTopic, got, tt.want)
			}
		})
	}
}

func TestDLQTopic_ContainsPrefix(t *testing.T) {
	topic := DLQTopic("some.topic")
	if len(topic) <= len(DLQTopicPrefix) {
		t.Fatalf("DLQTopic result %q should be longer than prefix %q", topic, DLQTopicPrefix)
	}
	prefix := topic[:len(DLQTopicPrefix)]
	if prefix != DLQTopicPrefix {
		t.Errorf("DLQTopic(%q) prefix = %q, want %q", "some.topic", prefix, DLQTopicPrefix)
	}
}

func TestNewConsumer_DLQWiring(t *testing.T) {
	logger := slog.Default()

	withDLQ := NewConsumer(ConsumerConfig{
		Brokers:   []string{"localhost:9092"},
		GroupID:   "test-group",
		Topic:     "boutique.payment.succeeded",
		EnableDLQ: true,
	}, nil, logger)
	defer withDLQ.Close()
	if withDLQ.dlq == nil {
		t.Error("EnableDLQ should attach a DLQ producer to the consumer")
	}

	withoutDLQ := NewConsumer(ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "test-group",
		Topic:   "boutique.payment.succeeded",
	}, nil, logger)
	defer withoutDLQ.Close()
	if withoutDLQ.dlq != nil {
		t.Error("consumer without EnableDLQ should not carry a DLQ producer")
	}
}
