package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"mesa/internal/platform/kafka/producer"
)

// messageProducer is the slice of the Kafka producer the publisher uses.
type messageProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// Publisher emits provisioning events to the reconcile topic. A nil
// Publisher is valid and drops everything, so callers never have to guard
// for Kafka being unconfigured.
type Publisher struct {
	producer messageProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher wires a publisher onto an existing producer. Returns nil
// when the producer is nil.
func NewPublisher(p *producer.Producer, topic string, logger *slog.Logger) *Publisher {
	if p == nil {
		return nil
	}
	return &Publisher{producer: p, topic: topic, logger: logger}
}

// newWithProducer is the test seam for injecting a fake producer.
func newWithProducer(p messageProducer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{producer: p, topic: topic, logger: logger}
}

// Publish enqueues the event asynchronously, keyed by user id so events for
// one account stay ordered. Failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}

	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal provisioning event", "error", err)
		return
	}

	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(ev.UserID),
		Value: value,
		Headers: map[string]string{
			"event-kind": ev.Kind,
		},
	}
	if err := p.producer.ProduceAsync(msg); err != nil {
		p.logger.WarnContext(ctx, "enqueue provisioning event",
			"kind", ev.Kind,
			"userID", ev.UserID,
			"error", err,
		)
	}
}
