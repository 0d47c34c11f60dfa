package repository

import (
	"context"

	"chartfeed/internal/domain/models"
)

// messagePublisher is satisfied by *kafka.Producer.
type messagePublisher interface {
	Publish(ctx context.Context, key []byte, value interface{}) error
	Close() error
}

// KafkaShapeEvents publishes shape changes keyed by symbol, so every
// change of one symbol lands on the same partition in order.
type KafkaShapeEvents struct {
	producer messagePublisher
}

func NewKafkaShapeEvents(producer messagePublisher) *KafkaShapeEvents {
	return &KafkaShapeEvents{producer: producer}
}

func (k *KafkaShapeEvents) Publish(ctx context.Context, ev models.ShapeEvent) error {
	return k.producer.Publish(ctx, []byte(ev.Shape.Symbol), ev)
}

func (k *KafkaShapeEvents) Close() error {
	return k.producer.Close()
}

// NopShapeEvents drops every event.
type NopShapeEvents struct{}

func (NopShapeEvents) Publish(context.Context, models.ShapeEvent) error { return nil }
func (NopShapeEvents) Close() error { return nil }
