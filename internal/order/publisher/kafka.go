package publisher

import (
	"context"
	"encoding/json"

	"github.com/fekuna/omnipos-sales-service/internal/order"
)

// Producer is the slice of broker.KafkaProducer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type KafkaPublisher struct {
	producer Producer
}

func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish keys each event by order id so one order's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event *order.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, event.Payload.ID, value)
}
