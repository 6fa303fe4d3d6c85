package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/EdrumVIOT/Back-End/internal/domain"
)

// OrderCreated is published after a cart has been materialized into an
// order. Downstream consumers (fulfilment, reporting) read it; the checkout
// path never waits on them.
type OrderCreated struct {
	EventID     string    `json:"event_id"`
	OrderID     string    `json:"order_id"`
	CartID      string    `json:"cart_id"`
	Guest       bool      `json:"guest"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order)
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &kafkaPublisher{writer: w}
}

// PublishOrderCreated is best-effort: a broker outage must not fail an order
// that is already durable in the store.
func (p *kafkaPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) {
	event := OrderCreated{
		EventID:     uuid.NewString(),
		OrderID:     order.ID.Hex(),
		CartID:      order.CartID.Hex(),
		Guest:       order.Guest,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	}

	value, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal order event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("order_id", event.OrderID).Msg("failed to publish order event")
	}
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
