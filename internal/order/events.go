package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Event is published after the order change has committed.
type Event struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   EventPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type EventPayload struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	ClientID    string          `json:"client_id"`
	Status      string          `json:"status"`
	FromStatus  string          `json:"from_status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Locker serializes work on one order across service instances.
type Locker interface {
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}
