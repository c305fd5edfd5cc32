package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ReceiptListener turns purchase receipts into stock entries.
type ReceiptListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	logger   logger.ZapLogger
}

func NewReceiptListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *ReceiptListener {
	return &ReceiptListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *ReceiptListener) Start(ctx context.Context) {
	l.logger.Info("Starting receipt Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping receipt Kafka listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

const eventReceiptCompleted = "ReceiptCompleted"

type ReceiptEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Payload   ReceiptPayload `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type ReceiptPayload struct {
	ID         string               `json:"id"`
	SupplierID string               `json:"supplier_id"`
	ReceivedBy string               `json:"received_by"`
	Items      []ReceiptItemPayload `json:"items"`
}

type ReceiptItemPayload struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Batch     string          `json:"batch"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

func (l *ReceiptListener) processMessage(ctx context.Context, value []byte) {
	var event ReceiptEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != eventReceiptCompleted {
		return
	}

	receiptID := event.Payload.ID
	if receiptID == "" {
		receiptID = event.EventID
	}
	l.logger.Info("Processing ReceiptCompleted event", zap.String("receipt_id", receiptID))

	input := &dto.ReceiptInput{
		ReceiptID:  receiptID,
		ReceivedBy: event.Payload.ReceivedBy,
	}
	for _, item := range event.Payload.Items {
		// Lines received short are listed with quantity zero
		if !item.Quantity.IsPositive() {
			continue
		}
		input.Items = append(input.Items, dto.ReceiptItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			Batch:     item.Batch,
			ExpiresAt: item.ExpiresAt,
		})
	}
	if len(input.Items) == 0 {
		l.logger.Warn("Receipt has no received items", zap.String("receipt_id", receiptID))
		return
	}

	if _, err := l.uc.RecordReceipt(ctx, input); err != nil {
		l.logger.Error("Failed to book receipt, no item was recorded",
			zap.String("receipt_id", receiptID),
			zap.Error(err),
		)
	}
}
