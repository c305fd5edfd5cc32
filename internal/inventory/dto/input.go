package dto

import (
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

// EntryInput feeds ApplyEntry. A zero UnitCost is folded into the average
// like any other cost unless KeepAverageCost is set.
type EntryInput struct {
	ProductID        string `validate:"required"`
	MovementType     model.MovementType
	Quantity         decimal.Decimal
	UnitCost         decimal.Decimal
	KeepAverageCost  bool
	ReferenceOrderID *string
	Batch            *string `validate:"omitempty,max=50"`
	ExpiresAt        *time.Time
	Reason           string `validate:"max=500"`
	Notes            string
	CreatedBy        *string
}

// ExitInput feeds ApplyExit. AllowNegative is honoured only for adjustments.
type ExitInput struct {
	ProductID        string `validate:"required"`
	MovementType     model.MovementType
	Quantity         decimal.Decimal
	AllowNegative    bool
	ReferenceOrderID *string
	Reason           string `validate:"max=500"`
	Notes            string
	CreatedBy        *string
}

type RecordEntryInput struct {
	ProductID string `validate:"required"`
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Batch     string `validate:"max=50"`
	ExpiresAt *time.Time
	Reason    string `validate:"max=500"`
	UserID    string
}

// ReceiptInput books a purchase receipt. All items land in one transaction
// and a receipt id is booked at most once.
type ReceiptInput struct {
	ReceiptID  string             `validate:"required,max=100"`
	ReceivedBy string             `validate:"max=100"`
	Items      []ReceiptItemInput `validate:"min=1,dive"`
}

type ReceiptItemInput struct {
	ProductID string `validate:"required"`
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Batch     string `validate:"max=50"`
	ExpiresAt *time.Time
}

type ReceiptResult struct {
	ReceiptID string
	Duplicate bool // Already booked; nothing was written
	Levels    []model.StockView
}

type RecordMovementInput struct {
	ProductID    string `validate:"required"`
	MovementType string `validate:"required,oneof=adjustment_in adjustment_out loss_out internal_use_out return_in return_out"`
	Quantity     decimal.Decimal
	UnitCost     *decimal.Decimal // Entries only; nil or zero keeps the average cost
	Reason       string           `validate:"required,max=500"`
	Notes        string
	UserID       string
}

type UpdateLimitsInput struct {
	ProductID    string `validate:"required"`
	MinStock     decimal.Decimal
	MaxStock     decimal.Decimal
	ReorderPoint decimal.Decimal
}

// LedgerTotals summarises a product's movements.
type LedgerTotals struct {
	Sum             decimal.Decimal `db:"delta_sum"`
	Count           int             `db:"movement_count"`
	LastAverageCost decimal.Decimal `db:"last_average_cost"`
}
