package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementPurchaseEntry  MovementType = "purchase_entry"
	MovementSaleExit       MovementType = "sale_exit"
	MovementAdjustmentIn   MovementType = "adjustment_in"
	MovementAdjustmentOut  MovementType = "adjustment_out"
	MovementLossOut        MovementType = "loss_out"
	MovementInternalUseOut MovementType = "internal_use_out"
	MovementReturnIn       MovementType = "return_in"
	MovementReturnOut      MovementType = "return_out"
)

func (t MovementType) Valid() bool {
	return t == MovementPurchaseEntry || t == MovementSaleExit || t.IsManual()
}

func (t MovementType) IsEntry() bool {
	switch t {
	case MovementPurchaseEntry, MovementAdjustmentIn, MovementReturnIn:
		return true
	}
	return false
}

// IsAdjustment reports whether the movement may drive stock negative.
func (t MovementType) IsAdjustment() bool {
	return t == MovementAdjustmentIn || t == MovementAdjustmentOut
}

// IsManual reports whether operators may record the type by hand.
func (t MovementType) IsManual() bool {
	switch t {
	case MovementAdjustmentIn, MovementAdjustmentOut, MovementLossOut,
		MovementInternalUseOut, MovementReturnIn, MovementReturnOut:
		return true
	}
	return false
}

// StockLevel is the current-state projection of a product's ledger.
type StockLevel struct {
	ProductID           string          `db:"product_id" json:"product_id"`
	QuantityAvailable   decimal.Decimal `db:"quantity_available" json:"quantity_available"`
	WeightedAverageCost decimal.Decimal `db:"weighted_average_cost" json:"weighted_average_cost"`
	MinStock            decimal.Decimal `db:"min_stock" json:"min_stock"`
	MaxStock            decimal.Decimal `db:"max_stock" json:"max_stock"`
	ReorderPoint        decimal.Decimal `db:"reorder_point" json:"reorder_point"`
	LastEntryAt         *time.Time      `db:"last_entry_at" json:"last_entry_at"`
	LastExitAt          *time.Time      `db:"last_exit_at" json:"last_exit_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

type StockMovement struct {
	ID                string          `db:"id" json:"id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	MovementType      MovementType    `db:"movement_type" json:"movement_type"`
	QuantityBefore    decimal.Decimal `db:"quantity_before" json:"quantity_before"`
	QuantityDelta     decimal.Decimal `db:"quantity_delta" json:"quantity_delta"` // Signed
	QuantityAfter     decimal.Decimal `db:"quantity_after" json:"quantity_after"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	AverageCostBefore decimal.Decimal `db:"average_cost_before" json:"average_cost_before"`
	AverageCostAfter  decimal.Decimal `db:"average_cost_after" json:"average_cost_after"`
	TotalValue        decimal.Decimal `db:"total_value" json:"total_value"`
	ReferenceOrderID  *string         `db:"reference_order_id" json:"reference_order_id"`
	Batch             *string         `db:"batch" json:"batch"`
	ExpiresAt         *time.Time      `db:"expires_at" json:"expires_at"`
	Reason            string          `db:"reason" json:"reason"`
	Notes             string          `db:"notes" json:"notes"`
	AllowNegative     bool            `db:"allow_negative" json:"allow_negative"`
	CreatedBy         *string         `db:"created_by" json:"created_by"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// StockView is a StockLevel with its derived flags.
type StockView struct {
	StockLevel
	NeedsRestock  bool            `json:"needs_restock"`
	ZeroStock     bool            `json:"zero_stock"`
	NegativeStock bool            `json:"negative_stock"`
	StockValue    decimal.Decimal `json:"stock_value"`
}

func NewStockView(l StockLevel) StockView {
	q := l.QuantityAvailable
	return StockView{
		StockLevel:    l,
		NeedsRestock:  q.LessThanOrEqual(l.MinStock),
		ZeroStock:     q.IsZero(),
		NegativeStock: q.IsNegative(),
		StockValue:    q.Mul(l.WeightedAverageCost).Round(2),
	}
}

// LedgerCheck compares a product's projection with the sum of its movements.
type LedgerCheck struct {
	ProductID     string          `json:"product_id"`
	Projected     decimal.Decimal `json:"projected"`
	LedgerSum     decimal.Decimal `json:"ledger_sum"`
	MovementCount int             `json:"movement_count"`
	Consistent    bool            `json:"consistent"`
}
