package dto

import (
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type OrderItemInput struct {
	Product        model.ProductRef
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

type CreateOrderInput struct {
	ClientID        string           `validate:"required"`
	Items           []OrderItemInput `validate:"min=1,dive"`
	DiscountPercent decimal.Decimal
	PaymentMethod   string `validate:"required,oneof=cash installments_2x installments_3x installments_4x installments_6x installments_12x credit_30 credit_60"`
	Notes           string `validate:"max=1000"`
	UserID          string
}

// UpdateOrderInput replaces the items of a draft. A nil DiscountPercent keeps
// the current one.
type UpdateOrderInput struct {
	OrderID         string           `validate:"required"`
	Items           []OrderItemInput `validate:"min=1,dive"`
	DiscountPercent *decimal.Decimal
	UserID          string
}

type TransitionInput struct {
	OrderID string `validate:"required"`
	Target  string `validate:"required,oneof=draft confirmed invoiced cancelled"`
	UserID  string
}

type SimulateTaxInput struct {
	ProductID string `validate:"required"`
	ClientID  string // Optional; in-state rates when empty
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}
