package model

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusInvoiced  OrderStatus = "invoiced"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusConfirmed, OrderStatusInvoiced, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash            PaymentMethod = "cash"
	PaymentInstallments2x  PaymentMethod = "installments_2x"
	PaymentInstallments3x  PaymentMethod = "installments_3x"
	PaymentInstallments4x  PaymentMethod = "installments_4x"
	PaymentInstallments6x  PaymentMethod = "installments_6x"
	PaymentInstallments12x PaymentMethod = "installments_12x"
	PaymentCredit30        PaymentMethod = "credit_30"
	PaymentCredit60        PaymentMethod = "credit_60"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentInstallments2x, PaymentInstallments3x, PaymentInstallments4x,
		PaymentInstallments6x, PaymentInstallments12x, PaymentCredit30, PaymentCredit60:
		return true
	}
	return false
}

type Order struct {
	BaseModel
	OrderNumber     string          `db:"order_number" json:"order_number"`
	ClientID        string          `db:"client_id" json:"client_id"`
	Status          OrderStatus     `db:"status" json:"status"`
	PaymentMethod   PaymentMethod   `db:"payment_method" json:"payment_method"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"` // Order-level discount value
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`               // After the order-level discount
	ICMSTotal       decimal.Decimal `db:"icms_total" json:"icms_total"`
	PISTotal        decimal.Decimal `db:"pis_total" json:"pis_total"`
	COFINSTotal     decimal.Decimal `db:"cofins_total" json:"cofins_total"`
	TaxTotal        decimal.Decimal `db:"tax_total" json:"tax_total"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Notes           string          `db:"notes" json:"notes"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	Items           []OrderItem     `db:"-" json:"items"`
}

type OrderItem struct {
	ID             string          `db:"id" json:"id"`
	OrderID        string          `db:"sale_order_id" json:"order_id"`
	ProductID      *string         `db:"product_id" json:"product_id"` // Nil for ephemeral lines
	ProductName    string          `db:"product_name" json:"product_name"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	GrossTotal     decimal.Decimal `db:"gross_total" json:"gross_total"`
	NetTotal       decimal.Decimal `db:"net_total" json:"net_total"`
	ICMSRate       decimal.Decimal `db:"icms_rate" json:"icms_rate"`
	PISRate        decimal.Decimal `db:"pis_rate" json:"pis_rate"`
	COFINSRate     decimal.Decimal `db:"cofins_rate" json:"cofins_rate"`
	ICMSAmount     decimal.Decimal `db:"icms_amount" json:"icms_amount"`
	PISAmount      decimal.Decimal `db:"pis_amount" json:"pis_amount"`
	COFINSAmount   decimal.Decimal `db:"cofins_amount" json:"cofins_amount"`
	LineNumber     int             `db:"line_number" json:"line_number"`
}

// Tracked reports whether the line moves stock.
func (i *OrderItem) Tracked() bool {
	return i.ProductID != nil
}

func (i *OrderItem) TaxTotal() decimal.Decimal {
	return i.ICMSAmount.Add(i.PISAmount).Add(i.COFINSAmount)
}

// OrderStats aggregates active orders. Values exclude cancelled orders.
type OrderStats struct {
	TotalOrders     int                 `json:"total_orders"`
	TotalValue      decimal.Decimal     `json:"total_value"`
	AverageValue    decimal.Decimal     `json:"average_value"`
	ByStatus        map[OrderStatus]int `json:"by_status"`
	OrdersThisMonth int                 `json:"orders_this_month"`
	ValueThisMonth  decimal.Decimal     `json:"value_this_month"`
}
