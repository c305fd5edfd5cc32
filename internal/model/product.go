package model

import "github.com/shopspring/decimal"

// Product is the catalog view the sales core reads. Rate fields are
// per-product overrides in percent; zero means "use the rate table".
type Product struct {
	BaseModel
	SKU               string          `db:"sku" json:"sku"`
	Name              string          `db:"name" json:"name"`
	SalePrice         decimal.Decimal `db:"sale_price" json:"sale_price"`
	CostPrice         decimal.Decimal `db:"cost_price" json:"cost_price"`
	NCM               string          `db:"ncm" json:"ncm"`
	CST               string          `db:"cst" json:"cst"`
	ICMSRate          decimal.Decimal `db:"icms_rate" json:"icms_rate"`
	PISRate           decimal.Decimal `db:"pis_rate" json:"pis_rate"`
	COFINSRate        decimal.Decimal `db:"cofins_rate" json:"cofins_rate"`
	QuantityAvailable decimal.Decimal `db:"quantity_available" json:"quantity_available"` // Joined from stock_levels
	MinStock          decimal.Decimal `db:"min_stock" json:"min_stock"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	Ephemeral         bool            `db:"-" json:"ephemeral"` // Walk-in line, not in the catalog
}

// ProductRef points an order line at a product. Exactly one of ID or
// Ephemeral is set.
type ProductRef struct {
	ID        string            `json:"id,omitempty"`
	Ephemeral *EphemeralProduct `json:"ephemeral,omitempty"`
}

// EphemeralProduct describes an item sold without a catalog entry. It is
// priced and taxed like any product but never touches stock.
type EphemeralProduct struct {
	Name       string          `json:"name" validate:"required,max=255"`
	NCM        string          `json:"ncm"`
	CST        string          `json:"cst"`
	ICMSRate   decimal.Decimal `json:"icms_rate"`
	PISRate    decimal.Decimal `json:"pis_rate"`
	COFINSRate decimal.Decimal `json:"cofins_rate"`
}

func (e *EphemeralProduct) Product() *Product {
	return &Product{
		Name:       e.Name,
		NCM:        e.NCM,
		CST:        e.CST,
		ICMSRate:   e.ICMSRate,
		PISRate:    e.PISRate,
		COFINSRate: e.COFINSRate,
		IsActive:   true,
		Ephemeral:  true,
	}
}
