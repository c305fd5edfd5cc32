package dto

import "time"

type StockFilters struct {
	ProductID         string
	LowStockOnly      bool // quantity_available <= min_stock
	ZeroStockOnly     bool
	NegativeStockOnly bool
	Page              int
	PageSize          int
}

type MovementFilters struct {
	ProductID        string
	MovementType     string
	ReferenceOrderID string
	StartDate        *time.Time
	EndDate          *time.Time
	Page             int
	PageSize         int
}
