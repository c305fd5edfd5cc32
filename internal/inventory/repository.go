package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	// LockLevel returns the product's level locked until the surrounding
	// transaction ends, creating an empty level on first use. Returns nil, nil
	// for unknown products.
	LockLevel(ctx context.Context, productID string) (*model.StockLevel, error)
	GetLevel(ctx context.Context, productID string) (*model.StockLevel, error)
	SaveLevel(ctx context.Context, level *model.StockLevel) error
	FindAll(ctx context.Context, filters *dto.StockFilters) ([]model.StockLevel, int, error)

	// Ledger
	AppendMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	LedgerTotals(ctx context.Context, productID string) (*dto.LedgerTotals, error)

	// MarkReceipt records receiptID as booked in the caller's transaction.
	// Returns false when it was booked before.
	MarkReceipt(ctx context.Context, receiptID string, itemCount int) (bool, error)
}

// Cache holds StockViews for reads that tolerate brief staleness. Views are
// versioned by UpdatedAt: Set must drop a view older than the version of the
// last Invalidate, so a read racing a write cannot refill the cache with the
// level the write replaced.
type Cache interface {
	Get(ctx context.Context, productID string) (*model.StockView, bool)
	Set(ctx context.Context, view *model.StockView)
	Invalidate(ctx context.Context, productID string, version time.Time)
}
