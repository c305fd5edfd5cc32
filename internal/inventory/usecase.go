package inventory

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type UseCase interface {
	// Engine operations. Both join the caller's transaction when one is open.
	ApplyEntry(ctx context.Context, input *dto.EntryInput) (*model.StockLevel, error)
	ApplyExit(ctx context.Context, input *dto.ExitInput) (*model.StockLevel, error)

	GetCurrent(ctx context.Context, productID string) (*model.StockView, error)
	ListStock(ctx context.Context, filters *dto.StockFilters) ([]model.StockView, int, error)
	RecordStockEntry(ctx context.Context, input *dto.RecordEntryInput) (*model.StockView, error)
	RecordReceipt(ctx context.Context, input *dto.ReceiptInput) (*dto.ReceiptResult, error)
	RecordStockMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockView, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	UpdateLimits(ctx context.Context, input *dto.UpdateLimitsInput) (*model.StockView, error)
	VerifyLedger(ctx context.Context, productID string) (*model.LedgerCheck, error)
	RebuildLevel(ctx context.Context, productID string) (*model.StockView, error)
}
