package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/telemetry"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/validate"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo     inventory.Repository
	products product.Repository
	tx       txm.Manager
	cache    inventory.Cache
	metrics  *telemetry.SalesMetrics
	logger   logger.ZapLogger
	now      func() time.Time
}

// NewInventoryUseCase wires the valuation engine. cache may be nil.
func NewInventoryUseCase(
	repo inventory.Repository,
	products product.Repository,
	tx txm.Manager,
	cache inventory.Cache,
	metrics *telemetry.SalesMetrics,
	log logger.ZapLogger,
) inventory.UseCase {
	return &inventoryUseCase{
		repo:     repo,
		products: products,
		tx:       tx,
		cache:    cache,
		metrics:  metrics,
		logger:   log,
		now:      time.Now,
	}
}

func (uc *inventoryUseCase) ApplyEntry(ctx context.Context, input *dto.EntryInput) (*model.StockLevel, error) {
	const op = "inventory.apply_entry"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if !input.MovementType.IsEntry() {
		return nil, apperror.Invalid(op, "movement type %q is not an entry", input.MovementType)
	}
	if err := validate.Quantity(op, "quantity", input.Quantity); err != nil {
		return nil, err
	}
	if input.UnitCost.IsNegative() {
		return nil, apperror.Invalid(op, "unit cost cannot be negative")
	}

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		lvl, err := uc.repo.LockLevel(ctx, input.ProductID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to lock stock level")
		}
		if lvl == nil {
			return apperror.NotFound(op, "product", input.ProductID)
		}

		now := uc.now()
		q0, c0 := lvl.QuantityAvailable, lvl.WeightedAverageCost
		c1 := entryCost(q0, c0, input.Quantity, input.UnitCost, input.KeepAverageCost)

		movement := &model.StockMovement{
			ID:                uuid.New().String(),
			ProductID:         input.ProductID,
			MovementType:      input.MovementType,
			QuantityBefore:    q0,
			QuantityDelta:     input.Quantity,
			QuantityAfter:     q0.Add(input.Quantity),
			UnitCost:          input.UnitCost,
			AverageCostBefore: c0,
			AverageCostAfter:  c1,
			TotalValue:        input.Quantity.Mul(input.UnitCost).Round(2),
			ReferenceOrderID:  input.ReferenceOrderID,
			Batch:             input.Batch,
			ExpiresAt:         input.ExpiresAt,
			Reason:            input.Reason,
			Notes:             input.Notes,
			CreatedBy:         input.CreatedBy,
			CreatedAt:         now,
		}

		lvl.QuantityAvailable = movement.QuantityAfter
		lvl.WeightedAverageCost = c1
		lvl.LastEntryAt = &now
		lvl.UpdatedAt = now

		if err := uc.write(ctx, op, lvl, movement); err != nil {
			return err
		}
		level = lvl
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}
	return level, nil
}

func (uc *inventoryUseCase) ApplyExit(ctx context.Context, input *dto.ExitInput) (*model.StockLevel, error) {
	const op = "inventory.apply_exit"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if input.MovementType.IsEntry() || !input.MovementType.Valid() {
		return nil, apperror.Invalid(op, "movement type %q is not an exit", input.MovementType)
	}
	if err := validate.Quantity(op, "quantity", input.Quantity); err != nil {
		return nil, err
	}
	allowNegative := input.AllowNegative && input.MovementType.IsAdjustment()

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		lvl, err := uc.repo.LockLevel(ctx, input.ProductID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to lock stock level")
		}
		if lvl == nil {
			return apperror.NotFound(op, "product", input.ProductID)
		}

		q0 := lvl.QuantityAvailable
		if !allowNegative && q0.LessThan(input.Quantity) {
			return apperror.OutOfStock(op, input.ProductID, q0.String(), input.Quantity.String())
		}

		now := uc.now()
		cost := lvl.WeightedAverageCost
		movement := &model.StockMovement{
			ID:                uuid.New().String(),
			ProductID:         input.ProductID,
			MovementType:      input.MovementType,
			QuantityBefore:    q0,
			QuantityDelta:     input.Quantity.Neg(),
			QuantityAfter:     q0.Sub(input.Quantity),
			UnitCost:          cost,
			AverageCostBefore: cost,
			AverageCostAfter:  cost,
			TotalValue:        input.Quantity.Mul(cost).Round(2),
			ReferenceOrderID:  input.ReferenceOrderID,
			Reason:            input.Reason,
			Notes:             input.Notes,
			AllowNegative:     allowNegative,
			CreatedBy:         input.CreatedBy,
			CreatedAt:         now,
		}

		lvl.QuantityAvailable = movement.QuantityAfter
		lvl.LastExitAt = &now
		lvl.UpdatedAt = now

		if err := uc.write(ctx, op, lvl, movement); err != nil {
			return err
		}
		level = lvl
		return nil
	})
	if err != nil {
		if apperror.Is(err, apperror.EOUTOFSTOCK) {
			uc.metrics.StockRejections.WithLabelValues("out_of_stock").Inc()
		}
		uc.conflict(op, err)
		return nil, err
	}
	return level, nil
}

// write appends the movement and saves the projection in the caller's
// transaction, then schedules the post-commit side effects.
func (uc *inventoryUseCase) write(ctx context.Context, op string, lvl *model.StockLevel, m *model.StockMovement) error {
	if err := uc.repo.AppendMovement(ctx, m); err != nil {
		return apperror.Persistence(err, op, "failed to record stock movement")
	}
	if err := uc.repo.SaveLevel(ctx, lvl); err != nil {
		return apperror.Persistence(err, op, "failed to update stock level")
	}

	productID, movementType, version := m.ProductID, m.MovementType, lvl.UpdatedAt
	txm.AfterCommit(ctx, func() {
		uc.metrics.StockMovements.WithLabelValues(string(movementType)).Inc()
		uc.invalidate(productID, version)
	})
	return nil
}

func (uc *inventoryUseCase) GetCurrent(ctx context.Context, productID string) (*model.StockView, error) {
	const op = "inventory.get_current"

	if uc.cache != nil {
		if view, ok := uc.cache.Get(ctx, productID); ok {
			return view, nil
		}
	}

	view, err := uc.current(ctx, op, productID)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil && !txm.InTx(ctx) {
		uc.cache.Set(ctx, view)
	}
	return view, nil
}

// current reads the projection straight from storage. Missing levels read as
// empty stock.
func (uc *inventoryUseCase) current(ctx context.Context, op, productID string) (*model.StockView, error) {
	if err := uc.requireProduct(ctx, op, productID); err != nil {
		return nil, err
	}

	lvl, err := uc.repo.GetLevel(ctx, productID)
	if err != nil {
		return nil, apperror.Persistence(err, op, "failed to load stock level")
	}
	if lvl == nil {
		lvl = &model.StockLevel{ProductID: productID}
	}
	view := model.NewStockView(*lvl)
	return &view, nil
}

func (uc *inventoryUseCase) ListStock(ctx context.Context, filters *dto.StockFilters) ([]model.StockView, int, error) {
	levels, total, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "inventory.list_stock", "failed to list stock levels")
	}

	views := make([]model.StockView, len(levels))
	for i, lvl := range levels {
		views[i] = model.NewStockView(lvl)
	}
	return views, total, nil
}

func (uc *inventoryUseCase) RecordStockEntry(ctx context.Context, input *dto.RecordEntryInput) (*model.StockView, error) {
	const op = "inventory.record_entry"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if err := validate.Price(op, "unit cost", input.UnitCost); err != nil {
		return nil, err
	}
	if err := uc.requireProduct(ctx, op, input.ProductID); err != nil {
		return nil, err
	}

	reason := input.Reason
	if reason == "" {
		reason = "purchase entry"
	}

	lvl, err := uc.ApplyEntry(ctx, &dto.EntryInput{
		ProductID:    input.ProductID,
		MovementType: model.MovementPurchaseEntry,
		Quantity:     input.Quantity,
		UnitCost:     input.UnitCost,
		Batch:        optional(input.Batch),
		ExpiresAt:    input.ExpiresAt,
		Reason:       reason,
		CreatedBy:    optional(input.UserID),
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("stock entry recorded",
		zap.String("product_id", input.ProductID),
		zap.String("quantity", input.Quantity.String()),
		zap.String("average_cost", lvl.WeightedAverageCost.String()),
	)
	view := model.NewStockView(*lvl)
	return &view, nil
}

func (uc *inventoryUseCase) RecordReceipt(ctx context.Context, input *dto.ReceiptInput) (*dto.ReceiptResult, error) {
	const op = "inventory.record_receipt"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	for i, item := range input.Items {
		if err := validate.Quantity(op, fmt.Sprintf("item %d quantity", i+1), item.Quantity); err != nil {
			return nil, err
		}
		if err := validate.Price(op, fmt.Sprintf("item %d unit cost", i+1), item.UnitCost); err != nil {
			return nil, err
		}
	}

	result := &dto.ReceiptResult{ReceiptID: input.ReceiptID}
	reason := "purchase receipt " + input.ReceiptID

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		fresh, err := uc.repo.MarkReceipt(ctx, input.ReceiptID, len(input.Items))
		if err != nil {
			return apperror.Persistence(err, op, "failed to record receipt")
		}
		if !fresh {
			result.Duplicate = true
			return nil
		}

		for _, item := range input.Items {
			lvl, err := uc.ApplyEntry(ctx, &dto.EntryInput{
				ProductID:    item.ProductID,
				MovementType: model.MovementPurchaseEntry,
				Quantity:     item.Quantity,
				UnitCost:     item.UnitCost,
				Batch:        optional(item.Batch),
				ExpiresAt:    item.ExpiresAt,
				Reason:       reason,
				CreatedBy:    optional(input.ReceivedBy),
			})
			if err != nil {
				return err
			}
			result.Levels = append(result.Levels, model.NewStockView(*lvl))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		uc.logger.Info("receipt already booked, skipping", zap.String("receipt_id", input.ReceiptID))
	} else {
		uc.logger.Info("receipt booked",
			zap.String("receipt_id", input.ReceiptID),
			zap.Int("items", len(input.Items)),
		)
	}
	return result, nil
}

func (uc *inventoryUseCase) RecordStockMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockView, error) {
	const op = "inventory.record_movement"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if err := uc.requireProduct(ctx, op, input.ProductID); err != nil {
		return nil, err
	}

	movementType := model.MovementType(input.MovementType)
	var (
		lvl *model.StockLevel
		err error
	)
	if movementType.IsEntry() {
		cost := decimal.Zero
		if input.UnitCost != nil {
			cost = *input.UnitCost
		}
		lvl, err = uc.ApplyEntry(ctx, &dto.EntryInput{
			ProductID:       input.ProductID,
			MovementType:    movementType,
			Quantity:        input.Quantity,
			UnitCost:        cost,
			KeepAverageCost: true,
			Reason:          input.Reason,
			Notes:           input.Notes,
			CreatedBy:       optional(input.UserID),
		})
	} else {
		lvl, err = uc.ApplyExit(ctx, &dto.ExitInput{
			ProductID:     input.ProductID,
			MovementType:  movementType,
			Quantity:      input.Quantity,
			AllowNegative: movementType.IsAdjustment(),
			Reason:        input.Reason,
			Notes:         input.Notes,
			CreatedBy:     optional(input.UserID),
		})
	}
	if err != nil {
		return nil, err
	}

	if lvl.QuantityAvailable.IsNegative() {
		uc.logger.Warn("stock level is negative after adjustment",
			zap.String("product_id", input.ProductID),
			zap.String("quantity", lvl.QuantityAvailable.String()),
		)
	}
	view := model.NewStockView(*lvl)
	return &view, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	if filters.MovementType != "" && !model.MovementType(filters.MovementType).Valid() {
		return nil, 0, apperror.Invalid("inventory.list_movements", "unknown movement type %q", filters.MovementType)
	}
	items, total, err := uc.repo.ListMovements(ctx, filters)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "inventory.list_movements", "failed to list stock movements")
	}
	return items, total, nil
}

func (uc *inventoryUseCase) UpdateLimits(ctx context.Context, input *dto.UpdateLimitsInput) (*model.StockView, error) {
	const op = "inventory.update_limits"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if input.MinStock.IsNegative() || input.MaxStock.IsNegative() || input.ReorderPoint.IsNegative() {
		return nil, apperror.Invalid(op, "stock limits cannot be negative")
	}
	if input.MaxStock.IsPositive() && input.MaxStock.LessThan(input.MinStock) {
		return nil, apperror.Invalid(op, "max stock must not be below min stock")
	}
	if err := uc.requireProduct(ctx, op, input.ProductID); err != nil {
		return nil, err
	}

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		lvl, err := uc.repo.LockLevel(ctx, input.ProductID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to lock stock level")
		}
		if lvl == nil {
			return apperror.NotFound(op, "product", input.ProductID)
		}
		lvl.MinStock = input.MinStock
		lvl.MaxStock = input.MaxStock
		lvl.ReorderPoint = input.ReorderPoint
		lvl.UpdatedAt = uc.now()
		if err := uc.repo.SaveLevel(ctx, lvl); err != nil {
			return apperror.Persistence(err, op, "failed to update stock limits")
		}

		productID, version := lvl.ProductID, lvl.UpdatedAt
		txm.AfterCommit(ctx, func() { uc.invalidate(productID, version) })
		level = lvl
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}

	view := model.NewStockView(*level)
	return &view, nil
}

func (uc *inventoryUseCase) VerifyLedger(ctx context.Context, productID string) (*model.LedgerCheck, error) {
	const op = "inventory.verify_ledger"

	view, err := uc.current(ctx, op, productID)
	if err != nil {
		return nil, err
	}
	totals, err := uc.repo.LedgerTotals(ctx, productID)
	if err != nil {
		return nil, apperror.Persistence(err, op, "failed to sum stock movements")
	}

	check := &model.LedgerCheck{
		ProductID:     productID,
		Projected:     view.QuantityAvailable,
		LedgerSum:     totals.Sum,
		MovementCount: totals.Count,
		Consistent:    totals.Sum.Equal(view.QuantityAvailable),
	}
	if !check.Consistent {
		uc.logger.Warn("stock projection drifted from ledger",
			zap.String("product_id", productID),
			zap.String("projected", check.Projected.String()),
			zap.String("ledger_sum", check.LedgerSum.String()),
		)
	}
	return check, nil
}

// RebuildLevel recomputes the projection from the ledger. Limits are kept.
func (uc *inventoryUseCase) RebuildLevel(ctx context.Context, productID string) (*model.StockView, error) {
	const op = "inventory.rebuild_level"

	if err := uc.requireProduct(ctx, op, productID); err != nil {
		return nil, err
	}

	var level *model.StockLevel
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		lvl, err := uc.repo.LockLevel(ctx, productID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to lock stock level")
		}
		if lvl == nil {
			return apperror.NotFound(op, "product", productID)
		}
		totals, err := uc.repo.LedgerTotals(ctx, productID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to sum stock movements")
		}

		lvl.QuantityAvailable = totals.Sum
		lvl.WeightedAverageCost = totals.LastAverageCost
		lvl.UpdatedAt = uc.now()
		if err := uc.repo.SaveLevel(ctx, lvl); err != nil {
			return apperror.Persistence(err, op, "failed to save stock level")
		}

		version := lvl.UpdatedAt
		txm.AfterCommit(ctx, func() { uc.invalidate(productID, version) })
		level = lvl
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}

	uc.logger.Info("stock level rebuilt from ledger",
		zap.String("product_id", productID),
		zap.String("quantity", level.QuantityAvailable.String()),
	)
	view := model.NewStockView(*level)
	return &view, nil
}

func (uc *inventoryUseCase) requireProduct(ctx context.Context, op, productID string) error {
	p, err := uc.products.FindByID(ctx, productID)
	if err != nil {
		return apperror.Persistence(err, op, "failed to load product")
	}
	if p == nil {
		return apperror.NotFound(op, "product", productID)
	}
	return nil
}

// invalidate drops the cached view and fences out fills older than version.
func (uc *inventoryUseCase) invalidate(productID string, version time.Time) {
	if uc.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	uc.cache.Invalidate(ctx, productID, version)
}

func (uc *inventoryUseCase) conflict(op string, err error) {
	if apperror.Is(err, apperror.ECONFLICT) {
		uc.metrics.ConcurrencyConflict.WithLabelValues(op).Inc()
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
