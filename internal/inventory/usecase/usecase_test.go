package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/telemetry"
	"github.com/fekuna/omnipos-sales-service/internal/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache follows the Redis cache's fencing rule.
type fakeCache struct {
	mu          sync.Mutex
	views       map[string]model.StockView
	fences      map[string]time.Time
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: map[string]model.StockView{}, fences: map[string]time.Time{}}
}

func (c *fakeCache) Get(_ context.Context, productID string) (*model.StockView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[productID]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (c *fakeCache) Set(_ context.Context, view *model.StockView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fence, ok := c.fences[view.ProductID]; ok && fence.After(view.UpdatedAt) {
		return
	}
	c.views[view.ProductID] = *view
}

func (c *fakeCache) Invalidate(_ context.Context, productID string, version time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, productID)
	if version.After(c.fences[productID]) {
		c.fences[productID] = version
	}
	c.invalidated = append(c.invalidated, productID)
}

// racingRepo commits a write between the read of a level and the cache fill
// that follows it.
type racingRepo struct {
	inventory.Repository
	during func()
}

func (r *racingRepo) GetLevel(ctx context.Context, productID string) (*model.StockLevel, error) {
	lvl, err := r.Repository.GetLevel(ctx, productID)
	if fn := r.during; fn != nil {
		r.during = nil
		fn()
	}
	return lvl, err
}

type fixture struct {
	store *memory.Store
	cache *fakeCache
	uc    inventory.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.AddProduct(model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Widget", IsActive: true})
	store.AddProduct(model.Product{BaseModel: model.BaseModel{ID: "p2"}, Name: "Gadget", IsActive: true, MinStock: d("5")})

	cache := newFakeCache()
	uc := NewInventoryUseCase(
		store.Inventory(),
		store.Products(),
		store.TxManager(),
		cache,
		telemetry.NewSalesMetrics(prometheus.NewRegistry()),
		logger.NewNop(),
	)
	return &fixture{store: store, cache: cache, uc: uc}
}

func (f *fixture) entry(t *testing.T, productID, qty, cost string) *model.StockLevel {
	t.Helper()
	lvl, err := f.uc.ApplyEntry(context.Background(), &dto.EntryInput{
		ProductID:    productID,
		MovementType: model.MovementPurchaseEntry,
		Quantity:     d(qty),
		UnitCost:     d(cost),
	})
	require.NoError(t, err)
	return lvl
}

func (f *fixture) movements(t *testing.T, productID string) []model.StockMovement {
	t.Helper()
	items, _, err := f.uc.ListMovements(context.Background(), &dto.MovementFilters{ProductID: productID})
	require.NoError(t, err)
	return items
}

func TestApplyEntry_WeightedAverage(t *testing.T) {
	f := newFixture(t)

	f.entry(t, "p1", "10", "5.00")
	lvl := f.entry(t, "p1", "10", "7.00")

	assert.True(t, d("20").Equal(lvl.QuantityAvailable))
	assert.True(t, d("6.00").Equal(lvl.WeightedAverageCost))

	moves := f.movements(t, "p1")
	require.Len(t, moves, 2)
	latest := moves[0]
	assert.True(t, d("5.00").Equal(latest.AverageCostBefore))
	assert.True(t, d("6.00").Equal(latest.AverageCostAfter))
	assert.True(t, d("10").Equal(latest.QuantityBefore))
	assert.True(t, d("20").Equal(latest.QuantityAfter))
	assert.True(t, d("70.00").Equal(latest.TotalValue))
}

func TestApplyEntryThenExit_RestoresQuantityKeepsCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.entry(t, "p1", "10", "5.00")
	f.entry(t, "p1", "4", "8.50")

	before, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)

	f.entry(t, "p1", "3", "12.00")
	lvl, err := f.uc.ApplyExit(ctx, &dto.ExitInput{
		ProductID:    "p1",
		MovementType: model.MovementSaleExit,
		Quantity:     d("3"),
	})
	require.NoError(t, err)

	assert.True(t, before.QuantityAvailable.Equal(lvl.QuantityAvailable))
	afterEntry := WeightedAverage(d("14"), before.WeightedAverageCost, d("3"), d("12.00"))
	assert.True(t, afterEntry.Equal(lvl.WeightedAverageCost), "exit must not move the average cost")
}

func TestApplyExit_OutOfStockLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.entry(t, "p1", "2", "5.00")

	_, err := f.uc.ApplyExit(ctx, &dto.ExitInput{
		ProductID:    "p1",
		MovementType: model.MovementSaleExit,
		Quantity:     d("2.001"),
	})
	assert.True(t, apperror.Is(err, apperror.EOUTOFSTOCK))

	view, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("2").Equal(view.QuantityAvailable))
	assert.Len(t, f.movements(t, "p1"), 1)
}

func TestApplyExit_AllowNegativeOnlyForAdjustments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.ApplyExit(ctx, &dto.ExitInput{
		ProductID:     "p1",
		MovementType:  model.MovementSaleExit,
		Quantity:      d("1"),
		AllowNegative: true,
	})
	assert.True(t, apperror.Is(err, apperror.EOUTOFSTOCK))

	lvl, err := f.uc.ApplyExit(ctx, &dto.ExitInput{
		ProductID:     "p1",
		MovementType:  model.MovementAdjustmentOut,
		Quantity:      d("1"),
		AllowNegative: true,
	})
	require.NoError(t, err)
	assert.True(t, d("-1").Equal(lvl.QuantityAvailable))

	moves := f.movements(t, "p1")
	require.Len(t, moves, 1)
	assert.True(t, moves[0].AllowNegative)
}

func TestApplyEntry_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *dto.EntryInput
		code  string
	}{
		{"zero quantity", &dto.EntryInput{ProductID: "p1", MovementType: model.MovementPurchaseEntry, Quantity: decimal.Zero}, apperror.EVALIDATION},
		{"four decimals", &dto.EntryInput{ProductID: "p1", MovementType: model.MovementPurchaseEntry, Quantity: d("1.0001")}, apperror.EVALIDATION},
		{"negative cost", &dto.EntryInput{ProductID: "p1", MovementType: model.MovementPurchaseEntry, Quantity: d("1"), UnitCost: d("-1")}, apperror.EVALIDATION},
		{"exit type", &dto.EntryInput{ProductID: "p1", MovementType: model.MovementSaleExit, Quantity: d("1")}, apperror.EVALIDATION},
		{"missing product id", &dto.EntryInput{MovementType: model.MovementPurchaseEntry, Quantity: d("1")}, apperror.EVALIDATION},
		{"unknown product", &dto.EntryInput{ProductID: "nope", MovementType: model.MovementPurchaseEntry, Quantity: d("1")}, apperror.ENOTFOUND},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.ApplyEntry(ctx, tt.input)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.movements(t, "p1"))
}

func TestGetCurrent_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p2", "3", "2.50")

	first, err := f.uc.GetCurrent(ctx, "p2")
	require.NoError(t, err)
	second, err := f.uc.GetCurrent(ctx, "p2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.NeedsRestock)
	assert.False(t, first.ZeroStock)
	assert.True(t, d("7.50").Equal(first.StockValue))
}

func TestGetCurrent_EmptyAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, view.ZeroStock)
	assert.True(t, view.QuantityAvailable.IsZero())

	_, err = f.uc.GetCurrent(ctx, "missing")
	assert.True(t, apperror.Is(err, apperror.ENOTFOUND))
}

func TestCache_InvalidatedOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.entry(t, "p1", "1", "1.00")
	_, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	_, cached := f.cache.Get(ctx, "p1")
	require.True(t, cached)

	f.cache.invalidated = nil
	boom := errors.New("boom")
	err = f.store.TxManager().WithinTx(ctx, func(ctx context.Context) error {
		if _, err := f.uc.ApplyEntry(ctx, &dto.EntryInput{
			ProductID:    "p1",
			MovementType: model.MovementPurchaseEntry,
			Quantity:     d("1"),
			UnitCost:     d("1.00"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.cache.invalidated)

	view, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("1").Equal(view.QuantityAvailable))

	f.entry(t, "p1", "1", "1.00")
	assert.Equal(t, []string{"p1"}, f.cache.invalidated)
}

func TestNestedExits_RollBackTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "5", "1.00")
	f.entry(t, "p2", "1", "1.00")

	err := f.store.TxManager().WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range []string{"p1", "p2"} {
			if _, err := f.uc.ApplyExit(ctx, &dto.ExitInput{
				ProductID:    id,
				MovementType: model.MovementSaleExit,
				Quantity:     d("2"),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.True(t, apperror.Is(err, apperror.EOUTOFSTOCK))

	p1, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("5").Equal(p1.QuantityAvailable))
	assert.Len(t, f.movements(t, "p1"), 1)
}

func TestRecordStockEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.uc.RecordStockEntry(ctx, &dto.RecordEntryInput{
		ProductID: "p1",
		Quantity:  d("12.5"),
		UnitCost:  d("3.20"),
		Batch:     "L-001",
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.True(t, d("12.5").Equal(view.QuantityAvailable))
	assert.True(t, d("3.20").Equal(view.WeightedAverageCost))

	moves := f.movements(t, "p1")
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementPurchaseEntry, moves[0].MovementType)
	require.NotNil(t, moves[0].Batch)
	assert.Equal(t, "L-001", *moves[0].Batch)
	assert.Equal(t, "purchase entry", moves[0].Reason)

	_, err = f.uc.RecordStockEntry(ctx, &dto.RecordEntryInput{ProductID: "p1", Quantity: d("1"), UnitCost: decimal.Zero})
	assert.True(t, apperror.Is(err, apperror.EVALIDATION))
}

func TestRecordStockMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "10", "4.00")

	t.Run("entry without cost keeps average", func(t *testing.T) {
		view, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "return_in", Quantity: d("2"), Reason: "customer return",
		})
		require.NoError(t, err)
		assert.True(t, d("12").Equal(view.QuantityAvailable))
		assert.True(t, d("4.00").Equal(view.WeightedAverageCost))
	})

	t.Run("entry with cost blends", func(t *testing.T) {
		cost := d("10.00")
		view, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "adjustment_in", Quantity: d("4"), UnitCost: &cost, Reason: "count",
		})
		require.NoError(t, err)
		assert.True(t, d("16").Equal(view.QuantityAvailable))
		assert.True(t, d("5.50").Equal(view.WeightedAverageCost))
	})

	t.Run("loss cannot go negative", func(t *testing.T) {
		_, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "loss_out", Quantity: d("17"), Reason: "damaged",
		})
		assert.True(t, apperror.Is(err, apperror.EOUTOFSTOCK))
	})

	t.Run("adjustment may go negative", func(t *testing.T) {
		view, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "adjustment_out", Quantity: d("17"), Reason: "count",
		})
		require.NoError(t, err)
		assert.True(t, view.NegativeStock)
		assert.True(t, d("-1").Equal(view.QuantityAvailable))
	})

	t.Run("sale exit is not manual", func(t *testing.T) {
		_, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "sale_exit", Quantity: d("1"), Reason: "x",
		})
		assert.True(t, apperror.Is(err, apperror.EVALIDATION))
	})

	t.Run("reason required", func(t *testing.T) {
		_, err := f.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
			ProductID: "p1", MovementType: "loss_out", Quantity: d("1"),
		})
		assert.True(t, apperror.Is(err, apperror.EVALIDATION))
	})
}

func TestListStock_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "10", "1.00")
	f.entry(t, "p2", "2", "1.00")

	low, total, err := f.uc.ListStock(ctx, &dto.StockFilters{LowStockOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, low, 1)
	assert.Equal(t, "p2", low[0].ProductID)

	all, total, err := f.uc.ListStock(ctx, &dto.StockFilters{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 1)
}

func TestUpdateLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "4", "1.00")

	view, err := f.uc.UpdateLimits(ctx, &dto.UpdateLimitsInput{
		ProductID: "p1", MinStock: d("5"), MaxStock: d("50"), ReorderPoint: d("8"),
	})
	require.NoError(t, err)
	assert.True(t, view.NeedsRestock)
	assert.True(t, d("4").Equal(view.QuantityAvailable))

	_, err = f.uc.UpdateLimits(ctx, &dto.UpdateLimitsInput{ProductID: "p1", MinStock: d("10"), MaxStock: d("5")})
	assert.True(t, apperror.Is(err, apperror.EVALIDATION))
}

func TestVerifyAndRebuildLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "10", "5.00")
	f.entry(t, "p1", "10", "7.00")
	_, err := f.uc.ApplyExit(ctx, &dto.ExitInput{ProductID: "p1", MovementType: model.MovementSaleExit, Quantity: d("4")})
	require.NoError(t, err)

	check, err := f.uc.VerifyLedger(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, check.Consistent)
	assert.Equal(t, 3, check.MovementCount)
	assert.True(t, d("16").Equal(check.LedgerSum))

	// Corrupt the projection behind the engine's back
	require.NoError(t, f.store.Inventory().SaveLevel(ctx, &model.StockLevel{ProductID: "p1", QuantityAvailable: d("99")}))
	check, err = f.uc.VerifyLedger(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, check.Consistent)

	view, err := f.uc.RebuildLevel(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("16").Equal(view.QuantityAvailable))
	assert.True(t, d("6.00").Equal(view.WeightedAverageCost))

	check, err = f.uc.VerifyLedger(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func receipt(id string, items ...dto.ReceiptItemInput) *dto.ReceiptInput {
	return &dto.ReceiptInput{ReceiptID: id, ReceivedBy: "u-9", Items: items}
}

func receiptItem(productID, qty, cost string) dto.ReceiptItemInput {
	return dto.ReceiptItemInput{ProductID: productID, Quantity: d(qty), UnitCost: d(cost)}
}

func TestRecordReceipt_BooksAllItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.entry(t, "p1", "10", "5.00")

	result, err := f.uc.RecordReceipt(ctx, receipt("r-1",
		receiptItem("p1", "10", "7.00"),
		receiptItem("p2", "4", "2.50"),
	))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	require.Len(t, result.Levels, 2)
	assert.True(t, d("6.00").Equal(result.Levels[0].WeightedAverageCost))

	moves := f.movements(t, "p2")
	require.Len(t, moves, 1)
	assert.Equal(t, "purchase receipt r-1", moves[0].Reason)
	require.NotNil(t, moves[0].CreatedBy)
	assert.Equal(t, "u-9", *moves[0].CreatedBy)
}

func TestRecordReceipt_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordReceipt(ctx, receipt("r-2",
		receiptItem("p1", "3", "1.00"),
		receiptItem("missing", "1", "1.00"),
	))
	assert.True(t, apperror.Is(err, apperror.ENOTFOUND), "got %v", err)
	assert.Empty(t, f.movements(t, "p1"))

	// Nothing was marked, so the same id can still be booked
	result, err := f.uc.RecordReceipt(ctx, receipt("r-2", receiptItem("p1", "3", "1.00")))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Len(t, f.movements(t, "p1"), 1)
}

func TestRecordReceipt_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordReceipt(ctx, receipt("r-3", receiptItem("p1", "2", "4.00")))
	require.NoError(t, err)

	again, err := f.uc.RecordReceipt(ctx, receipt("r-3", receiptItem("p1", "2", "4.00")))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Empty(t, again.Levels)

	view, err := f.uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("2").Equal(view.QuantityAvailable))
	assert.Len(t, f.movements(t, "p1"), 1)
}

func TestRecordReceipt_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *dto.ReceiptInput
	}{
		{"missing id", receipt("", receiptItem("p1", "1", "1.00"))},
		{"no items", receipt("r-4")},
		{"zero quantity", receipt("r-4", receiptItem("p1", "0", "1.00"))},
		{"zero cost", receipt("r-4", receiptItem("p1", "1", "0"))},
		{"missing product id", receipt("r-4", receiptItem("", "1", "1.00"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.RecordReceipt(ctx, tt.input)
			assert.True(t, apperror.Is(err, apperror.EVALIDATION), "got %v", err)
		})
	}
	assert.Empty(t, f.movements(t, "p1"))
}

func TestApplyEntry_ZeroCostBlendsIntoAverage(t *testing.T) {
	f := newFixture(t)
	f.entry(t, "p1", "10", "5.00")

	lvl := f.entry(t, "p1", "10", "0")
	assert.True(t, d("2.50").Equal(lvl.WeightedAverageCost))
}

func TestGetCurrent_StaleReadDoesNotRefillCache(t *testing.T) {
	store := memory.NewStore()
	store.AddProduct(model.Product{BaseModel: model.BaseModel{ID: "p1"}, Name: "Widget", IsActive: true})

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &racingRepo{Repository: store.Inventory()}
	cache := newFakeCache()
	uc := &inventoryUseCase{
		repo:     repo,
		products: store.Products(),
		tx:       store.TxManager(),
		cache:    cache,
		metrics:  telemetry.NewSalesMetrics(prometheus.NewRegistry()),
		logger:   logger.NewNop(),
		now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	ctx := context.Background()
	entry := func() {
		_, err := uc.ApplyEntry(ctx, &dto.EntryInput{
			ProductID:    "p1",
			MovementType: model.MovementPurchaseEntry,
			Quantity:     d("1"),
			UnitCost:     d("1.00"),
		})
		require.NoError(t, err)
	}
	entry()

	repo.during = entry
	stale, err := uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("1").Equal(stale.QuantityAvailable))

	_, cached := cache.Get(ctx, "p1")
	assert.False(t, cached, "a view older than the last write must not be cached")

	fresh, err := uc.GetCurrent(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, d("2").Equal(fresh.QuantityAvailable))
	_, cached = cache.Get(ctx, "p1")
	assert.True(t, cached)
}
