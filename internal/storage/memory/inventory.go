package memory

import (
	"context"
	"sort"

	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

type inventoryRepository struct {
	store *Store
}

func (s *Store) Inventory() inventory.Repository {
	return &inventoryRepository{store: s}
}

func (r *inventoryRepository) LockLevel(_ context.Context, productID string) (*model.StockLevel, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.products[productID]
	if !ok {
		return nil, nil
	}
	lvl, ok := r.store.levels[productID]
	if !ok {
		lvl = model.StockLevel{ProductID: productID, MinStock: p.MinStock}
		r.store.levels[productID] = lvl
	}
	return &lvl, nil
}

func (r *inventoryRepository) GetLevel(_ context.Context, productID string) (*model.StockLevel, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lvl, ok := r.store.levels[productID]
	if !ok {
		return nil, nil
	}
	return &lvl, nil
}

func (r *inventoryRepository) SaveLevel(_ context.Context, lvl *model.StockLevel) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.levels[lvl.ProductID] = *lvl
	return nil
}

func (r *inventoryRepository) FindAll(_ context.Context, f *dto.StockFilters) ([]model.StockLevel, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var items []model.StockLevel
	for _, lvl := range r.store.levels {
		q := lvl.QuantityAvailable
		switch {
		case f.ProductID != "" && lvl.ProductID != f.ProductID:
			continue
		case f.LowStockOnly && q.GreaterThan(lvl.MinStock):
			continue
		case f.ZeroStockOnly && !q.IsZero():
			continue
		case f.NegativeStockOnly && !q.IsNegative():
			continue
		}
		items = append(items, lvl)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func (r *inventoryRepository) AppendMovement(_ context.Context, m *model.StockMovement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.movements = append(r.store.movements, *m)
	return nil
}

func (r *inventoryRepository) ListMovements(_ context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var items []model.StockMovement
	// Newest first
	for i := len(r.store.movements) - 1; i >= 0; i-- {
		m := r.store.movements[i]
		switch {
		case f.ProductID != "" && m.ProductID != f.ProductID:
			continue
		case f.MovementType != "" && string(m.MovementType) != f.MovementType:
			continue
		case f.ReferenceOrderID != "" && (m.ReferenceOrderID == nil || *m.ReferenceOrderID != f.ReferenceOrderID):
			continue
		case f.StartDate != nil && m.CreatedAt.Before(*f.StartDate):
			continue
		case f.EndDate != nil && m.CreatedAt.After(*f.EndDate):
			continue
		}
		items = append(items, m)
	}
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func (r *inventoryRepository) LedgerTotals(_ context.Context, productID string) (*dto.LedgerTotals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	totals := &dto.LedgerTotals{Sum: decimal.Zero, LastAverageCost: decimal.Zero}
	for _, m := range r.store.movements {
		if m.ProductID != productID {
			continue
		}
		totals.Sum = totals.Sum.Add(m.QuantityDelta)
		totals.Count++
		totals.LastAverageCost = m.AverageCostAfter
	}
	return totals, nil
}

func (r *inventoryRepository) MarkReceipt(_ context.Context, receiptID string, itemCount int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.receipts[receiptID]; ok {
		return false, nil
	}
	r.store.receipts[receiptID] = itemCount
	return true, nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	start := (max(page, 1) - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
