package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/shopspring/decimal"
)

type orderRepository struct {
	store *Store
}

func (s *Store) Orders() order.Repository {
	return &orderRepository{store: s}
}

func (r *orderRepository) NextNumber(_ context.Context, prefix string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.sequences[prefix]++
	return r.store.sequences[prefix], nil
}

func (r *orderRepository) Create(_ context.Context, o *model.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepository) FindByID(_ context.Context, id string) (*model.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	o, ok := r.store.orders[id]
	if !ok || !o.IsActive {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

// FindByIDForUpdate needs no lock of its own: transactions are serialized.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepository) FindAll(_ context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var items []model.Order
	for _, o := range r.store.orders {
		switch {
		case !o.IsActive:
			continue
		case f.Status != "" && string(o.Status) != f.Status:
			continue
		case f.ClientID != "" && o.ClientID != f.ClientID:
			continue
		}
		o.Items = nil
		items = append(items, o)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].OrderNumber > items[j].OrderNumber
	})
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func (r *orderRepository) Update(_ context.Context, o *model.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[o.ID]
	if !ok {
		return nil
	}
	updated := *o
	updated.Items = current.Items
	r.store.orders[o.ID] = updated
	return nil
}

func (r *orderRepository) ReplaceItems(_ context.Context, orderID string, items []model.OrderItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	o, ok := r.store.orders[orderID]
	if !ok {
		return nil
	}
	o.Items = make([]model.OrderItem, len(items))
	copy(o.Items, items)
	r.store.orders[orderID] = o
	return nil
}

func (r *orderRepository) SoftDelete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if o, ok := r.store.orders[id]; ok {
		o.IsActive = false
		o.UpdatedAt = time.Now()
		r.store.orders[id] = o
	}
	return nil
}

func (r *orderRepository) Stats(_ context.Context, monthStart time.Time) (*model.OrderStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := &model.OrderStats{
		TotalValue:     decimal.Zero,
		ValueThisMonth: decimal.Zero,
		ByStatus: map[model.OrderStatus]int{
			model.OrderStatusDraft:     0,
			model.OrderStatusConfirmed: 0,
			model.OrderStatusInvoiced:  0,
			model.OrderStatusCancelled: 0,
		},
	}
	for _, o := range r.store.orders {
		if !o.IsActive {
			continue
		}
		stats.TotalOrders++
		stats.ByStatus[o.Status]++
		thisMonth := !o.CreatedAt.Before(monthStart)
		if thisMonth {
			stats.OrdersThisMonth++
		}
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		stats.TotalValue = stats.TotalValue.Add(o.TotalAmount)
		if thisMonth {
			stats.ValueThisMonth = stats.ValueThisMonth.Add(o.TotalAmount)
		}
	}
	return stats, nil
}
