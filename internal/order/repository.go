package order

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
)

type Repository interface {
	// NextNumber advances the number series of prefix. It must run in the
	// transaction that persists the order so a rollback frees the number.
	NextNumber(ctx context.Context, prefix string) (int64, error)

	Create(ctx context.Context, order *model.Order) error
	// FindByID returns the active order with its items, or nil, nil.
	FindByID(ctx context.Context, id string) (*model.Order, error)
	// FindByIDForUpdate is FindByID holding a row lock until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Order, error)
	FindAll(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)
	Update(ctx context.Context, order *model.Order) error
	ReplaceItems(ctx context.Context, orderID string, items []model.OrderItem) error
	SoftDelete(ctx context.Context, id string) error
	// Stats fills every OrderStats field but AverageValue; the month figures
	// count orders created at or after monthStart.
	Stats(ctx context.Context, monthStart time.Time) (*model.OrderStats, error)
}
