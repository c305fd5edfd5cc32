package order

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/fekuna/omnipos-sales-service/internal/tax"
)

type UseCase interface {
	CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error)
	UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.Order, error)
	TransitionOrder(ctx context.Context, input *dto.TransitionInput) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)
	DeleteOrder(ctx context.Context, id string) error
	SimulateTax(ctx context.Context, input *dto.SimulateTaxInput) (*tax.Simulation, error)
	GetStats(ctx context.Context) (*model.OrderStats, error)
}
