package handler

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/auth"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/rpc"
	"github.com/fekuna/omnipos-sales-service/internal/tax"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.sales.v1.OrderService"

type OrderItemRequest struct {
	ProductID      string                  `json:"product_id,omitempty"`
	Ephemeral      *model.EphemeralProduct `json:"ephemeral,omitempty"`
	Quantity       decimal.Decimal         `json:"quantity"`
	UnitPrice      decimal.Decimal         `json:"unit_price"`
	DiscountAmount decimal.Decimal         `json:"discount_amount"`
}

type CreateOrderRequest struct {
	ClientID        string             `json:"client_id"`
	Items           []OrderItemRequest `json:"items"`
	DiscountPercent decimal.Decimal    `json:"discount_percent"`
	PaymentMethod   string             `json:"payment_method"`
	Notes           string             `json:"notes"`
}

type UpdateOrderRequest struct {
	ID              string             `json:"id"`
	Items           []OrderItemRequest `json:"items"`
	DiscountPercent *decimal.Decimal   `json:"discount_percent,omitempty"`
}

type TransitionOrderRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type ListOrdersRequest struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type ListOrdersResponse struct {
	Orders []model.Order `json:"orders"`
	Total  int           `json:"total"`
}

type SimulateTaxRequest struct {
	ProductID string          `json:"product_id"`
	ClientID  string          `json:"client_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Empty struct{}

// OrderServer is the surface registered under ServiceName.
type OrderServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error)
	UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*model.Order, error)
	TransitionOrder(ctx context.Context, req *TransitionOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*model.Order, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	DeleteOrder(ctx context.Context, req *GetOrderRequest) (*Empty, error)
	SimulateTax(ctx context.Context, req *SimulateTaxRequest) (*tax.Simulation, error)
	GetOrderStats(ctx context.Context, req *Empty) (*model.OrderStats, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "CreateOrder", OrderServer.CreateOrder),
		rpc.Unary(ServiceName, "UpdateOrder", OrderServer.UpdateOrder),
		rpc.Unary(ServiceName, "TransitionOrder", OrderServer.TransitionOrder),
		rpc.Unary(ServiceName, "GetOrder", OrderServer.GetOrder),
		rpc.Unary(ServiceName, "ListOrders", OrderServer.ListOrders),
		rpc.Unary(ServiceName, "DeleteOrder", OrderServer.DeleteOrder),
		rpc.Unary(ServiceName, "SimulateTax", OrderServer.SimulateTax),
		rpc.Unary(ServiceName, "GetOrderStats", OrderServer.GetOrderStats),
	},
	Metadata: "omnipos/sales/v1/order.proto",
}

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{
		uc:     uc,
		logger: log,
	}
}

func Register(s grpc.ServiceRegistrar, h OrderServer) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *OrderHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	o, err := h.uc.CreateOrder(ctx, &dto.CreateOrderInput{
		ClientID:        req.ClientID,
		Items:           mapItems(req.Items),
		DiscountPercent: req.DiscountPercent,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		UserID:          auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("CreateOrder", err)
	}
	return o, nil
}

func (h *OrderHandler) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*model.Order, error) {
	o, err := h.uc.UpdateOrder(ctx, &dto.UpdateOrderInput{
		OrderID:         req.ID,
		Items:           mapItems(req.Items),
		DiscountPercent: req.DiscountPercent,
		UserID:          auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("UpdateOrder", err)
	}
	return o, nil
}

func (h *OrderHandler) TransitionOrder(ctx context.Context, req *TransitionOrderRequest) (*model.Order, error) {
	o, err := h.uc.TransitionOrder(ctx, &dto.TransitionInput{
		OrderID: req.ID,
		Target:  req.Status,
		UserID:  auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("TransitionOrder", err)
	}
	return o, nil
}

func (h *OrderHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*model.Order, error) {
	o, err := h.uc.GetOrder(ctx, req.ID)
	if err != nil {
		return nil, h.fail("GetOrder", err)
	}
	return o, nil
}

func (h *OrderHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, total, err := h.uc.ListOrders(ctx, &dto.OrderFilters{
		Status:   req.Status,
		ClientID: req.ClientID,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return nil, h.fail("ListOrders", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return &ListOrdersResponse{Orders: orders, Total: total}, nil
}

func (h *OrderHandler) DeleteOrder(ctx context.Context, req *GetOrderRequest) (*Empty, error) {
	if err := h.uc.DeleteOrder(ctx, req.ID); err != nil {
		return nil, h.fail("DeleteOrder", err)
	}
	return &Empty{}, nil
}

func (h *OrderHandler) SimulateTax(ctx context.Context, req *SimulateTaxRequest) (*tax.Simulation, error) {
	sim, err := h.uc.SimulateTax(ctx, &dto.SimulateTaxInput{
		ProductID: req.ProductID,
		ClientID:  req.ClientID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		return nil, h.fail("SimulateTax", err)
	}
	return sim, nil
}

func (h *OrderHandler) GetOrderStats(ctx context.Context, _ *Empty) (*model.OrderStats, error) {
	stats, err := h.uc.GetStats(ctx)
	if err != nil {
		return nil, h.fail("GetOrderStats", err)
	}
	return stats, nil
}

// fail logs unexpected errors and converts err to a gRPC status.
func (h *OrderHandler) fail(method string, err error) error {
	if apperror.Code(err) == apperror.EPERSISTENCE {
		h.logger.Error("order request failed", zap.String("method", method), zap.Error(err))
	}
	return rpc.Status(err)
}

func mapItems(items []OrderItemRequest) []dto.OrderItemInput {
	out := make([]dto.OrderItemInput, len(items))
	for i, item := range items {
		out[i] = dto.OrderItemInput{
			Product:        model.ProductRef{ID: item.ProductID, Ephemeral: item.Ephemeral},
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
		}
	}
	return out
}
