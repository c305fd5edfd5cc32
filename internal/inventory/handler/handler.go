package handler

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/auth"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.sales.v1.InventoryService"

type ProductRequest struct {
	ProductID string `json:"product_id"`
}

type ListStockRequest struct {
	ProductID         string `json:"product_id"`
	LowStockOnly      bool   `json:"low_stock_only"`
	ZeroStockOnly     bool   `json:"zero_stock_only"`
	NegativeStockOnly bool   `json:"negative_stock_only"`
	Page              int    `json:"page"`
	PageSize          int    `json:"page_size"`
}

type ListStockResponse struct {
	Items []model.StockView `json:"items"`
	Total int               `json:"total"`
}

type RecordEntryRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Batch     string          `json:"batch"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Reason    string          `json:"reason"`
}

type ReceiptItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Batch     string          `json:"batch"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type RecordReceiptRequest struct {
	ReceiptID string               `json:"receipt_id"`
	Items     []ReceiptItemRequest `json:"items"`
}

type RecordReceiptResponse struct {
	ReceiptID string            `json:"receipt_id"`
	Duplicate bool              `json:"duplicate"`
	Items     []model.StockView `json:"items"`
}

type RecordMovementRequest struct {
	ProductID    string           `json:"product_id"`
	MovementType string           `json:"movement_type"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitCost     *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason       string           `json:"reason"`
	Notes        string           `json:"notes"`
}

type ListMovementsRequest struct {
	ProductID        string     `json:"product_id"`
	MovementType     string     `json:"movement_type"`
	ReferenceOrderID string     `json:"reference_order_id"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Page             int        `json:"page"`
	PageSize         int        `json:"page_size"`
}

type ListMovementsResponse struct {
	Movements []model.StockMovement `json:"movements"`
	Total     int                   `json:"total"`
}

type UpdateLimitsRequest struct {
	ProductID    string          `json:"product_id"`
	MinStock     decimal.Decimal `json:"min_stock"`
	MaxStock     decimal.Decimal `json:"max_stock"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

// InventoryServer is the surface registered under ServiceName.
type InventoryServer interface {
	GetCurrentStock(ctx context.Context, req *ProductRequest) (*model.StockView, error)
	ListStock(ctx context.Context, req *ListStockRequest) (*ListStockResponse, error)
	RecordStockEntry(ctx context.Context, req *RecordEntryRequest) (*model.StockView, error)
	RecordReceipt(ctx context.Context, req *RecordReceiptRequest) (*RecordReceiptResponse, error)
	RecordStockMovement(ctx context.Context, req *RecordMovementRequest) (*model.StockView, error)
	ListMovements(ctx context.Context, req *ListMovementsRequest) (*ListMovementsResponse, error)
	UpdateStockLimits(ctx context.Context, req *UpdateLimitsRequest) (*model.StockView, error)
	VerifyLedger(ctx context.Context, req *ProductRequest) (*model.LedgerCheck, error)
	RebuildStockLevel(ctx context.Context, req *ProductRequest) (*model.StockView, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "GetCurrentStock", InventoryServer.GetCurrentStock),
		rpc.Unary(ServiceName, "ListStock", InventoryServer.ListStock),
		rpc.Unary(ServiceName, "RecordStockEntry", InventoryServer.RecordStockEntry),
		rpc.Unary(ServiceName, "RecordReceipt", InventoryServer.RecordReceipt),
		rpc.Unary(ServiceName, "RecordStockMovement", InventoryServer.RecordStockMovement),
		rpc.Unary(ServiceName, "ListMovements", InventoryServer.ListMovements),
		rpc.Unary(ServiceName, "UpdateStockLimits", InventoryServer.UpdateStockLimits),
		rpc.Unary(ServiceName, "VerifyLedger", InventoryServer.VerifyLedger),
		rpc.Unary(ServiceName, "RebuildStockLevel", InventoryServer.RebuildStockLevel),
	},
	Metadata: "omnipos/sales/v1/inventory.proto",
}

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func Register(s grpc.ServiceRegistrar, h InventoryServer) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *InventoryHandler) GetCurrentStock(ctx context.Context, req *ProductRequest) (*model.StockView, error) {
	view, err := h.uc.GetCurrent(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("GetCurrentStock", err)
	}
	return view, nil
}

func (h *InventoryHandler) ListStock(ctx context.Context, req *ListStockRequest) (*ListStockResponse, error) {
	items, total, err := h.uc.ListStock(ctx, &dto.StockFilters{
		ProductID:         req.ProductID,
		LowStockOnly:      req.LowStockOnly,
		ZeroStockOnly:     req.ZeroStockOnly,
		NegativeStockOnly: req.NegativeStockOnly,
		Page:              req.Page,
		PageSize:          req.PageSize,
	})
	if err != nil {
		return nil, h.fail("ListStock", err)
	}
	if items == nil {
		items = []model.StockView{}
	}
	return &ListStockResponse{Items: items, Total: total}, nil
}

func (h *InventoryHandler) RecordStockEntry(ctx context.Context, req *RecordEntryRequest) (*model.StockView, error) {
	view, err := h.uc.RecordStockEntry(ctx, &dto.RecordEntryInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Batch:     req.Batch,
		ExpiresAt: req.ExpiresAt,
		Reason:    req.Reason,
		UserID:    auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("RecordStockEntry", err)
	}
	return view, nil
}

func (h *InventoryHandler) RecordReceipt(ctx context.Context, req *RecordReceiptRequest) (*RecordReceiptResponse, error) {
	input := &dto.ReceiptInput{
		ReceiptID:  req.ReceiptID,
		ReceivedBy: auth.GetUserID(ctx),
		Items:      make([]dto.ReceiptItemInput, len(req.Items)),
	}
	for i, item := range req.Items {
		input.Items[i] = dto.ReceiptItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			Batch:     item.Batch,
			ExpiresAt: item.ExpiresAt,
		}
	}

	result, err := h.uc.RecordReceipt(ctx, input)
	if err != nil {
		return nil, h.fail("RecordReceipt", err)
	}
	items := result.Levels
	if items == nil {
		items = []model.StockView{}
	}
	return &RecordReceiptResponse{ReceiptID: result.ReceiptID, Duplicate: result.Duplicate, Items: items}, nil
}

func (h *InventoryHandler) RecordStockMovement(ctx context.Context, req *RecordMovementRequest) (*model.StockView, error) {
	view, err := h.uc.RecordStockMovement(ctx, &dto.RecordMovementInput{
		ProductID:    req.ProductID,
		MovementType: req.MovementType,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		Reason:       req.Reason,
		Notes:        req.Notes,
		UserID:       auth.GetUserID(ctx),
	})
	if err != nil {
		return nil, h.fail("RecordStockMovement", err)
	}
	return view, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *ListMovementsRequest) (*ListMovementsResponse, error) {
	mvs, total, err := h.uc.ListMovements(ctx, &dto.MovementFilters{
		ProductID:        req.ProductID,
		MovementType:     req.MovementType,
		ReferenceOrderID: req.ReferenceOrderID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Page:             req.Page,
		PageSize:         req.PageSize,
	})
	if err != nil {
		return nil, h.fail("ListMovements", err)
	}
	if mvs == nil {
		mvs = []model.StockMovement{}
	}
	return &ListMovementsResponse{Movements: mvs, Total: total}, nil
}

func (h *InventoryHandler) UpdateStockLimits(ctx context.Context, req *UpdateLimitsRequest) (*model.StockView, error) {
	view, err := h.uc.UpdateLimits(ctx, &dto.UpdateLimitsInput{
		ProductID:    req.ProductID,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		return nil, h.fail("UpdateStockLimits", err)
	}
	return view, nil
}

func (h *InventoryHandler) VerifyLedger(ctx context.Context, req *ProductRequest) (*model.LedgerCheck, error) {
	check, err := h.uc.VerifyLedger(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("VerifyLedger", err)
	}
	return check, nil
}

func (h *InventoryHandler) RebuildStockLevel(ctx context.Context, req *ProductRequest) (*model.StockView, error) {
	view, err := h.uc.RebuildLevel(ctx, req.ProductID)
	if err != nil {
		return nil, h.fail("RebuildStockLevel", err)
	}
	h.logger.Warn("stock level rebuilt from ledger",
		zap.String("product_id", req.ProductID),
		zap.String("user_id", auth.GetUserID(ctx)),
	)
	return view, nil
}

func (h *InventoryHandler) fail(method string, err error) error {
	if apperror.Code(err) == apperror.EPERSISTENCE {
		h.logger.Error("inventory request failed", zap.String("method", method), zap.Error(err))
	}
	return rpc.Status(err)
}
