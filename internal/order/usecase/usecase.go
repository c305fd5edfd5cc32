package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/client"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/telemetry"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/validate"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	"github.com/fekuna/omnipos-sales-service/internal/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	NumberPrefix        string
	AllowCancelInvoiced bool
}

type orderUseCase struct {
	repo      order.Repository
	products  product.Repository
	clients   client.Repository
	stock     inventory.UseCase
	calc      *tax.Calculator
	tx        txm.Manager
	locker    order.Locker
	publisher order.EventPublisher
	metrics   *telemetry.SalesMetrics
	cfg       Config
	logger    logger.ZapLogger
	now       func() time.Time
}

// NewOrderUseCase wires the order engine. locker and publisher may be nil.
func NewOrderUseCase(
	repo order.Repository,
	products product.Repository,
	clients client.Repository,
	stock inventory.UseCase,
	calc *tax.Calculator,
	tx txm.Manager,
	locker order.Locker,
	publisher order.EventPublisher,
	metrics *telemetry.SalesMetrics,
	cfg Config,
	log logger.ZapLogger,
) order.UseCase {
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "PV"
	}
	return &orderUseCase{
		repo:      repo,
		products:  products,
		clients:   clients,
		stock:     stock,
		calc:      calc,
		tx:        tx,
		locker:    locker,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error) {
	const op = "order.create"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if err := validate.Percent(op, "discount percent", input.DiscountPercent); err != nil {
		return nil, err
	}
	if err := validateItems(op, input.Items); err != nil {
		return nil, err
	}

	cl, err := uc.loadClient(ctx, op, input.ClientID)
	if err != nil {
		return nil, err
	}
	lines, err := uc.resolveLines(ctx, op, input.Items)
	if err != nil {
		return nil, err
	}
	if err := uc.checkStock(op, lines); err != nil {
		return nil, err
	}

	now := uc.now()
	o := &model.Order{
		BaseModel:       model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ClientID:        cl.ID,
		Status:          model.OrderStatusDraft,
		PaymentMethod:   model.PaymentMethod(input.PaymentMethod),
		DiscountPercent: input.DiscountPercent,
		Notes:           input.Notes,
		IsActive:        true,
	}
	if err := priceOrder(uc.calc, o, lines, cl); err != nil {
		return nil, err
	}

	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		seq, err := uc.repo.NextNumber(ctx, uc.cfg.NumberPrefix)
		if err != nil {
			return apperror.Persistence(err, op, "failed to allocate order number")
		}
		o.OrderNumber = fmt.Sprintf("%s%06d", uc.cfg.NumberPrefix, seq)

		if err := uc.repo.Create(ctx, o); err != nil {
			return apperror.Persistence(err, op, "failed to save order")
		}

		txm.AfterCommit(ctx, func() {
			uc.metrics.OrdersCreated.Inc()
			uc.metrics.OrderValue.Observe(o.TotalAmount.InexactFloat64())
			uc.publish(order.EventOrderCreated, o, "")
		})
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}

	uc.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
	)
	return o, nil
}

func (uc *orderUseCase) UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.Order, error) {
	const op = "order.update"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if input.DiscountPercent != nil {
		if err := validate.Percent(op, "discount percent", *input.DiscountPercent); err != nil {
			return nil, err
		}
	}
	if err := validateItems(op, input.Items); err != nil {
		return nil, err
	}

	var updated *model.Order
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to load order")
		}
		if o == nil {
			return apperror.NotFound(op, "order", input.OrderID)
		}
		if o.Status != model.OrderStatusDraft {
			return apperror.Errorf(apperror.EINVALIDTRANSITION, op, "order %s is %s, only draft orders can be edited", o.OrderNumber, o.Status)
		}

		cl, err := uc.loadClient(ctx, op, o.ClientID)
		if err != nil {
			return err
		}
		lines, err := uc.resolveLines(ctx, op, input.Items)
		if err != nil {
			return err
		}
		if err := uc.checkStock(op, lines); err != nil {
			return err
		}

		if input.DiscountPercent != nil {
			o.DiscountPercent = *input.DiscountPercent
		}
		if err := priceOrder(uc.calc, o, lines, cl); err != nil {
			return err
		}
		o.UpdatedAt = uc.now()

		if err := uc.repo.ReplaceItems(ctx, o.ID, o.Items); err != nil {
			return apperror.Persistence(err, op, "failed to save order items")
		}
		if err := uc.repo.Update(ctx, o); err != nil {
			return apperror.Persistence(err, op, "failed to save order")
		}
		updated = o
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}
	return updated, nil
}

func (uc *orderUseCase) TransitionOrder(ctx context.Context, input *dto.TransitionInput) (*model.Order, error) {
	const op = "order.transition"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	target := model.OrderStatus(input.Target)

	unlock, err := uc.lock(ctx, input.OrderID)
	if err != nil {
		uc.conflict(op, err)
		return nil, err
	}
	defer unlock()

	var (
		result *model.Order
		from   model.OrderStatus
	)
	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return apperror.Persistence(err, op, "failed to load order")
		}
		if o == nil {
			return apperror.NotFound(op, "order", input.OrderID)
		}

		from = o.Status
		if !canTransition(from, target, uc.cfg.AllowCancelInvoiced) {
			return apperror.InvalidTransition(op, string(from), string(target))
		}

		switch target {
		case model.OrderStatusConfirmed:
			if err := uc.recheckStock(ctx, op, o); err != nil {
				return err
			}
		case model.OrderStatusInvoiced:
			if err := uc.invoice(ctx, o, input.UserID); err != nil {
				return err
			}
		}

		o.Status = target
		o.UpdatedAt = uc.now()
		if err := uc.repo.Update(ctx, o); err != nil {
			return apperror.Persistence(err, op, "failed to save order status")
		}

		txm.AfterCommit(ctx, func() {
			uc.metrics.OrderTransitions.WithLabelValues(string(from), string(target), "ok").Inc()
			uc.publish(order.EventOrderStatusChanged, o, from)
		})
		result = o
		return nil
	})
	if err != nil {
		fromLabel := string(from)
		if fromLabel == "" {
			fromLabel = "unknown"
		}
		uc.metrics.OrderTransitions.WithLabelValues(fromLabel, string(target), "rejected").Inc()
		uc.conflict(op, err)
		return nil, err
	}

	uc.logger.Info("order status changed",
		zap.String("order_id", result.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	return result, nil
}

// recheckStock repeats the creation-time sufficiency check against current
// stock. Nothing is reserved.
func (uc *orderUseCase) recheckStock(ctx context.Context, op string, o *model.Order) error {
	lines := make([]line, 0, len(o.Items))
	var ids []string
	for _, item := range o.Items {
		if item.Tracked() {
			ids = append(ids, *item.ProductID)
		}
	}
	products, err := uc.productsByID(ctx, op, ids)
	if err != nil {
		return err
	}
	for _, item := range o.Items {
		if !item.Tracked() {
			continue
		}
		lines = append(lines, line{
			input:   dto.OrderItemInput{Quantity: item.Quantity},
			product: products[*item.ProductID],
		})
	}
	return uc.checkStock(op, lines)
}

// invoice writes one sale exit per tracked item. Products are locked in id
// order so concurrent invoices cannot deadlock.
func (uc *orderUseCase) invoice(ctx context.Context, o *model.Order, userID string) error {
	items := make([]model.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Tracked() {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return *items[i].ProductID < *items[j].ProductID
	})

	var createdBy *string
	if userID != "" {
		createdBy = &userID
	}
	orderID := o.ID
	for _, item := range items {
		_, err := uc.stock.ApplyExit(ctx, &invdto.ExitInput{
			ProductID:        *item.ProductID,
			MovementType:     model.MovementSaleExit,
			Quantity:         item.Quantity,
			ReferenceOrderID: &orderID,
			Reason:           "sale order " + o.OrderNumber,
			CreatedBy:        createdBy,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Persistence(err, "order.get", "failed to load order")
	}
	if o == nil {
		return nil, apperror.NotFound("order.get", "order", id)
	}
	return o, nil
}

func (uc *orderUseCase) ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error) {
	if filters.Status != "" && !model.OrderStatus(filters.Status).Valid() {
		return nil, 0, apperror.Invalid("order.list", "unknown order status %q", filters.Status)
	}
	orders, total, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "order.list", "failed to list orders")
	}
	return orders, total, nil
}

// DeleteOrder soft-deletes a draft.
func (uc *orderUseCase) DeleteOrder(ctx context.Context, id string) error {
	const op = "order.delete"

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return apperror.Persistence(err, op, "failed to load order")
		}
		if o == nil {
			return apperror.NotFound(op, "order", id)
		}
		if o.Status != model.OrderStatusDraft {
			return apperror.Errorf(apperror.EINVALIDTRANSITION, op, "order %s is %s, only draft orders can be deleted", o.OrderNumber, o.Status)
		}
		if err := uc.repo.SoftDelete(ctx, id); err != nil {
			return apperror.Persistence(err, op, "failed to delete order")
		}
		return nil
	})
	if err != nil {
		uc.conflict(op, err)
		return err
	}

	uc.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}

func (uc *orderUseCase) SimulateTax(ctx context.Context, input *dto.SimulateTaxInput) (*tax.Simulation, error) {
	const op = "order.simulate_tax"

	if err := validate.Struct(op, input); err != nil {
		return nil, err
	}
	if err := validate.Quantity(op, "quantity", input.Quantity); err != nil {
		return nil, err
	}
	if err := validate.Price(op, "unit price", input.UnitPrice); err != nil {
		return nil, err
	}

	p, err := uc.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, apperror.Persistence(err, op, "failed to load product")
	}
	if p == nil {
		return nil, apperror.NotFound(op, "product", input.ProductID)
	}

	var cl *model.Client
	if input.ClientID != "" {
		if cl, err = uc.loadClient(ctx, op, input.ClientID); err != nil {
			return nil, err
		}
	}

	sim, err := uc.calc.Simulate(p, input.Quantity, input.UnitPrice, cl)
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

func (uc *orderUseCase) GetStats(ctx context.Context) (*model.OrderStats, error) {
	now := uc.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats, err := uc.repo.Stats(ctx, monthStart)
	if err != nil {
		return nil, apperror.Persistence(err, "order.stats", "failed to compute order stats")
	}
	stats.AverageValue = decimal.Zero
	if stats.TotalOrders > 0 {
		stats.AverageValue = stats.TotalValue.Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}
	return stats, nil
}

func validateItems(op string, items []dto.OrderItemInput) error {
	for i, item := range items {
		n := i + 1
		ref := item.Product
		if (ref.ID == "") == (ref.Ephemeral == nil) {
			return apperror.Invalid(op, "item %d must reference either a product id or an ephemeral product", n)
		}
		if err := validate.Quantity(op, fmt.Sprintf("item %d quantity", n), item.Quantity); err != nil {
			return err
		}
		if err := validate.Price(op, fmt.Sprintf("item %d unit price", n), item.UnitPrice); err != nil {
			return err
		}
		if err := validate.NonNegativeMoney(op, fmt.Sprintf("item %d discount", n), item.DiscountAmount); err != nil {
			return err
		}
		if e := ref.Ephemeral; e != nil {
			rates := map[string]decimal.Decimal{"icms": e.ICMSRate, "pis": e.PISRate, "cofins": e.COFINSRate}
			for _, name := range []string{"icms", "pis", "cofins"} {
				if err := validate.Percent(op, fmt.Sprintf("item %d %s rate", n, name), rates[name]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (uc *orderUseCase) loadClient(ctx context.Context, op, id string) (*model.Client, error) {
	cl, err := uc.clients.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Persistence(err, op, "failed to load client")
	}
	if cl == nil {
		return nil, apperror.NotFound(op, "client", id)
	}
	if !cl.IsActive {
		return nil, apperror.Invalid(op, "client %s is inactive", cl.Name)
	}
	return cl, nil
}

func (uc *orderUseCase) productsByID(ctx context.Context, op string, ids []string) (map[string]*model.Product, error) {
	found, err := uc.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Persistence(err, op, "failed to load products")
	}
	byID := make(map[string]*model.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperror.NotFound(op, "product", id)
		}
	}
	return byID, nil
}

// resolveLines pairs every item with its product. Catalog products must be
// active; ephemeral ones are built from the item itself.
func (uc *orderUseCase) resolveLines(ctx context.Context, op string, items []dto.OrderItemInput) ([]line, error) {
	var ids []string
	for _, item := range items {
		if item.Product.Ephemeral == nil {
			ids = append(ids, item.Product.ID)
		}
	}
	products, err := uc.productsByID(ctx, op, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]line, 0, len(items))
	for _, item := range items {
		if item.Product.Ephemeral != nil {
			lines = append(lines, line{input: item, product: item.Product.Ephemeral.Product()})
			continue
		}
		p := products[item.Product.ID]
		if !p.IsActive {
			return nil, apperror.Invalid(op, "product %s is inactive", p.Name)
		}
		lines = append(lines, line{input: item, product: p})
	}
	return lines, nil
}

// checkStock compares the summed request per product with the stock
// projection read together with the products.
func (uc *orderUseCase) checkStock(op string, lines []line) error {
	requested, ids := requestedStock(lines)
	products := map[string]*model.Product{}
	for _, l := range lines {
		products[l.product.ID] = l.product
	}

	for _, id := range ids {
		p := products[id]
		if p.QuantityAvailable.LessThan(requested[id]) {
			uc.metrics.StockRejections.WithLabelValues("insufficient_stock").Inc()
			return apperror.InsufficientStock(op, p.Name, p.QuantityAvailable.String(), requested[id].String())
		}
	}
	return nil
}

func (uc *orderUseCase) lock(ctx context.Context, orderID string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}
	return uc.locker.Lock(ctx, orderID)
}

func (uc *orderUseCase) publish(eventType string, o *model.Order, from model.OrderStatus) {
	if uc.publisher == nil {
		return
	}
	event := &order.Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Payload: order.EventPayload{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			ClientID:    o.ClientID,
			Status:      string(o.Status),
			FromStatus:  string(from),
			TotalAmount: o.TotalAmount,
			TaxTotal:    o.TaxTotal,
		},
		Timestamp: uc.now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Error("failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func (uc *orderUseCase) conflict(op string, err error) {
	if apperror.Is(err, apperror.ECONFLICT) {
		uc.metrics.ConcurrencyConflict.WithLabelValues(op).Inc()
	}
}
