package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// NextNumber bumps the per-prefix counter. Inside a transaction the counter
// row stays locked until commit, so numbers are gapless.
func (r *PGRepository) NextNumber(ctx context.Context, prefix string) (int64, error) {
	var next int64
	query := `
        INSERT INTO order_number_sequences (prefix, last_value)
        VALUES ($1, 1)
        ON CONFLICT (prefix) DO UPDATE SET last_value = order_number_sequences.last_value + 1
        RETURNING last_value
    `
	err := sqlx.GetContext(ctx, txm.Executor(ctx, r.DB), &next, query, prefix)
	if err != nil {
		return 0, postgres.Classify(err, "order.next_number")
	}
	return next, nil
}

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	query := `
        INSERT INTO sale_orders (
            id, order_number, client_id, status, payment_method,
            discount_percent, discount_amount, subtotal,
            icms_total, pis_total, cofins_total, tax_total, total_amount,
            notes, is_active, created_at, updated_at
        )
        VALUES (
            :id, :order_number, :client_id, :status, :payment_method,
            :discount_percent, :discount_amount, :subtotal,
            :icms_total, :pis_total, :cofins_total, :tax_total, :total_amount,
            :notes, :is_active, :created_at, :updated_at
        )
    `
	ext := txm.Executor(ctx, r.DB)
	if _, err := sqlx.NamedExecContext(ctx, ext, query, o); err != nil {
		return postgres.Classify(err, "order.create")
	}
	return r.insertItems(ctx, ext, o.Items)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	return r.find(ctx, id, "")
}

// FindByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *PGRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.find(ctx, id, " FOR UPDATE")
}

func (r *PGRepository) find(ctx context.Context, id, suffix string) (*model.Order, error) {
	if !postgres.IsID(id) {
		return nil, nil
	}
	ext := txm.Executor(ctx, r.DB)

	var o model.Order
	query := `SELECT * FROM sale_orders WHERE id = $1 AND is_active = true` + suffix
	if err := sqlx.GetContext(ctx, ext, &o, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, postgres.Classify(err, "order.find")
	}

	err := sqlx.SelectContext(ctx, ext, &o.Items,
		`SELECT * FROM sale_order_items WHERE sale_order_id = $1 ORDER BY line_number`, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	var items []model.Order
	var count int

	conditions := []string{"is_active = true"}
	args := map[string]interface{}{}

	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.ClientID != "" {
		conditions = append(conditions, "client_id = :client_id")
		args["client_id"] = f.ClientID
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")
	ext := txm.Executor(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM sale_orders"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, ext, &count, ext.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, postgres.Classify(err, "order.list")
	}

	query := "SELECT * FROM sale_orders" + whereClause + " ORDER BY order_number DESC"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	query, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	err = sqlx.SelectContext(ctx, ext, &items, ext.Rebind(query), listArgs...)
	return items, count, err
}

// Update writes the order header. Items are written by ReplaceItems.
func (r *PGRepository) Update(ctx context.Context, o *model.Order) error {
	query := `
        UPDATE sale_orders
        SET status = :status,
            payment_method = :payment_method,
            discount_percent = :discount_percent,
            discount_amount = :discount_amount,
            subtotal = :subtotal,
            icms_total = :icms_total,
            pis_total = :pis_total,
            cofins_total = :cofins_total,
            tax_total = :tax_total,
            total_amount = :total_amount,
            notes = :notes,
            updated_at = :updated_at
        WHERE id = :id
    `
	_, err := sqlx.NamedExecContext(ctx, txm.Executor(ctx, r.DB), query, o)
	return postgres.Classify(err, "order.update")
}

func (r *PGRepository) ReplaceItems(ctx context.Context, orderID string, items []model.OrderItem) error {
	ext := txm.Executor(ctx, r.DB)
	if _, err := ext.ExecContext(ctx, `DELETE FROM sale_order_items WHERE sale_order_id = $1`, orderID); err != nil {
		return postgres.Classify(err, "order.replace_items")
	}
	return r.insertItems(ctx, ext, items)
}

func (r *PGRepository) insertItems(ctx context.Context, ext sqlx.ExtContext, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `
        INSERT INTO sale_order_items (
            id, sale_order_id, product_id, product_name,
            quantity, unit_price, discount_amount, gross_total, net_total,
            icms_rate, pis_rate, cofins_rate,
            icms_amount, pis_amount, cofins_amount, line_number
        )
        VALUES (
            :id, :sale_order_id, :product_id, :product_name,
            :quantity, :unit_price, :discount_amount, :gross_total, :net_total,
            :icms_rate, :pis_rate, :cofins_rate,
            :icms_amount, :pis_amount, :cofins_amount, :line_number
        )
    `
	_, err := sqlx.NamedExecContext(ctx, ext, query, items)
	return postgres.Classify(err, "order.insert_items")
}

func (r *PGRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := txm.Executor(ctx, r.DB).ExecContext(ctx,
		`UPDATE sale_orders SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	return postgres.Classify(err, "order.soft_delete")
}

type statusCount struct {
	Status model.OrderStatus `db:"status"`
	Count  int               `db:"order_count"`
}

func (r *PGRepository) Stats(ctx context.Context, monthStart time.Time) (*model.OrderStats, error) {
	ext := txm.Executor(ctx, r.DB)

	var totals struct {
		TotalOrders     int             `db:"total_orders"`
		TotalValue      decimal.Decimal `db:"total_value"`
		OrdersThisMonth int             `db:"orders_this_month"`
		ValueThisMonth  decimal.Decimal `db:"value_this_month"`
	}
	query := `
        SELECT COUNT(*) AS total_orders,
               COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled'), 0) AS total_value,
               COUNT(*) FILTER (WHERE created_at >= $1) AS orders_this_month,
               COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled' AND created_at >= $1), 0) AS value_this_month
        FROM sale_orders
        WHERE is_active = true
    `
	if err := sqlx.GetContext(ctx, ext, &totals, query, monthStart); err != nil {
		return nil, err
	}

	var counts []statusCount
	err := sqlx.SelectContext(ctx, ext, &counts, `
        SELECT status, COUNT(*) AS order_count
        FROM sale_orders
        WHERE is_active = true
        GROUP BY status`)
	if err != nil {
		return nil, err
	}

	stats := &model.OrderStats{
		TotalOrders:     totals.TotalOrders,
		TotalValue:      totals.TotalValue,
		OrdersThisMonth: totals.OrdersThisMonth,
		ValueThisMonth:  totals.ValueThisMonth,
		ByStatus: map[model.OrderStatus]int{
			model.OrderStatusDraft:     0,
			model.OrderStatusConfirmed: 0,
			model.OrderStatusInvoiced:  0,
			model.OrderStatusCancelled: 0,
		},
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
	}
	return stats, nil
}
