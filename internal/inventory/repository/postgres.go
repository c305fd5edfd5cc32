package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// LockLevel must run inside a transaction; the row lock is held until it ends.
// Returns nil, nil when the product does not exist.
func (r *PGRepository) LockLevel(ctx context.Context, productID string) (*model.StockLevel, error) {
	if !postgres.IsID(productID) {
		return nil, nil
	}
	ext := txm.Executor(ctx, r.DB)

	// Create on first use so there is always a row to lock
	_, err := ext.ExecContext(ctx, `
        INSERT INTO stock_levels (product_id, min_stock)
        SELECT id, min_stock FROM products WHERE id = $1
        ON CONFLICT (product_id) DO NOTHING`, productID)
	if err != nil {
		return nil, postgres.Classify(err, "inventory.lock_level")
	}

	var lvl model.StockLevel
	err = sqlx.GetContext(ctx, ext, &lvl, `SELECT * FROM stock_levels WHERE product_id = $1 FOR UPDATE`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, postgres.Classify(err, "inventory.lock_level")
	}
	return &lvl, nil
}

func (r *PGRepository) GetLevel(ctx context.Context, productID string) (*model.StockLevel, error) {
	if !postgres.IsID(productID) {
		return nil, nil
	}

	var lvl model.StockLevel
	err := sqlx.GetContext(ctx, txm.Executor(ctx, r.DB), &lvl, `SELECT * FROM stock_levels WHERE product_id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &lvl, nil
}

func (r *PGRepository) SaveLevel(ctx context.Context, lvl *model.StockLevel) error {
	query := `
        UPDATE stock_levels
        SET quantity_available = :quantity_available,
            weighted_average_cost = :weighted_average_cost,
            min_stock = :min_stock,
            max_stock = :max_stock,
            reorder_point = :reorder_point,
            last_entry_at = :last_entry_at,
            last_exit_at = :last_exit_at,
            updated_at = :updated_at
        WHERE product_id = :product_id
    `
	_, err := sqlx.NamedExecContext(ctx, txm.Executor(ctx, r.DB), query, lvl)
	return postgres.Classify(err, "inventory.save_level")
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.StockFilters) ([]model.StockLevel, int, error) {
	var items []model.StockLevel
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.LowStockOnly {
		conditions = append(conditions, "quantity_available <= min_stock")
	}
	if f.ZeroStockOnly {
		conditions = append(conditions, "quantity_available = 0")
	}
	if f.NegativeStockOnly {
		conditions = append(conditions, "quantity_available < 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	ext := txm.Executor(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stock_levels"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, ext, &count, ext.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, postgres.Classify(err, "inventory.list_stock")
	}

	query := "SELECT * FROM stock_levels" + whereClause + " ORDER BY updated_at DESC"
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

func (r *PGRepository) AppendMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, product_id, movement_type,
            quantity_before, quantity_delta, quantity_after,
            unit_cost, average_cost_before, average_cost_after, total_value,
            reference_order_id, batch, expires_at, reason, notes,
            allow_negative, created_by, created_at
        )
        VALUES (
            :id, :product_id, :movement_type,
            :quantity_before, :quantity_delta, :quantity_after,
            :unit_cost, :average_cost_before, :average_cost_after, :total_value,
            :reference_order_id, :batch, :expires_at, :reason, :notes,
            :allow_negative, :created_by, :created_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, txm.Executor(ctx, r.DB), query, m)
	return postgres.Classify(err, "inventory.append_movement")
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.ReferenceOrderID != "" {
		conditions = append(conditions, "reference_order_id = :reference_order_id")
		args["reference_order_id"] = f.ReferenceOrderID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	ext := txm.Executor(ctx, r.DB)

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stock_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, ext, &count, ext.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, postgres.Classify(err, "inventory.list_movements")
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC, id"
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

// MarkReceipt relies on the primary key: a concurrent booking of the same
// receipt waits for this transaction and then inserts nothing.
func (r *PGRepository) MarkReceipt(ctx context.Context, receiptID string, itemCount int) (bool, error) {
	res, err := txm.Executor(ctx, r.DB).ExecContext(ctx, `
        INSERT INTO stock_receipts (receipt_id, item_count)
        VALUES ($1, $2)
        ON CONFLICT (receipt_id) DO NOTHING`, receiptID, itemCount)
	if err != nil {
		return false, postgres.Classify(err, "inventory.mark_receipt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) LedgerTotals(ctx context.Context, productID string) (*dto.LedgerTotals, error) {
	var totals dto.LedgerTotals
	query := `
        SELECT COALESCE(SUM(quantity_delta), 0) AS delta_sum,
               COUNT(*) AS movement_count,
               COALESCE((
                   SELECT average_cost_after FROM stock_movements
                   WHERE product_id = $1
                   ORDER BY created_at DESC, id DESC LIMIT 1
               ), 0) AS last_average_cost
        FROM stock_movements
        WHERE product_id = $1
    `
	err := sqlx.GetContext(ctx, txm.Executor(ctx, r.DB), &totals, query, productID)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
