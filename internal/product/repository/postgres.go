package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
	"github.com/jmoiron/sqlx"
)

const selectProduct = `
    SELECT p.id, p.sku, p.name, p.sale_price, p.cost_price,
           COALESCE(p.ncm, '') AS ncm, COALESCE(p.cst, '') AS cst,
           p.icms_rate, p.pis_rate, p.cofins_rate,
           COALESCE(s.quantity_available, 0) AS quantity_available,
           p.min_stock, p.is_active, p.created_at, p.updated_at
    FROM products p
    LEFT JOIN stock_levels s ON s.product_id = p.id`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if !postgres.IsID(id) {
		return nil, nil
	}

	var product model.Product
	query := selectProduct + ` WHERE p.id = $1 LIMIT 1`
	err := sqlx.GetContext(ctx, txm.Executor(ctx, r.DB), &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDs skips malformed ids; callers detect them as missing products.
func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if postgres.IsID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	ext := txm.Executor(ctx, r.DB)
	query, args, err := sqlx.In(selectProduct+` WHERE p.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	// Rebind for Postgres ($1, $2...)
	query = ext.Rebind(query)

	var products []model.Product
	err = sqlx.SelectContext(ctx, ext, &products, query, args...)
	return products, err
}
