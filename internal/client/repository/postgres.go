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

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Client, error) {
	if !postgres.IsID(id) {
		return nil, nil
	}

	var c model.Client
	query := `
        SELECT id, name, document, person_type, COALESCE(state, '') AS state,
               is_active, created_at, updated_at
        FROM clients WHERE id = $1 LIMIT 1`
	err := sqlx.GetContext(ctx, txm.Executor(ctx, r.DB), &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
