package product

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

// Repository is the read-only catalog. Lookups return nil, nil when the
// product does not exist.
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}
