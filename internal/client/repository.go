package client

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

// Repository is a read-only client lookup. FindByID returns nil, nil when the
// client does not exist.
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
}
