package memory

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/client"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/product"
)

type productRepository struct {
	store *Store
}

func (s *Store) Products() product.Repository {
	return &productRepository{store: s}
}

func (r *productRepository) FindByID(_ context.Context, id string) (*model.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.products[id]
	if !ok {
		return nil, nil
	}
	p.QuantityAvailable = r.store.levels[id].QuantityAvailable
	return &p, nil
}

func (r *productRepository) FindByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := r.store.products[id]
		if !ok {
			continue
		}
		p.QuantityAvailable = r.store.levels[id].QuantityAvailable
		out = append(out, p)
	}
	return out, nil
}

type clientRepository struct {
	store *Store
}

func (s *Store) Clients() client.Repository {
	return &clientRepository{store: s}
}

func (r *clientRepository) FindByID(_ context.Context, id string) (*model.Client, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
