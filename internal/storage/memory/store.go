// Package memory is a process-local storage driver. It implements every
// repository of the service and a transaction manager that restores a
// snapshot on rollback. Transactions are serialized, so the per-product and
// per-order locks of the SQL driver are implied.
package memory

import (
	"context"
	"sync"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/txm"
)

type Store struct {
	txMu sync.Mutex // held for the whole of an outermost transaction
	mu   sync.RWMutex

	products  map[string]model.Product
	clients   map[string]model.Client
	levels    map[string]model.StockLevel
	movements []model.StockMovement
	orders    map[string]model.Order
	sequences map[string]int64
	receipts  map[string]int
}

func NewStore() *Store {
	return &Store{
		products:  map[string]model.Product{},
		clients:   map[string]model.Client{},
		levels:    map[string]model.StockLevel{},
		orders:    map[string]model.Order{},
		sequences: map[string]int64{},
		receipts:  map[string]int{},
	}
}

// AddProduct seeds the catalog. QuantityAvailable is read from the stock
// levels, so stock only changes through movements.
func (s *Store) AddProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddClient(c model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

type snapshot struct {
	levels       map[string]model.StockLevel
	movementsLen int
	orders       map[string]model.Order
	sequences    map[string]int64
	receipts     map[string]int
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		levels:       make(map[string]model.StockLevel, len(s.levels)),
		movementsLen: len(s.movements),
		orders:       make(map[string]model.Order, len(s.orders)),
		sequences:    make(map[string]int64, len(s.sequences)),
		receipts:     make(map[string]int, len(s.receipts)),
	}
	for k, v := range s.levels {
		snap.levels[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = cloneOrder(v)
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	for k, v := range s.receipts {
		snap.receipts[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.levels = snap.levels
	s.movements = s.movements[:snap.movementsLen]
	s.orders = snap.orders
	s.sequences = snap.sequences
	s.receipts = snap.receipts
}

// TxManager returns the transaction manager bound to s.
func (s *Store) TxManager() txm.Manager {
	return &txManager{store: s}
}

type txManager struct {
	store *Store
}

func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txm.InTx(ctx) {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	snap := m.store.snapshot()
	scope := txm.NewScope(nil)

	committed := false
	defer func() {
		if !committed {
			m.store.restore(snap)
		}
		m.store.txMu.Unlock()
		if committed {
			scope.Committed()
		}
	}()

	if err = fn(txm.WithScope(ctx, scope)); err != nil {
		return err
	}
	committed = true
	return nil
}

func cloneOrder(o model.Order) model.Order {
	if o.Items != nil {
		items := make([]model.OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}
