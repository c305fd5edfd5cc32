package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

// SeedReceiptID books the fixture's opening stock. Reloading the same
// fixture into a store is a no-op for stock.
const SeedReceiptID = "memory-seed"

// Fixture is the JSON document that seeds a memory store.
type Fixture struct {
	Clients  []model.Client  `json:"clients"`
	Products []model.Product `json:"products"`
	Stock    []StockSeed     `json:"stock"`
}

// StockSeed is an opening balance. It is booked as a purchase entry so the
// ledger and the projection agree from the start.
type StockSeed struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &f, nil
}

// Seed adds the fixture's clients and products and returns the receipt that
// books its opening stock. The caller records it through the inventory
// engine.
func (s *Store) Seed(f *Fixture) *dto.ReceiptInput {
	for _, c := range f.Clients {
		s.AddClient(c)
	}
	for _, p := range f.Products {
		s.AddProduct(p)
	}
	if len(f.Stock) == 0 {
		return nil
	}

	receipt := &dto.ReceiptInput{ReceiptID: SeedReceiptID, ReceivedBy: "seed"}
	for _, st := range f.Stock {
		receipt.Items = append(receipt.Items, dto.ReceiptItemInput{
			ProductID: st.ProductID,
			Quantity:  st.Quantity,
			UnitCost:  st.UnitCost,
		})
	}
	return receipt
}
