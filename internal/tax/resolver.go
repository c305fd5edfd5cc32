package tax

import (
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

// Rates are percentages: 18 means 18%.
type Rates struct {
	ICMS   decimal.Decimal `json:"icms"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
}

type Resolver struct {
	table *RateTable
}

func NewResolver(table *RateTable) *Resolver {
	return &Resolver{table: table}
}

// Resolve picks the rates for selling product to client. client may be nil,
// in which case the sale is treated as in-state.
func (r *Resolver) Resolve(product *model.Product, client *model.Client) Rates {
	return Rates{
		ICMS:   r.icms(product, client),
		PIS:    r.federal(product.PISRate, r.table.pis, product.CST),
		COFINS: r.federal(product.COFINSRate, r.table.cofins, product.CST),
	}
}

func (r *Resolver) icms(product *model.Product, client *model.Client) decimal.Decimal {
	if !product.ICMSRate.IsZero() {
		return product.ICMSRate
	}
	if rate, ok := r.table.reducedNCM[product.NCM]; ok {
		return rate
	}
	if client == nil {
		return r.table.inStateICMS
	}
	uf := normalizeUF(client.State)
	if uf == "" || uf == r.table.homeState {
		return r.table.inStateICMS
	}
	if r.table.pfUsesInternalRate && client.PersonType == model.PersonTypeIndividual {
		return r.table.inStateICMS
	}
	if rate, ok := r.table.interstateICMS[uf]; ok {
		return rate
	}
	return r.table.interstateFallback
}

func (r *Resolver) federal(override, fallback decimal.Decimal, cst string) decimal.Decimal {
	if !override.IsZero() {
		return override
	}
	if _, exempt := r.table.exemptCST[cst]; exempt {
		return decimal.Zero
	}
	return fallback
}
