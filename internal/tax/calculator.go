package tax

import (
	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ItemTax is the tax of one sale line. Amounts are rounded to cents
// independently; Total is their sum.
type ItemTax struct {
	Rates  Rates           `json:"rates"`
	Net    decimal.Decimal `json:"net"`
	ICMS   decimal.Decimal `json:"icms"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	Total  decimal.Decimal `json:"total"`
}

type OrderTax struct {
	ICMS   decimal.Decimal `json:"icms"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	Total  decimal.Decimal `json:"total"`
}

type Simulation struct {
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	Rates            Rates           `json:"rates"`
	ICMS             decimal.Decimal `json:"icms"`
	PIS              decimal.Decimal `json:"pis"`
	COFINS           decimal.Decimal `json:"cofins"`
	TotalTax         decimal.Decimal `json:"total_tax"`
	NetAmount        decimal.Decimal `json:"net_amount"` // Gross minus taxes
	EffectiveTaxRate decimal.Decimal `json:"effective_tax_rate"`
}

type Calculator struct {
	resolver *Resolver
}

func NewCalculator(resolver *Resolver) *Calculator {
	return &Calculator{resolver: resolver}
}

// ComputeItemTax taxes quantity*unitPrice - discount.
func (c *Calculator) ComputeItemTax(product *model.Product, quantity, unitPrice, discount decimal.Decimal, client *model.Client) (ItemTax, error) {
	net := quantity.Mul(unitPrice).Sub(discount)
	if net.IsNegative() {
		return ItemTax{}, apperror.Invalid("tax.compute_item", "net amount of %s is negative: %s", product.Name, net.StringFixed(2))
	}

	rates := c.resolver.Resolve(product, client)
	it := ItemTax{
		Rates:  rates,
		Net:    net,
		ICMS:   Amount(net, rates.ICMS),
		PIS:    Amount(net, rates.PIS),
		COFINS: Amount(net, rates.COFINS),
	}
	it.Total = it.ICMS.Add(it.PIS).Add(it.COFINS)
	return it, nil
}

// ComputeOrderTax sums already-rounded line amounts.
func ComputeOrderTax(items []ItemTax) OrderTax {
	var t OrderTax
	for _, it := range items {
		t.ICMS = t.ICMS.Add(it.ICMS)
		t.PIS = t.PIS.Add(it.PIS)
		t.COFINS = t.COFINS.Add(it.COFINS)
	}
	t.Total = t.ICMS.Add(t.PIS).Add(t.COFINS)
	return t
}

func (c *Calculator) Simulate(product *model.Product, quantity, unitPrice decimal.Decimal, client *model.Client) (Simulation, error) {
	it, err := c.ComputeItemTax(product, quantity, unitPrice, decimal.Zero, client)
	if err != nil {
		return Simulation{}, err
	}

	sim := Simulation{
		GrossAmount:      it.Net,
		Rates:            it.Rates,
		ICMS:             it.ICMS,
		PIS:              it.PIS,
		COFINS:           it.COFINS,
		TotalTax:         it.Total,
		NetAmount:        it.Net.Sub(it.Total),
		EffectiveTaxRate: decimal.Zero,
	}
	if it.Net.IsPositive() {
		sim.EffectiveTaxRate = it.Total.Div(it.Net).Mul(hundred).Round(2)
	}
	return sim, nil
}

// Amount is base*rate% rounded half-up to cents. base is never negative here,
// so rounding half away from zero is half-up.
func Amount(base, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return base.Mul(rate.Shift(-2)).Round(2)
}
