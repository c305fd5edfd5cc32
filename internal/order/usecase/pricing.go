package usecase

import (
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/order/dto"
	"github.com/fekuna/omnipos-sales-service/internal/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// line is an item input paired with the product it resolved to.
type line struct {
	input   dto.OrderItemInput
	product *model.Product
}

// priceOrder rebuilds the items and totals of o from lines. Line taxes are
// computed on the line nets; the order discount applies to the subtotal only.
func priceOrder(calc *tax.Calculator, o *model.Order, lines []line, client *model.Client) error {
	items := make([]model.OrderItem, 0, len(lines))
	taxes := make([]tax.ItemTax, 0, len(lines))
	subtotal := decimal.Zero

	for i, l := range lines {
		in := l.input
		it, err := calc.ComputeItemTax(l.product, in.Quantity, in.UnitPrice, in.DiscountAmount, client)
		if err != nil {
			return err
		}

		item := model.OrderItem{
			ID:             uuid.New().String(),
			OrderID:        o.ID,
			ProductName:    l.product.Name,
			Quantity:       in.Quantity,
			UnitPrice:      in.UnitPrice,
			DiscountAmount: in.DiscountAmount,
			GrossTotal:     in.Quantity.Mul(in.UnitPrice).Round(2),
			NetTotal:       it.Net.Round(2),
			ICMSRate:       it.Rates.ICMS,
			PISRate:        it.Rates.PIS,
			COFINSRate:     it.Rates.COFINS,
			ICMSAmount:     it.ICMS,
			PISAmount:      it.PIS,
			COFINSAmount:   it.COFINS,
			LineNumber:     i + 1,
		}
		if !l.product.Ephemeral {
			id := l.product.ID
			item.ProductID = &id
		}

		items = append(items, item)
		taxes = append(taxes, it)
		subtotal = subtotal.Add(item.NetTotal)
	}

	totals := tax.ComputeOrderTax(taxes)
	discount := subtotal.Mul(o.DiscountPercent).Div(hundred).Round(2)

	o.Items = items
	o.DiscountAmount = discount
	o.Subtotal = subtotal.Sub(discount)
	o.ICMSTotal = totals.ICMS
	o.PISTotal = totals.PIS
	o.COFINSTotal = totals.COFINS
	o.TaxTotal = totals.Total
	o.TotalAmount = o.Subtotal.Add(totals.Total)
	return nil
}

// requestedStock sums the quantity each tracked product is asked for.
func requestedStock(lines []line) (map[string]decimal.Decimal, []string) {
	requested := map[string]decimal.Decimal{}
	var order []string
	for _, l := range lines {
		if l.product.Ephemeral {
			continue
		}
		id := l.product.ID
		if _, seen := requested[id]; !seen {
			order = append(order, id)
		}
		requested[id] = requested[id].Add(l.input.Quantity)
	}
	return requested, order
}
