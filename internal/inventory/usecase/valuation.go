package usecase

import "github.com/shopspring/decimal"

// costPlaces is the precision the average cost is stored with.
const costPlaces = 4

// WeightedAverage folds an entry of q1 units at c1 into a stock of q0 units
// at c0.
func WeightedAverage(q0, c0, q1, c1 decimal.Decimal) decimal.Decimal {
	if !q0.IsPositive() {
		return c1.Round(costPlaces)
	}
	if !q1.IsPositive() {
		return c0
	}
	total := q0.Mul(c0).Add(q1.Mul(c1))
	return total.DivRound(q0.Add(q1), costPlaces+4).Round(costPlaces)
}

// entryCost is the average cost after an entry. With keepWithoutCost set, an
// entry that carries no unit cost leaves the average untouched.
func entryCost(q0, c0, q1, c1 decimal.Decimal, keepWithoutCost bool) decimal.Decimal {
	if keepWithoutCost && !c1.IsPositive() {
		return c0
	}
	return WeightedAverage(q0, c0, q1, c1)
}
