package tax

import (
	"testing"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalculator() *Calculator {
	return NewCalculator(NewResolver(NewRateTable(DefaultTableConfig())))
}

func TestAmount_RoundsEachTaxIndependently(t *testing.T) {
	tests := []struct {
		base, rate, want string
	}{
		{"10.005", "18", "1.80"}, // 1.8009
		{"100", "1.65", "1.65"},
		{"100", "7.60", "7.60"},
		{"0.25", "18", "0.05"}, // 0.045 rounds up
		{"3.33", "0", "0"},
	}
	for _, tt := range tests {
		got := Amount(dec(tt.base), dec(tt.rate))
		assert.True(t, dec(tt.want).Equal(got), "%s @ %s%% = %s", tt.base, tt.rate, got)
	}
}

func TestCalculator_ComputeItemTax(t *testing.T) {
	c := newCalculator()
	p := &model.Product{Name: "Widget", NCM: "12345678", CST: "00"}

	it, err := c.ComputeItemTax(p, dec("2"), dec("50"), dec("10"), &model.Client{State: "SP"})
	require.NoError(t, err)

	assert.True(t, dec("90").Equal(it.Net))
	assert.True(t, dec("16.20").Equal(it.ICMS))
	assert.True(t, dec("1.49").Equal(it.PIS))   // 1.485
	assert.True(t, dec("6.84").Equal(it.COFINS)) // 6.84
	assert.True(t, dec("24.53").Equal(it.Total))
}

func TestCalculator_ComputeItemTax_NegativeNet(t *testing.T) {
	c := newCalculator()
	_, err := c.ComputeItemTax(&model.Product{Name: "Widget"}, dec("1"), dec("5"), dec("6"), nil)
	assert.True(t, apperror.Is(err, apperror.EVALIDATION))
}

func TestCalculator_EphemeralProduct(t *testing.T) {
	c := newCalculator()
	p := (&model.EphemeralProduct{Name: "Walk-in", CST: "06"}).Product()

	it, err := c.ComputeItemTax(p, dec("1"), dec("10"), decimal.Zero, &model.Client{State: "BA"})
	require.NoError(t, err)
	assert.True(t, dec("0.70").Equal(it.ICMS))
	assert.True(t, it.PIS.IsZero())
	assert.True(t, it.COFINS.IsZero())
}

func TestComputeOrderTax_SumsRoundedLines(t *testing.T) {
	c := newCalculator()
	p := &model.Product{CST: "00"}

	a, err := c.ComputeItemTax(p, dec("1"), dec("0.25"), decimal.Zero, nil)
	require.NoError(t, err)
	b, err := c.ComputeItemTax(p, dec("1"), dec("0.25"), decimal.Zero, nil)
	require.NoError(t, err)

	total := ComputeOrderTax([]ItemTax{a, b})
	// each line rounds 0.045 to 0.05 before summing
	assert.True(t, dec("0.10").Equal(total.ICMS))
	assert.True(t, total.Total.Equal(total.ICMS.Add(total.PIS).Add(total.COFINS)))
}

func TestCalculator_Simulate(t *testing.T) {
	c := newCalculator()
	p := &model.Product{CST: "00"}

	sim, err := c.Simulate(p, dec("1"), dec("100"), &model.Client{State: "RJ"})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(sim.GrossAmount))
	assert.True(t, dec("12").Equal(sim.ICMS))
	assert.True(t, dec("21.25").Equal(sim.TotalTax))
	assert.True(t, dec("78.75").Equal(sim.NetAmount))
	assert.True(t, dec("21.25").Equal(sim.EffectiveTaxRate))

	zero, err := c.Simulate(p, dec("1"), decimal.Zero, nil)
	require.NoError(t, err)
	assert.True(t, zero.EffectiveTaxRate.IsZero())
}
