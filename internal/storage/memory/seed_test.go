package memory

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_FromFixture(t *testing.T) {
	fixture, err := LoadFixture("testdata/seed.json")
	require.NoError(t, err)

	s := NewStore()
	receipt := s.Seed(fixture)
	require.NotNil(t, receipt)
	assert.Len(t, receipt.Items, 2)

	ctx := context.Background()
	cl, err := s.Clients().FindByID(ctx, "c-rj")
	require.NoError(t, err)
	require.NotNil(t, cl)
	assert.Equal(t, "RJ", cl.State)

	uc := usecase.NewInventoryUseCase(s.Inventory(), s.Products(), s.TxManager(), nil,
		telemetry.NewSalesMetrics(prometheus.NewRegistry()), logger.NewNop())
	_, err = uc.RecordReceipt(ctx, receipt)
	require.NoError(t, err)

	// A second load of the same fixture books no stock
	again, err := uc.RecordReceipt(ctx, s.Seed(fixture))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	view, err := uc.GetCurrent(ctx, "p-rice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(view.QuantityAvailable))
	assert.True(t, decimal.RequireFromString("19.50").Equal(view.WeightedAverageCost))
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture("testdata/missing.json")
	assert.Error(t, err)
}
