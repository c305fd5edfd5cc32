package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Empty(t, cfg.Storage.SeedFile)
	assert.Equal(t, "PV", cfg.Order.NumberPrefix)
	assert.False(t, cfg.Order.AllowCancelInvoiced)
	assert.Equal(t, "SP", cfg.Tax.HomeState)
	assert.True(t, decimal.NewFromInt(18).Equal(cfg.Tax.InStateICMS))
	assert.Len(t, cfg.Tax.InterstateICMS, 5)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("TAX_INTERSTATE_RATES", "RJ:12, BA:7,bogus,GO:x")
	t.Setenv("TAX_EXEMPT_CST", "06, 07,")
	t.Setenv("TAX_PIS", "0.65")
	t.Setenv("ORDER_ALLOW_CANCEL_INVOICED", "true")
	t.Setenv("REDIS_STOCK_TTL", "1m")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("STORAGE_SEED_FILE", "testdata/seed.json")

	cfg := LoadEnv()

	require.Len(t, cfg.Tax.InterstateICMS, 2)
	assert.True(t, decimal.NewFromInt(7).Equal(cfg.Tax.InterstateICMS["BA"]))
	assert.Equal(t, []string{"06", "07"}, cfg.Tax.ExemptCST)
	assert.True(t, decimal.RequireFromString("0.65").Equal(cfg.Tax.PIS))
	assert.True(t, cfg.Order.AllowCancelInvoiced)
	assert.Equal(t, time.Minute, cfg.Redis.StockTTL)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "testdata/seed.json", cfg.Storage.SeedFile)

	table := cfg.Tax.TableConfig()
	assert.Equal(t, cfg.Tax.ExemptCST, table.ExemptCST)
}
