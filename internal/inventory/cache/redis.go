package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix   = "inventory:stock:"
	fenceSuffix = ":fence"
)

// setIfCurrent writes KEYS[1] unless the fence in KEYS[2] is newer than the
// view's version. Versions are Unix microseconds, exact in a Lua number.
var setIfCurrent = redis.NewScript(`
local fence = redis.call('GET', KEYS[2])
if fence and tonumber(fence) > tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// dropAndFence deletes KEYS[1] and raises the fence in KEYS[2] to ARGV[1].
var dropAndFence = redis.NewScript(`
redis.call('DEL', KEYS[1])
local fence = redis.call('GET', KEYS[2])
if not fence or tonumber(fence) < tonumber(ARGV[1]) then
  redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

// StockCache stores StockViews in Redis. Failures are logged and treated as
// misses so the database stays the source of truth.
type StockCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ZapLogger
}

func NewStockCache(rdb *redis.Client, ttl time.Duration, log logger.ZapLogger) *StockCache {
	return &StockCache{rdb: rdb, ttl: ttl, logger: log}
}

func (c *StockCache) Get(ctx context.Context, productID string) (*model.StockView, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+productID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("stock cache read failed", zap.String("product_id", productID), zap.Error(err))
		}
		return nil, false
	}

	var view model.StockView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.Warn("stock cache entry is corrupt", zap.String("product_id", productID), zap.Error(err))
		return nil, false
	}
	return &view, true
}

func (c *StockCache) Set(ctx context.Context, view *model.StockView) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	keys := []string{keyPrefix + view.ProductID, keyPrefix + view.ProductID + fenceSuffix}
	written, err := setIfCurrent.Run(ctx, c.rdb, keys, raw, view.UpdatedAt.UnixMicro(), c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("stock cache write failed", zap.String("product_id", view.ProductID), zap.Error(err))
		return
	}
	if written == 0 {
		c.logger.Debug("stale stock view not cached", zap.String("product_id", view.ProductID))
	}
}

func (c *StockCache) Invalidate(ctx context.Context, productID string, version time.Time) {
	keys := []string{keyPrefix + productID, keyPrefix + productID + fenceSuffix}
	if err := dropAndFence.Run(ctx, c.rdb, keys, version.UnixMicro(), c.ttl.Milliseconds()).Err(); err != nil {
		c.logger.Warn("stock cache invalidation failed", zap.String("product_id", productID), zap.Error(err))
	}
}
