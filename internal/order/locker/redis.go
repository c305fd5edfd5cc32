package locker

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-sales-service/internal/pkg/logger"
	"go.uber.org/zap"
)

const keyPrefix = "lock:order:"

type Config struct {
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

// RedisLocker guards an order across instances while a transition runs.
// The row lock taken by the transaction remains the source of truth.
type RedisLocker struct {
	rdb    *cache.RedisClient
	cfg    Config
	logger logger.ZapLogger
}

func NewRedisLocker(rdb *cache.RedisClient, cfg Config, log logger.ZapLogger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, cfg: cfg, logger: log}
}

func (l *RedisLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	key := keyPrefix + orderID
	lock, err := l.rdb.Obtain(ctx, key, l.cfg.TTL, l.cfg.Retries, l.cfg.Backoff)
	if errors.Is(err, cache.ErrLockNotObtained) {
		return nil, apperror.Conflict(err, "order.lock", "order is being changed by another request, retry")
	}
	if err != nil {
		return nil, apperror.Persistence(err, "order.lock", "failed to lock order")
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil {
			l.logger.Warn("failed to release order lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
