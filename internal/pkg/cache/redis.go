package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type RedisClient struct {
	Client *redis.Client
	locker *redislock.Client
}

// ErrLockNotObtained is returned when a lock is still held by someone else
// after all retries.
var ErrLockNotObtained = redislock.ErrNotObtained

func NewRedisClient(cfg *Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &RedisClient{Client: rdb, locker: redislock.New(rdb)}, nil
}

// Obtain takes the lock at key, retrying with a linear backoff.
func (r *RedisClient) Obtain(ctx context.Context, key string, ttl time.Duration, retries int, backoff time.Duration) (*redislock.Lock, error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	}
	lock, err := r.locker.Obtain(ctx, key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	return lock, err
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
