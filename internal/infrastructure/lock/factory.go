package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/profitledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRangeLocker builds the rebuild locker from configuration. With Redis
// enabled and reachable it returns a RedisRangeLocker; otherwise it logs a
// warning and falls back to an in-process locker. The returned close func
// releases the Redis client, if any.
func NewRangeLocker(cfg config.RedisConfig, logger *zap.Logger) (RangeLocker, func() error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		logger.Info("using in-process rebuild lock")
		return NewLocalRangeLocker(), noop
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-process rebuild lock. "+
			"Concurrent rebuilds from other instances will not be serialized.",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewLocalRangeLocker(), noop
	}

	logger.Info("using Redis rebuild lock", zap.String("addr", cfg.Addr()), zap.Duration("ttl", cfg.LockTTL))
	return NewRedisRangeLocker(client, cfg.LockTTL), client.Close
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
