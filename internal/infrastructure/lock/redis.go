package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ledger:rebuild:"

// RedisRangeLocker holds one redislock key per calendar day of the range, so
// overlapping ranges contend on their shared days across every instance.
type RedisRangeLocker struct {
	locker    *redislock.Client
	ttl       time.Duration
	keyPrefix string
}

// NewRedisRangeLocker creates a locker over an existing Redis client.
// Keys expire after ttl if the holder dies without releasing them.
func NewRedisRangeLocker(client redis.UniversalClient, ttl time.Duration) *RedisRangeLocker {
	return &RedisRangeLocker{
		locker:    redislock.New(client),
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
	}
}

// Lock obtains every day key of r in ascending order. If any day is taken the
// keys obtained so far are released and ErrRangeLocked is returned. Ranges
// longer than ledger.MaxRebuildDays are refused before touching Redis.
func (l *RedisRangeLocker) Lock(ctx context.Context, r ledger.DateRange) (Release, error) {
	if r.Days() > ledger.MaxRebuildDays {
		return nil, shared.InvalidArgumentError("lock of %s covers %d days, at most %d", r, r.Days(), ledger.MaxRebuildDays)
	}
	var held []*redislock.Lock
	releaseAll := func(ctx context.Context) error {
		var errs []error
		for _, lk := range held {
			if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				errs = append(errs, err)
			}
		}
		held = nil
		return errors.Join(errs...)
	}

	for day := r.From; !day.After(r.To); day = day.AddDate(0, 0, 1) {
		key := l.keyPrefix + day.Format(businessday.DateLayout)
		lk, err := l.locker.Obtain(ctx, key, l.ttl, nil)
		if err != nil {
			_ = releaseAll(context.WithoutCancel(ctx))
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, shared.NewDomainError(shared.CodeRangeLocked,
					fmt.Sprintf("rebuild of %s overlaps a running rebuild on %s", r, day.Format(businessday.DateLayout)))
			}
			return nil, fmt.Errorf("obtain rebuild lock %s: %w", key, err)
		}
		held = append(held, lk)
	}
	return releaseAll, nil
}
