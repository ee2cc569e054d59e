package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "escrow-engine:lock:"

type RedisLockOptions struct {
	// Timeout bounds the total wait for all keys of one Acquire.
	Timeout time.Duration
	// Expiry is the lease; it must exceed the longest unit of work.
	Expiry     time.Duration
	RetryDelay time.Duration
}

func DefaultRedisLockOptions() RedisLockOptions {
	return RedisLockOptions{
		Timeout:    5 * time.Second,
		Expiry:     30 * time.Second,
		RetryDelay: 50 * time.Millisecond,
	}
}

// RedisLocker shares account locks between engine instances through redsync.
type RedisLocker struct {
	redsync *redsync.Redsync
	opts    RedisLockOptions
}

func NewRedisLocker(client goredislib.UniversalClient, opts RedisLockOptions) *RedisLocker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRedisLockOptions().Timeout
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultRedisLockOptions().Expiry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRedisLockOptions().RetryDelay
	}

	return &RedisLocker{
		redsync: redsync.New(goredis.NewPool(client)),
		opts:    opts,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	tries := int(l.opts.Timeout/l.opts.RetryDelay) + 1
	held := make([]*redsync.Mutex, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			unlockCtx, cancel := context.WithTimeout(context.Background(), l.opts.Timeout)
			if ok, err := held[i].UnlockContext(unlockCtx); !ok || err != nil {
				logger.Warn("redis locker release failed", logger.Fields{
					"key":   held[i].Name(),
					"ok":    ok,
					"error": fmt.Sprint(err),
				})
			}
			cancel()
		}
	}

	for _, key := range ordered {
		mutex := l.redsync.NewMutex(
			redisKeyPrefix+key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
		)

		if err := mutex.LockContext(waitCtx); err != nil {
			release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("redis locker acquire failed", logger.Fields{
				"key":       key,
				"timeout":   l.opts.Timeout.String(),
				"contended": errors.Is(err, redsync.ErrFailed),
				"error":     err.Error(),
			})
			return nil, fmt.Errorf("%w: lock %s: %v", domain.ErrResourceBusy, key, err)
		}
		held = append(held, mutex)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
