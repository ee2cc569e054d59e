package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T, timeout time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocker(client, RedisLockOptions{
		Timeout:    timeout,
		Expiry:     5 * time.Second,
		RetryDelay: 10 * time.Millisecond,
	}), server
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	locker, server := newTestRedisLocker(t, 200*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "account:a", "ledger:platform-fee:USD")
	require.NoError(t, err)
	assert.True(t, server.Exists(redisKeyPrefix+"account:a"))
	assert.True(t, server.Exists(redisKeyPrefix+"ledger:platform-fee:USD"))

	unlock()
	assert.False(t, server.Exists(redisKeyPrefix+"account:a"))
	assert.False(t, server.Exists(redisKeyPrefix+"ledger:platform-fee:USD"))
}

func TestRedisLockerContentionIsBusy(t *testing.T) {
	locker, server := newTestRedisLocker(t, 100*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Acquire(ctx, "account:a")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Acquire(ctx, "account:0", "account:a")
	assert.ErrorIs(t, err, domain.ErrResourceBusy)
	assert.False(t, server.Exists(redisKeyPrefix+"account:0"))
}

func TestRedisLockerUnreachableIsBusy(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	client := goredislib.NewClient(&goredislib.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client, RedisLockOptions{
		Timeout:    50 * time.Millisecond,
		Expiry:     time.Second,
		RetryDelay: 10 * time.Millisecond,
	})

	_, err = locker.Acquire(context.Background(), "account:a")
	assert.ErrorIs(t, err, domain.ErrResourceBusy)
}
