package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisLockerExclusion(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, 50*time.Millisecond, time.Second)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrContention)

	release()
	again, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLease(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, 50*time.Millisecond, 100*time.Millisecond)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	// lease expires and someone else takes the key
	time.Sleep(150 * time.Millisecond)
	other, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	release()
	exists, err := client.Exists(ctx, redisLockPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	other()
}
