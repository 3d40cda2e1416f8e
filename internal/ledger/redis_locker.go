package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

const (
	redisLockPrefix = "carbon-ledger:lock:org:"
	redisRetryDelay = 20 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds per-key leases in Redis so several API replicas share
// one exclusion domain.
type RedisLocker struct {
	client  redis.UniversalClient
	timeout time.Duration
	ttl     time.Duration
}

// NewRedisLocker builds a locker. ttl bounds how long a crashed holder can
// block a key and must exceed timeout.
func NewRedisLocker(client redis.UniversalClient, timeout, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, timeout: timeout, ttl: ttl}
}

// Backend implements Locker.
func (l *RedisLocker) Backend() string { return "redis" }

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return noopRelease, nil
	}

	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)
	acquired := make([]string, 0, len(keys))

	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisLockPrefix + acquired[i]}, token).Err()
		}
	}

	for _, key := range keys {
		if err := l.lockOne(ctx, key, token, deadline); err != nil {
			unlock()
			return nil, err
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

func (l *RedisLocker) lockOne(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, redisLockPrefix+key, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return apperrors.NewContention("organization", fmt.Errorf("redis lock %s: %w", key, err))
		}
		if ok {
			return nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return apperrors.NewContention("organization", errors.New("lock wait timed out on "+key))
		}
		if wait > redisRetryDelay {
			wait = redisRetryDelay
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
