package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// LocalLocker serializes keys inside one process with one-slot semaphores.
type LocalLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker returns a locker that waits at most timeout for all keys.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{timeout: timeout, slots: make(map[string]chan struct{})}
}

// Backend implements Locker.
func (l *LocalLocker) Backend() string { return "local" }

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return noopRelease, nil
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	acquired := make([]chan struct{}, 0, len(keys))
	unlock := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-acquired[i]
		}
	}

	for _, key := range keys {
		slot := l.slot(key)
		select {
		case slot <- struct{}{}:
			acquired = append(acquired, slot)
		case <-timer.C:
			unlock()
			return nil, apperrors.NewContention("organization", errors.New("lock wait timed out on "+key))
		case <-ctx.Done():
			unlock()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}
