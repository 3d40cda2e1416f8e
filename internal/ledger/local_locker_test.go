package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

func TestNormalizeKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalizeKeys([]string{"c", "a", "", "b", "a"}))
	assert.Empty(t, normalizeKeys(nil))
}

func TestLocalLockerTimesOutWithContention(t *testing.T) {
	locker := NewLocalLocker(30 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "org-1")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(ctx, "org-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrContention)

	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Retryable())
}

func TestLocalLockerReleasesPartialAcquisition(t *testing.T) {
	locker := NewLocalLocker(30 * time.Millisecond)
	ctx := context.Background()

	holdB, err := locker.Acquire(ctx, "b")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "a", "b")
	require.ErrorIs(t, err, apperrors.ErrContention)

	// "a" must have been released when "b" timed out
	releaseA, err := locker.Acquire(ctx, "a")
	require.NoError(t, err)
	releaseA()
	holdB()
}

func TestLocalLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalLocker(30 * time.Millisecond)
	release, err := locker.Acquire(context.Background(), "x")
	require.NoError(t, err)
	release()
	release()

	again, err := locker.Acquire(context.Background(), "x")
	require.NoError(t, err)
	again()
}

func TestLocalLockerOppositeOrderPairsDoNotDeadlock(t *testing.T) {
	locker := NewLocalLocker(2 * time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "x", "y")
			if err != nil {
				errs <- err
				return
			}
			release()
		}()
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "y", "x")
			if err != nil {
				errs <- err
				return
			}
			release()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalLockerHonoursContextCancel(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithHeldSkipsHeldKeys(t *testing.T) {
	ctx := WithHeld(context.Background(), "a")
	ctx = WithHeld(ctx, "b")
	assert.Equal(t, []string{"c"}, missing(ctx, []string{"a", "b", "c"}))
	assert.Equal(t, []string{"a"}, missing(context.Background(), []string{"a"}))
}
