package lease

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusiveUntilRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	l, err := locker.Acquire(ctx, ServerKey("s1"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "server:s1", l.Key())
	assert.True(t, locker.Held("server:s1"))

	_, err = locker.Acquire(ctx, ServerKey("s1"), time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	other, err := locker.Acquire(ctx, ServerKey("s2"), time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx), "release is idempotent")
	assert.False(t, locker.Held("server:s1"))

	_, err = locker.Acquire(ctx, ServerKey("s1"), time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, UserKey("alice"), time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := locker.Acquire(ctx, UserKey("alice"), time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	assert.ErrorIs(t, stale.Release(ctx), ErrLeaseLost)
	assert.True(t, locker.Held(UserKey("alice")), "stale release must not drop the new holder")
	require.NoError(t, fresh.Release(ctx))
}

func TestMemoryLocker_ConcurrentAcquire(t *testing.T) {
	locker := NewMemoryLocker()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(context.Background(), "k", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryLocker().Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
