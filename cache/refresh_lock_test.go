package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRefreshLock_Exclusive(t *testing.T) {
	lock := NewMemoryRefreshLock(time.Minute)
	defer lock.Close()
	lock.pollInterval = time.Millisecond

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.Acquire(context.Background(), "refresh:u1:discord")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside.Load())
	assert.Equal(t, 0, lock.Held())
}

func TestMemoryRefreshLock_ContextCanceled(t *testing.T) {
	lock := NewMemoryRefreshLock(time.Minute)
	defer lock.Close()

	release, err := lock.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lock.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryRefreshLock_LeaseExpires(t *testing.T) {
	lock := NewMemoryRefreshLock(20 * time.Millisecond)
	defer lock.Close()
	lock.pollInterval = 5 * time.Millisecond

	staleRelease, err := lock.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := lock.Acquire(ctx, "k")
	require.NoError(t, err)

	// The expired holder must not drop the new lease.
	staleRelease()
	assert.Equal(t, 1, lock.Held())
	release()
	assert.Equal(t, 0, lock.Held())
}

func TestMemoryRefreshLock_IndependentKeys(t *testing.T) {
	lock := NewMemoryRefreshLock(time.Minute)
	defer lock.Close()

	r1, err := lock.Acquire(context.Background(), "refresh:u1:discord")
	require.NoError(t, err)
	r2, err := lock.Acquire(context.Background(), "refresh:u1:kick")
	require.NoError(t, err)
	assert.Equal(t, 2, lock.Held())
	r1()
	r2()
}
