package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultPollInterval is how often a waiting Acquire retries.
const DefaultPollInterval = 25 * time.Millisecond

// MemoryRefreshLock hands out expiring leases inside one process. The value
// stored under a key is the owner token of the current holder.
type MemoryRefreshLock struct {
	mu           sync.Mutex
	leases       *ttlcache.Cache[string, string]
	ttl          time.Duration
	pollInterval time.Duration
}

// NewMemoryRefreshLock creates the lock table and starts its expiry loop; call Close to stop it.
func NewMemoryRefreshLock(ttl time.Duration) *MemoryRefreshLock {
	leases := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go leases.Start()

	return &MemoryRefreshLock{
		leases:       leases,
		ttl:          ttl,
		pollInterval: DefaultPollInterval,
	}
}

// Acquire waits until key is free or its lease has expired.
func (l *MemoryRefreshLock) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		if l.tryAcquire(key, owner) {
			return func() { l.release(key, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *MemoryRefreshLock) tryAcquire(key, owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, found := l.leases.GetOrSet(key, owner, ttlcache.WithTTL[string, string](l.ttl))
	return !found
}

// release only drops the lease if it still belongs to owner.
func (l *MemoryRefreshLock) release(key, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.leases.Get(key)
	if item != nil && item.Value() == owner {
		l.leases.Delete(key)
	}
}

// Held reports the number of unexpired leases.
func (l *MemoryRefreshLock) Held() int {
	l.leases.DeleteExpired()
	return l.leases.Len()
}

func (l *MemoryRefreshLock) Close() {
	l.leases.Stop()
}
