package credential

import (
	"context"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// RefreshLocker serializes refresh-and-write for one (user, provider) pair.
// Leases expire on their own, so a slow provider cannot hold the lock forever.
type RefreshLocker interface {
	// Acquire blocks until the lease for key is held or ctx is done.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LockKey names the lease guarding one credential.
func LockKey(userID string, provider domain.ProviderID) string {
	return "refresh:" + userID + ":" + string(provider)
}

// NoopLocker never blocks. Concurrent refreshes of one credential then race
// and the last write wins.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
