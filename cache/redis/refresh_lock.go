package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only when it still holds the caller's owner token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RefreshLock is a lease lock shared by every process using the same Redis.
type RefreshLock struct {
	client       *redis.Client
	prefix       string // Optional prefix for keys
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRefreshLock creates a [RefreshLock]. Leases expire after ttl even if never released.
func NewRefreshLock(client *redis.Client, prefix string, ttl time.Duration) *RefreshLock {
	return &RefreshLock{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
	}
}

// redisKey returns the Redis key for a given lock name
func (l *RefreshLock) redisKey(key string) string {
	if l.prefix == "" {
		return "lock:" + key
	}
	return fmt.Sprintf("%s:lock:%s", l.prefix, key)
}

// Acquire polls SET NX PX until it wins or ctx is done.
func (l *RefreshLock) Acquire(ctx context.Context, key string) (func(), error) {
	rkey := l.redisKey(key)
	owner := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, rkey, owner, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock in Redis: %w", err)
		}
		if ok {
			return func() { l.release(rkey, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs detached from the request context so a canceled request still frees the lease.
func (l *RefreshLock) release(rkey, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{rkey}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", rkey).Msg("Failed to release refresh lock; it will expire")
	}
}
