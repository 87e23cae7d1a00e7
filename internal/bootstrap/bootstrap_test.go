package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/cache"
	"github.com/jcodog/Cleo-Dashboard-sub001/config"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreBBolt(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StorageBackend: config.StorageTypeBBolt,
		BBoltPath:      filepath.Join(t.TempDir(), "data", "cleo.db"),
	}

	store, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	assert.NoError(t, store.Ping(ctx))
	_, err = store.Find(ctx, "nobody", domain.ProviderDiscord)
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestOpenStoreUnsupported(t *testing.T) {
	store, err := OpenStore(context.Background(), &config.Config{StorageBackend: "sqlite"})
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewRefreshLocker(t *testing.T) {
	ctx := context.Background()

	locker, closeFn, err := NewRefreshLocker(ctx, &config.Config{RefreshLock: config.LockNone})
	require.NoError(t, err)
	assert.IsType(t, credential.NoopLocker{}, locker)
	closeFn()

	locker, closeFn, err = NewRefreshLocker(ctx, &config.Config{RefreshLock: config.LockMemory, RefreshLockTTL: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryRefreshLock{}, locker)
	closeFn()

	_, _, err = NewRefreshLocker(ctx, &config.Config{RefreshLock: "zookeeper"})
	assert.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	reg := NewProviders(&config.Config{
		Discord: config.ProviderConfig{ClientID: "d", ClientSecret: "ds"},
		Kick:    config.ProviderConfig{ClientID: "k", ClientSecret: "ks", TokenURL: "http://127.0.0.1:1/token"},
	})

	assert.Equal(t, []domain.ProviderID{domain.ProviderDiscord, domain.ProviderKick}, reg.Providers())

	_, err := reg.Get("twitch")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}
