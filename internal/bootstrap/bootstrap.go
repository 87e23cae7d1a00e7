// Package bootstrap turns a config.Config into the running pieces shared by
// the server and cleoctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jcodog/Cleo-Dashboard-sub001/cache"
	redislock "github.com/jcodog/Cleo-Dashboard-sub001/cache/redis"
	"github.com/jcodog/Cleo-Dashboard-sub001/config"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/federation"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/storage"
	"github.com/jcodog/Cleo-Dashboard-sub001/mongodb"
	"github.com/jcodog/Cleo-Dashboard-sub001/mysql"
	"github.com/redis/go-redis/v9"
)

// Backend is a storage backend that can also report its health.
type Backend interface {
	domain.Store
	Ping(ctx context.Context) error
}

// OpenStore connects to the backend selected by cfg.StorageBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageTypeMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store, err := mongodb.NewStore(ctx, client, cfg.MongoDBName)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return store, nil

	case config.StorageTypeBBolt:
		store, err := storage.NewBBoltStore(cfg.BBoltPath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.StorageTypeMySQL:
		db, err := mysql.Open(ctx, mysqlConfig(cfg))
		if err != nil {
			return nil, err
		}
		store, err := mysql.NewStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
}

func mysqlConfig(cfg *config.Config) mysql.Config {
	return mysql.Config{
		Host:            cfg.MySQLHost,
		Port:            cfg.MySQLPort,
		User:            cfg.MySQLUser,
		Password:        cfg.MySQLPassword,
		Name:            cfg.MySQLName,
		MaxOpenConns:    cfg.MySQLMaxOpenConns,
		MaxIdleConns:    cfg.MySQLMaxIdleConns,
		ConnMaxLifetime: cfg.MySQLConnMaxLifetime,
		PingTimeout:     cfg.MySQLPingTimeout,
	}
}

// NewRefreshLocker builds the locker selected by cfg.RefreshLock. The returned
// func releases its resources and is never nil.
func NewRefreshLocker(ctx context.Context, cfg *config.Config) (credential.RefreshLocker, func(), error) {
	switch cfg.RefreshLock {
	case config.LockNone, "":
		return credential.NoopLocker{}, func() {}, nil

	case config.LockMemory:
		l := cache.NewMemoryRefreshLock(cfg.RefreshLockTTL)
		return l, l.Close, nil

	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		return redislock.NewRefreshLock(client, cfg.RedisPrefix, cfg.RefreshLockTTL), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported refresh lock %q", cfg.RefreshLock)
}

// NewProviders builds the Discord and Kick token clients from cfg.
func NewProviders(cfg *config.Config) *federation.Registry {
	return federation.NewDefaultRegistry(federation.ProvidersConfig{
		Discord: clientConfig(cfg.Discord),
		Kick:    clientConfig(cfg.Kick),
		Timeout: cfg.ProviderHTTPTimeout,
	})
}

func clientConfig(p config.ProviderConfig) federation.ClientConfig {
	return federation.ClientConfig{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     p.TokenURL,
	}
}
