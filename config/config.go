package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageType defines the type of storage backend to use.
type StorageType string

const (
	StorageTypeMongoDB StorageType = "mongodb"
	StorageTypeBBolt   StorageType = "bbolt"
	StorageTypeMySQL   StorageType = "mysql"
)

// LockType selects how concurrent refreshes of one credential are serialized.
type LockType string

const (
	LockNone   LockType = "none"
	LockMemory LockType = "memory"
	LockRedis  LockType = "redis"
)

// ProviderConfig holds one provider's OAuth application credentials.
type ProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
}

// Config holds all configuration for the credential service and cleoctl.
type Config struct {
	HTTPAddr     string `mapstructure:"http_addr"`
	LogLevel     string `mapstructure:"log_level"`
	LogPretty    bool   `mapstructure:"log_pretty"`
	UserIDHeader string `mapstructure:"user_id_header"`

	StorageBackend StorageType `mapstructure:"storage_backend"`
	MongoURI       string      `mapstructure:"mongo_uri"`
	MongoDBName    string      `mapstructure:"mongo_db_name"`
	BBoltPath      string      `mapstructure:"bbolt_path"`

	MySQLHost            string        `mapstructure:"mysql_host"`
	MySQLPort            int           `mapstructure:"mysql_port"`
	MySQLUser            string        `mapstructure:"mysql_user"`
	MySQLPassword        string        `mapstructure:"mysql_password"`
	MySQLName            string        `mapstructure:"mysql_name"`
	MySQLMaxOpenConns    int           `mapstructure:"mysql_max_open_conns"`
	MySQLMaxIdleConns    int           `mapstructure:"mysql_max_idle_conns"`
	MySQLConnMaxLifetime time.Duration `mapstructure:"mysql_conn_max_lifetime"`
	MySQLPingTimeout     time.Duration `mapstructure:"mysql_ping_timeout"`

	RefreshLock    LockType      `mapstructure:"refresh_lock"`
	RefreshLockTTL time.Duration `mapstructure:"refresh_lock_ttl"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`

	ProviderHTTPTimeout time.Duration  `mapstructure:"provider_http_timeout"`
	Discord             ProviderConfig `mapstructure:"discord"`
	Kick                ProviderConfig `mapstructure:"kick"`

	OtelServiceName string `mapstructure:"otel_service_name"`
}

// LoadConfig reads cleo.yaml (or configFile when set), then CLEO_* environment
// variables, on top of the defaults. Nested keys map to env vars with "_",
// so discord.client_id is CLEO_DISCORD_CLIENT_ID.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cleo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cleo/")
		v.AddConfigPath("$HOME/.cleo")
	}

	v.SetEnvPrefix("CLEO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key needs a default, otherwise AutomaticEnv values are ignored by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("user_id_header", "X-Cleo-User-ID")

	v.SetDefault("storage_backend", string(StorageTypeMongoDB))
	v.SetDefault("mongo_uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo_db_name", "cleo")
	v.SetDefault("bbolt_path", "data/cleo.db")

	v.SetDefault("mysql_host", "localhost")
	v.SetDefault("mysql_port", 3306)
	v.SetDefault("mysql_user", "cleo")
	v.SetDefault("mysql_password", "")
	v.SetDefault("mysql_name", "cleo")
	v.SetDefault("mysql_max_open_conns", 10)
	v.SetDefault("mysql_max_idle_conns", 5)
	v.SetDefault("mysql_conn_max_lifetime", "30m")
	v.SetDefault("mysql_ping_timeout", "5s")

	v.SetDefault("refresh_lock", string(LockNone))
	v.SetDefault("refresh_lock_ttl", "15s")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "cleo")

	v.SetDefault("provider_http_timeout", "10s")
	v.SetDefault("discord.client_id", "")
	v.SetDefault("discord.client_secret", "")
	v.SetDefault("discord.token_url", "")
	v.SetDefault("kick.client_id", "")
	v.SetDefault("kick.client_secret", "")
	v.SetDefault("kick.token_url", "")

	v.SetDefault("otel_service_name", "cleo-credentials")
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageTypeMongoDB, StorageTypeBBolt, StorageTypeMySQL:
	default:
		return fmt.Errorf("invalid storage_backend %q", c.StorageBackend)
	}
	switch c.RefreshLock {
	case LockNone, LockMemory, LockRedis:
	default:
		return fmt.Errorf("invalid refresh_lock %q", c.RefreshLock)
	}
	if c.RefreshLock != LockNone && c.RefreshLockTTL <= 0 {
		return errors.New("refresh_lock_ttl must be positive")
	}
	return nil
}
