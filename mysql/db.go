package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// Config describes the MySQL connection.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	return OpenDSN(ctx, buildDSN(cfg), cfg)
}

// OpenDSN is Open with an explicit DSN; pool settings still come from cfg.
// Time parsing is forced on since the store scans DATETIME columns into time.Time.
func OpenDSN(ctx context.Context, dsn string, cfg Config) (*sql.DB, error) {
	mysqlCfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mysqlCfg.ParseTime = true
	mysqlCfg.Loc = time.UTC

	db, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		log.Error().Err(err).Msg("Failed to ping MySQL")
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func buildDSN(cfg Config) string {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.User
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mysqlCfg.DBName = cfg.Name
	mysqlCfg.ParseTime = true
	mysqlCfg.Loc = time.UTC
	mysqlCfg.AllowNativePasswords = true
	mysqlCfg.Params = map[string]string{
		"charset": "utf8mb4",
	}

	return mysqlCfg.FormatDSN()
}
