package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds the connection pool settings of one namespace handle.
// Zero durations mean connections are never closed for age.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings for a driver.
//
// A SQLite file accepts one writer at a time, so its handle keeps a single
// connection and concurrent dispatches queue in the pool instead of failing
// with "database is locked". Postgres namespaces share one server, so each
// gets a small pool.
func DefaultPoolConfig(driver string) PoolConfig {
	if driver == DriverSQLite {
		return PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}
	}
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// PoolOption overrides one pool setting.
type PoolOption func(*PoolConfig)

// MaxOpenConns limits open connections per namespace. 0 means unlimited.
func MaxOpenConns(n int) PoolOption {
	return func(c *PoolConfig) { c.MaxOpenConns = n }
}

// MaxIdleConns limits idle connections per namespace.
func MaxIdleConns(n int) PoolOption {
	return func(c *PoolConfig) { c.MaxIdleConns = n }
}

// ConnMaxLifetime closes connections older than d.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return func(c *PoolConfig) { c.ConnMaxLifetime = d }
}

// ConnMaxIdleTime closes connections idle for longer than d.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return func(c *PoolConfig) { c.ConnMaxIdleTime = d }
}

// NewPoolConfig applies opts over the driver defaults.
func NewPoolConfig(driver string, opts ...PoolOption) PoolConfig {
	cfg := DefaultPoolConfig(driver)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return cfg
}

// ConfigurePool sets the pool of db's underlying *sql.DB.
func ConfigurePool(db *gorm.DB, cfg PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return nil
}
