package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	sq := DefaultPoolConfig(DriverSQLite)
	assert.Equal(t, 1, sq.MaxOpenConns)
	assert.Equal(t, 1, sq.MaxIdleConns)
	assert.Zero(t, sq.ConnMaxLifetime)

	pg := DefaultPoolConfig(DriverPostgres)
	assert.Equal(t, 10, pg.MaxOpenConns)
	assert.Equal(t, 2, pg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, pg.ConnMaxLifetime)
	assert.Equal(t, time.Minute, pg.ConnMaxIdleTime)
}

func TestNewPoolConfig_Overrides(t *testing.T) {
	cfg := NewPoolConfig(DriverPostgres,
		MaxOpenConns(50),
		MaxIdleConns(20),
		ConnMaxLifetime(10*time.Minute),
		ConnMaxIdleTime(2*time.Minute),
	)

	assert.Equal(t, PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    20,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}, cfg)
}

func TestNewPoolConfig_IdleCappedByOpen(t *testing.T) {
	cfg := NewPoolConfig(DriverPostgres, MaxOpenConns(3), MaxIdleConns(8))
	assert.Equal(t, 3, cfg.MaxIdleConns)

	unlimited := NewPoolConfig(DriverPostgres, MaxOpenConns(0), MaxIdleConns(8))
	assert.Equal(t, 8, unlimited.MaxIdleConns)
}

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, ConfigurePool(db, NewPoolConfig(DriverSQLite, MaxOpenConns(3))))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}
