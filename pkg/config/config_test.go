package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "reservation-service", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())

	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "data/ledger.json", cfg.Storage.FilePath)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.SizeBudgetBytes)
	assert.Equal(t, 3, cfg.Storage.SaveRetries)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.OTel.Enabled)

	assert.Equal(t, "configs/catalog.yaml", cfg.Inventory.CatalogPath)
	assert.Equal(t, 8, cfg.Inventory.Horizon)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("INVENTORY_HORIZON", "12")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Inventory.Horizon)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown storage driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects invalid port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects non-positive horizon", func(t *testing.T) {
		t.Setenv("INVENTORY_HORIZON", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "svc",
		Password: "secret",
		DBName:   "reservations",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=svc password=secret dbname=reservations sslmode=require",
		d.DSN(),
	)
}

func TestRedisAddr(t *testing.T) {
	r := &RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
