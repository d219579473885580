package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.example.com",
		Port:     5433,
		User:     "sam",
		Password: "secret",
		Database: "sam",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.example.com port=5433 user=sam password=secret dbname=sam sslmode=require",
		cfg.DSN())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "")
		t.Setenv("DB_PORT", "")
		t.Setenv("DB_PASSWORD", "pw")

		cfg, err := LoadConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "sam", cfg.User)
		assert.Equal(t, "sam", cfg.Database)
		assert.Equal(t, "disable", cfg.SSLMode)
		assert.Equal(t, 5, cfg.MaxOpenConns)
		assert.Equal(t, 2, cfg.MaxIdleConns)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("DB_PORT", "5433")
		t.Setenv("DB_USER", "svc")
		t.Setenv("DB_NAME", "events")
		t.Setenv("DB_SSLMODE", "require")

		cfg, err := LoadConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, 5433, cfg.Port)
		assert.Equal(t, "svc", cfg.User)
		assert.Equal(t, "events", cfg.Database)
		assert.Equal(t, "require", cfg.SSLMode)
	})

	t.Run("rejects non-numeric port", func(t *testing.T) {
		t.Setenv("DB_PORT", "not-a-port")

		_, err := LoadConfigFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid DB_PORT")
	})
}
