package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LIMS_STORE", "LIMS_DATA_DIR", "LIMS_DB_PATH", "LIMS_PG_DSN", "DATABASE_URL",
		"LIMS_HTTP_ADDR", "LIMS_REDIS_ADDR", "LIMS_CACHE_SIZE", "LIMS_ACTIVITY_LIMIT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Store)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data/library.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 20, cfg.ActivityLimit)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIMS_STORE", "SQLite3")
	t.Setenv("LIMS_DB_PATH", "/tmp/x.db")
	t.Setenv("LIMS_CACHE_SIZE", "0")
	t.Setenv("LIMS_REDIS_ADDR", " localhost:6379 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Store)
	assert.Equal(t, 0, cfg.CacheSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)

	sc := cfg.StoreConfig()
	assert.Equal(t, "sqlite3", sc.Backend)
	assert.Equal(t, "/tmp/x.db", sc.DBPath)
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIMS_STORE", "postgres")
	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/lims")
	cfg, err = Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://u:p@localhost/lims", cfg.PostgresDSN)
}

func TestValidateAfterOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIMS_STORE", "postgres")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Store = "json"
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIMS_CACHE_SIZE", "lots")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LIMS_STORE", "mongo")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	clearEnv(t)
	t.Setenv("LIMS_ACTIVITY_LIMIT", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
