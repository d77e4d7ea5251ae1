package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("LIMS_STORE", "postgres")
	t.Setenv("LIMS_PG_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig(flags{})
	require.Error(t, err)

	cfg, err := loadConfig(flags{store: "json", dataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Store)
}
