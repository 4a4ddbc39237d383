package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "vector.db", cfg.DBPath)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, "2025-01-01", cfg.Billing.APIVersion)
	require.False(t, cfg.Billing.Production)
	require.Equal(t, 5, cfg.Quota.FreePerDay)
	require.Equal(t, 100, cfg.Quota.ProPerDay)
	require.Equal(t, 3, cfg.Backup.Hour)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VECTOR_PORT", "9090")
	t.Setenv("CASHFREE_APP_ID", "app_123")
	t.Setenv("CASHFREE_PRODUCTION", "true")
	t.Setenv("VECTOR_FREE_REQUESTS_PER_DAY", "10")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "app_123", cfg.Billing.ClientID)
	require.True(t, cfg.Billing.Production)
	require.Equal(t, 10, cfg.Quota.FreePerDay)
}
