package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfacilitator/go-facilitator/types"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_MASTER_SECRET", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8402, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30, cfg.Settle.TimeoutSec)
	assert.NotEmpty(t, cfg.Chains)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("SETTLE_TIMEOUT_SEC", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.Equal(t, float64(10), cfg.SettleTimeout().Seconds())
}

func TestLoadMissingSecrets(t *testing.T) {
	t.Setenv("VAULT_MASTER_SECRET", "")
	t.Setenv("WEBHOOK_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestChainConfigs(t *testing.T) {
	cfg := &Config{Chains: map[string]string{
		"base-sepolia": "https://sepolia.base.org",
	}}

	configs := cfg.ChainConfigs()
	require.Len(t, configs, 1)
	assert.Equal(t, types.NetworkBaseSepolia, configs[0].Network)
	assert.Equal(t, "https://sepolia.base.org", configs[0].RPCURL)
}
