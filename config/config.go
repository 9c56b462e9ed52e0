package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/types"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Vault   VaultConfig
	Webhook WebhookConfig
	Settle  SettleConfig
	Log     LogConfig
	Chains  map[string]string `mapstructure:"chains"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type VaultConfig struct {
	// MasterSecret is 64 hex chars (32 bytes); wallet keys are sealed under it.
	MasterSecret string `mapstructure:"master_secret"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type SettleConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec"`
	OutcomeTTL int `mapstructure:"outcome_ttl_sec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8402)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("settle.timeout_sec", 30)
	v.SetDefault("settle.outcome_ttl_sec", 86400)
	v.SetDefault("log.level", "info")
	v.SetDefault("chains", map[string]string{
		"base-sepolia":  "https://sepolia.base.org",
		"solana-devnet": "https://api.devnet.solana.com",
	})

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":            "PORT",
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"vault.master_secret":    "VAULT_MASTER_SECRET",
		"webhook.secret":         "WEBHOOK_SECRET",
		"settle.timeout_sec":     "SETTLE_TIMEOUT_SEC",
		"settle.outcome_ttl_sec": "SETTLE_OUTCOME_TTL_SEC",
		"log.level":              "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	for _, r := range []struct {
		val  string
		name string
	}{
		{c.Vault.MasterSecret, "VAULT_MASTER_SECRET"},
		{c.Webhook.Secret, "WEBHOOK_SECRET"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	return nil
}

// ChainConfigs converts the chains map into registry configuration.
func (c *Config) ChainConfigs() []chains.ChainConfig {
	out := make([]chains.ChainConfig, 0, len(c.Chains))
	for network, rpcURL := range c.Chains {
		out = append(out, chains.ChainConfig{
			Network: types.Network(network),
			RPCURL:  rpcURL,
		})
	}
	return out
}

func (c *Config) SettleTimeout() time.Duration {
	return time.Duration(c.Settle.TimeoutSec) * time.Second
}

func (c *Config) OutcomeTTL() time.Duration {
	return time.Duration(c.Settle.OutcomeTTL) * time.Second
}
