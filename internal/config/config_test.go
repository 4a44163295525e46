package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://midgard.ninerealms.com", cfg.Midgard.BaseURL)
	assert.Equal(t, []string{"BTC.BTC"}, cfg.Midgard.Pools)
	assert.Equal(t, "day", cfg.Midgard.Interval)
	assert.Equal(t, 100, cfg.Midgard.Count)
	assert.Equal(t, 30*time.Second, cfg.Midgard.Timeout)
	assert.Equal(t, 3, cfg.Midgard.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Ingest.Interval)
	assert.True(t, cfg.Ingest.RunOnStart)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Midgard.Granularity())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MH_MIDGARD_POOLS", "BTC.BTC, ETH.ETH,BTC.BTC")
	t.Setenv("MH_MIDGARD_COUNT", "50")
	t.Setenv("MH_INGEST_INTERVAL", "10m")
	t.Setenv("MH_REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/midgard")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC.BTC", "ETH.ETH"}, cfg.Midgard.Pools)
	assert.Equal(t, 50, cfg.Midgard.Count)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.Interval)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "postgres://u:p@db:5432/midgard", cfg.Database.DSN)
}

func TestLoad_FilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
midgard:
  base_url: http://midgard.local
  pools: [ETH.ETH]
http:
  addr: ":9000"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("MH_HTTP_ADDR", ":9100")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--pools", "BNB.BNB", "--db-driver", "memory"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "http://midgard.local", cfg.Midgard.BaseURL, "file overrides default")
	assert.Equal(t, ":9100", cfg.HTTP.Addr, "env overrides file")
	assert.Equal(t, []string{"BNB.BNB"}, cfg.Midgard.Pools, "flag overrides file")
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 100, cfg.Midgard.Count)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverPostgres, DSN: "postgres://localhost/db"},
			Midgard:  MidgardConfig{BaseURL: "http://x", Pools: []string{"BTC.BTC"}, Count: 100},
			Ingest:   IngestConfig{Interval: time.Minute},
		}
	}

	require.NoError(t, valid().Validate())

	memory := valid()
	memory.Database = DatabaseConfig{Driver: DriverMemory}
	require.NoError(t, memory.Validate(), "memory driver needs no dsn")

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"empty base url", func(c *Config) { c.Midgard.BaseURL = "" }},
		{"no pools", func(c *Config) { c.Midgard.Pools = nil }},
		{"count zero", func(c *Config) { c.Midgard.Count = 0 }},
		{"count too large", func(c *Config) { c.Midgard.Count = MaxCount + 1 }},
		{"zero interval", func(c *Config) { c.Ingest.Interval = 0 }},
		{"redis without ttl", func(c *Config) { c.Redis.Addr = "localhost:6379" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
