package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusebox/fusebox/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, config.LogLevelInfo, cfg.Logging.Level)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "fusebox", cfg.Redis.KeyPrefix)
	assert.Equal(t, 300*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 5, cfg.Circuits.Defaults.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Circuits.Defaults.ResetTimeout)
	assert.Equal(t, 2, cfg.Circuits.Defaults.SuccessThreshold)
	assert.Equal(t, 1*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "cache-purge", cfg.Worker.Subscription)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.FileUsed())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
environment: staging
server:
  address: ":9090"
  read_timeout: 5s
logging:
  level: debug
redis:
  enabled: true
  addr: "redis.internal:6379"
  db: 2
  key_prefix: fusebox-staging
cache:
  default_ttl: 10m
circuits:
  defaults:
    failure_threshold: 3
    reset_timeout: 15s
    success_threshold: 1
  overrides:
    payments-db:
      failure_threshold: 2
auth:
  signing_key: staging-key
  token_ttl: 30m
worker:
  project_id: fusebox-staging
  subscription: cache-purge-staging
telemetry:
  enabled: true
  otlp_endpoint: "otel-collector:4317"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.EnvStaging, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, config.LogLevelDebug, cfg.Logging.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "fusebox-staging", cfg.Redis.KeyPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 3, cfg.Circuits.Defaults.FailureThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "fusebox-staging", cfg.Worker.ProjectID)
	assert.Equal(t, "cache-purge-staging", cfg.Worker.Subscription)
	assert.Equal(t, "otel-collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, path, cfg.FileUsed())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  address: ":9090"
`)
	t.Setenv("FUSEBOX_SERVER_ADDRESS", ":7070")
	t.Setenv("FUSEBOX_REDIS_ENABLED", "true")
	t.Setenv("FUSEBOX_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FUSEBOX_CACHE_DEFAULT_TTL", "45s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	// Environment beats the file.
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 45*time.Second, cfg.Cache.DefaultTTL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "server: [unclosed")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	path := writeConfigFile(t, "environment: qa\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Environment")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: verbose\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidCircuitDefaults(t *testing.T) {
	path := writeConfigFile(t, `
circuits:
  defaults:
    failure_threshold: 0
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_RedisAddrRequiredWhenEnabled(t *testing.T) {
	path := writeConfigFile(t, `
redis:
  enabled: true
  addr: "not-a-hostport"
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSigningKey(t *testing.T) {
	path := writeConfigFile(t, "environment: production\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key")

	path = writeConfigFile(t, `
environment: production
auth:
  signing_key: super-secret
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestCircuitsConfig_For(t *testing.T) {
	circuits := config.CircuitsConfig{
		Defaults: config.CircuitConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			SuccessThreshold: 2,
		},
		Overrides: map[string]config.CircuitConfig{
			"payments-db": {FailureThreshold: 2},
			"search-api":  {FailureThreshold: 10, ResetTimeout: 1 * time.Minute, SuccessThreshold: 3},
		},
	}

	// Unknown circuits get the defaults.
	assert.Equal(t, circuits.Defaults, circuits.For("unknown"))

	// Partial overrides keep default values for unset fields.
	partial := circuits.For("payments-db")
	assert.Equal(t, 2, partial.FailureThreshold)
	assert.Equal(t, 30*time.Second, partial.ResetTimeout)
	assert.Equal(t, 2, partial.SuccessThreshold)

	full := circuits.For("search-api")
	assert.Equal(t, 10, full.FailureThreshold)
	assert.Equal(t, 1*time.Minute, full.ResetTimeout)
	assert.Equal(t, 3, full.SuccessThreshold)
}
