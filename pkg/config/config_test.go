package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), cfg.Pool.Workers)
	assert.Equal(t, 1024, cfg.Pool.QueueDepth)
	assert.Equal(t, 30*time.Second, cfg.Pool.EffectTimeout)
	assert.Equal(t, 4, cfg.Pool.WorkerConcurrency)
	assert.InDelta(t, 0.5, cfg.Flow.DefaultProbability, 1e-9)
	assert.Equal(t, 64, cfg.Flow.MaxHops)
	assert.Equal(t, 100*time.Millisecond, cfg.Flow.ConditionTimeout)
	assert.Equal(t, BusMemory, cfg.Bus.Provider)
	assert.Equal(t, "file://./data", cfg.Persistence.DatabaseURL)
	assert.Equal(t, 7*24*time.Hour, cfg.Persistence.ContextTTL)
	assert.Equal(t, time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 9092, cfg.Server.Port)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FLOWENGINE_POOL_WORKERS", "3")
	t.Setenv("FLOWENGINE_POOL_EFFECT_TIMEOUT", "5s")
	t.Setenv("FLOWENGINE_FLOW_MAX_HOPS", "10")
	t.Setenv("FLOWENGINE_PERSISTENCE_DATABASE_URL", "postgres://localhost/flows")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.Equal(t, 5*time.Second, cfg.Pool.EffectTimeout)
	assert.Equal(t, 10, cfg.Flow.MaxHops)
	assert.Equal(t, "postgres://localhost/flows", cfg.Persistence.DatabaseURL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flow:
  default_probability: 0.25
bus:
  provider: nats
  nats_url: nats://localhost:4222
auth:
  tokens:
    secret-token:
      user_id: u-1
      company_id: acme
      profile: admin
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, cfg.Flow.DefaultProbability, 1e-9)
	assert.Equal(t, BusNATS, cfg.Bus.Provider)
	assert.Equal(t, "nats://localhost:4222", cfg.Bus.NATSURL)
	require.Contains(t, cfg.Auth.Tokens, "secret-token")
	assert.Equal(t, Principal{UserID: "u-1", CompanyID: "acme", Profile: "admin"}, cfg.Auth.Tokens["secret-token"])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "probability above one", env: map[string]string{"FLOWENGINE_FLOW_DEFAULT_PROBABILITY": "1.5"}},
		{name: "no workers", env: map[string]string{"FLOWENGINE_POOL_WORKERS": "0"}},
		{name: "unknown bus", env: map[string]string{"FLOWENGINE_BUS_PROVIDER": "carrier-pigeon"}},
		{name: "nats without url", env: map[string]string{"FLOWENGINE_BUS_PROVIDER": "nats"}},
		{name: "kafka without brokers", env: map[string]string{"FLOWENGINE_BUS_PROVIDER": "kafka"}},
		{name: "unknown log level", env: map[string]string{"FLOWENGINE_LOG_LEVEL": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "examples", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, BusMemory, cfg.Bus.Provider)
	assert.Equal(t, 30*time.Second, cfg.Persistence.GraphCacheTTL)
	assert.Equal(t, Principal{UserID: "dev", CompanyID: "acme", Profile: "admin"}, cfg.Auth.Tokens["dev-token"])
}
