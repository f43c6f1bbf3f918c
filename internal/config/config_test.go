package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  address: ":9090"
  readTimeout: "10s"
  maxBodyBytes: 1048576
log:
  level: debug
  format: console
store:
  backend: postgres
  postgresUrl: "postgres://gw:${TEST_DB_PASSWORD}@db:5432/gateway"
secrets:
  provider: env
  masterKeyRef: master-key
breaker:
  failureThreshold: 3
  resetTimeout: "10s"
  successThreshold: 1
egress:
  extraBlockedNetworks:
    - "203.0.113.0/24"
rateLimit:
  enabled: true
  backend: local
  requests: 50
  window: "30s"
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://gw:hunter2@db:5432/gateway", cfg.Store.PostgresURL)

	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.Breaker.ResetTimeout.Duration())
	assert.Equal(t, []string{"203.0.113.0/24"}, cfg.Egress.ExtraBlockedNetworks)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 50, cfg.RateLimit.Requests)

	// Unset fields fall back to defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Duration())
	assert.Equal(t, "env", cfg.Secrets.Provider)
	assert.Equal(t, 30*time.Second, cfg.Upstream.DefaultTimeout.Duration())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad yaml", yaml: "server: ["},
		{name: "unknown store backend", yaml: "store:\n  backend: sqlite"},
		{name: "postgres without url", yaml: "store:\n  backend: postgres"},
		{name: "unknown secrets provider", yaml: "secrets:\n  provider: consul"},
		{name: "vault without address", yaml: "secrets:\n  provider: vault"},
		{name: "zero failure threshold", yaml: "breaker:\n  failureThreshold: -1"},
		{name: "redis ratelimit without address", yaml: "rateLimit:\n  enabled: true\n  backend: redis"},
		{name: "sampling rate out of range", yaml: "tracing:\n  samplingRate: 2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":7070\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte("null")))
	assert.Equal(t, time.Duration(0), d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"ninety"`)))

	out, err := Duration(5 * time.Minute).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5m0s"`, string(out))
}
