package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press"
	"github.com/xraph/press/config"
	"github.com/xraph/press/store/memory"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "press.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, press.DefaultConfig().MaxAttempts, cfg.Delivery.MaxAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
store:
  driver: redis
redis:
  addr: redis.internal:6379
delivery:
  max_attempts: 5
  retry_schedule: [1s, 2s]
webhooks:
  targets:
    - url: https://hooks.example.com/press
      secret: whsec_abc
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.True(t, cfg.NeedsRedis())
	assert.Equal(t, 5, cfg.Delivery.MaxAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, cfg.Delivery.RetrySchedule)
	require.Len(t, cfg.Webhooks.Targets, 1)
	assert.Equal(t, "https://hooks.example.com/press", cfg.Webhooks.Targets[0].URL)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "delivery:\n  concurrency: 4\n")
	t.Setenv("PRESS_DELIVERY_CONCURRENCY", "16")
	t.Setenv("PRESS_SWEEP_INTERVAL", "15s")
	t.Setenv("PRESS_REALTIME_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Delivery.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Realtime.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown store", "store:\n  driver: cassandra\n"},
		{"grove store", "store:\n  driver: postgres\n"},
		{"redis without addr", "redis:\n  addr: \"\"\ndedup:\n  driver: redis\n"},
		{"badger without path", "dedup:\n  driver: badger\n"},
		{"zero attempts", "delivery:\n  max_attempts: 0\n"},
		{"bad target url", "webhooks:\n  targets:\n    - url: not-a-url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestToOptions_BuildsPress(t *testing.T) {
	cfg := config.Default()
	cfg.Breaker.Enabled = true
	cfg.Delivery.OnUnpublish = true
	cfg.Webhooks.Targets = []config.TargetConfig{{URL: "https://hooks.example.com"}}

	pc := cfg.PressConfig()
	assert.True(t, pc.WebhooksOnUnpublish)
	assert.Equal(t, cfg.Dedup.TTL, pc.DedupTTL)

	opts := append(cfg.ToOptions(), press.WithStore(memory.New()))
	p, err := press.New(opts...)
	require.NoError(t, err)
	require.NotNil(t, p)
}
