package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ELIGIBILITY_STRATEGY", "TOP_SEGMENTS", "AD_EVENT_RETENTION", "CLICKHOUSE_DSN"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "tiered", cfg.EligibilityStrategy)
	assert.Equal(t, 3, cfg.TopSegments)
	assert.Equal(t, 90*24*time.Hour, cfg.AdEventRetention)
	assert.Empty(t, cfg.ClickHouseDSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ELIGIBILITY_STRATEGY", "v2")
	t.Setenv("TOP_SEGMENTS", "5")
	t.Setenv("RELOAD_INTERVAL", "45")
	t.Setenv("AD_EVENT_RETENTION", "720h")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "v2", cfg.EligibilityStrategy)
	assert.Equal(t, 5, cfg.TopSegments)
	assert.Equal(t, 45*time.Second, cfg.ReloadInterval)
	assert.Equal(t, 720*time.Hour, cfg.AdEventRetention)
	assert.True(t, cfg.TracingEnabled)
	assert.InDelta(t, 0.25, cfg.TracingSampleRate, 1e-9)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TOP_SEGMENTS", "three")
	t.Setenv("TRACING_ENABLED", "maybe")
	t.Setenv("RELOAD_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, 3, cfg.TopSegments)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, 30*time.Second, cfg.ReloadInterval)
}
