package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 0.05, cfg.Risk.MaxLossPerTrade)
	assert.Equal(t, 0.05, cfg.Risk.MaxPortfolioAllocation)
	assert.Equal(t, 10, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, 0.25, cfg.Risk.MaxSectorConcentration)
	assert.Equal(t, 0.2, cfg.Risk.DeltaLimit)
	assert.Equal(t, []float64{0.975, 0.99}, cfg.Risk.ESConfidenceLevels)
	assert.Equal(t, 0.20, cfg.Risk.PremiumDecayThreshold)
	assert.Equal(t, 1.5, cfg.Risk.VolSpikeRatio)
	assert.Equal(t, 0.10, cfg.Risk.AdverseMoveThreshold)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RISK_MAX_LOSS_PER_TRADE", "0.02")
	t.Setenv("RISK_MAX_CONCURRENT_POSITIONS", "4")
	t.Setenv("RISK_ES_CONFIDENCE_LEVELS", "0.95,0.975,0.99")
	t.Setenv("RISK_PG_QUERY_TIMEOUT", "5s")

	cfg := Load()

	assert.Equal(t, 0.02, cfg.Risk.MaxLossPerTrade)
	assert.Equal(t, 4, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, []float64{0.95, 0.975, 0.99}, cfg.Risk.ESConfidenceLevels)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
}

func TestLoad_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("RISK_MAX_LOSS_PER_TRADE", "one-twentieth")
	t.Setenv("RISK_ES_CONFIDENCE_LEVELS", "0.95,not-a-number")

	cfg := Load()

	assert.Equal(t, 0.05, cfg.Risk.MaxLossPerTrade)
	assert.Equal(t, []float64{0.975, 0.99}, cfg.Risk.ESConfidenceLevels)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"loss fraction above one", func(c *Config) { c.Risk.MaxLossPerTrade = 1.2 }},
		{"negative sector cap", func(c *Config) { c.Risk.MaxSectorConcentration = -0.1 }},
		{"zero position count", func(c *Config) { c.Risk.MaxConcurrentPositions = 0 }},
		{"zero delta limit", func(c *Config) { c.Risk.DeltaLimit = 0 }},
		{"vol spike ratio below one", func(c *Config) { c.Risk.VolSpikeRatio = 0.9 }},
		{"empty confidence levels", func(c *Config) { c.Risk.ESConfidenceLevels = nil }},
		{"unsorted confidence levels", func(c *Config) { c.Risk.ESConfidenceLevels = []float64{0.99, 0.975} }},
		{"duplicate confidence levels", func(c *Config) { c.Risk.ESConfidenceLevels = []float64{0.975, 0.975} }},
		{"confidence level of one", func(c *Config) { c.Risk.ESConfidenceLevels = []float64{0.975, 1.0} }},
		{"db enabled without dsn", func(c *Config) { c.Database.Enabled = true; c.Database.DSN = "" }},
		{"invalid port", func(c *Config) { c.Server.Port = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
