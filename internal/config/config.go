package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RiskConfig is the immutable parameter bundle for the risk engine.
// Construct through Load, validate once, then treat as read-only.
type RiskConfig struct {
	MaxLossPerTrade        float64
	MaxPortfolioAllocation float64
	MaxConcurrentPositions int
	MaxSectorConcentration float64
	DeltaLimit             float64
	GammaLimit             float64
	VegaLimit              float64
	RhoLimit               float64
	ESConfidenceLevels     []float64

	// Stop-loss triggers
	PremiumDecayThreshold float64
	VolSpikeRatio         float64
	AdverseMoveThreshold  float64

	// Systemic thresholds
	DrawdownTolerance     float64
	CounterpartyLimit     float64
	MinOptionVolume       int64
	MaxSpreadFraction     float64
	CommissionPerContract float64
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds settings for the durable risk-metric log
type DatabaseConfig struct {
	Enabled      bool
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

// DataConfig holds historical-data provider settings
type DataConfig struct {
	Root      string
	Exchange  string
	Category  string
	Interval  string
	RateLimit float64
	RateBurst int
}

type Config struct {
	Environment string
	LogLevel    string

	Risk     RiskConfig
	Server   ServerConfig
	Database DatabaseConfig
	Data     DataConfig
}

// DefaultRiskConfig returns the risk parameter defaults without
// consulting the environment
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxLossPerTrade:        0.05,
		MaxPortfolioAllocation: 0.05,
		MaxConcurrentPositions: 10,
		MaxSectorConcentration: 0.25,
		DeltaLimit:             0.2,
		GammaLimit:             0.1,
		VegaLimit:              0.3,
		RhoLimit:               0.3,
		ESConfidenceLevels:     []float64{0.975, 0.99},
		PremiumDecayThreshold:  0.20,
		VolSpikeRatio:          1.5,
		AdverseMoveThreshold:   0.10,
		DrawdownTolerance:      0.05,
		CounterpartyLimit:      0.50,
		MinOptionVolume:        10,
		MaxSpreadFraction:      0.05,
		CommissionPerContract:  0.65,
	}
}

// Load builds the configuration from environment variables with defaults.
// Call godotenv.Load in main before this when a .env file is used.
func Load() *Config {
	return &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Risk: riskFromEnv(DefaultRiskConfig()),

		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},

		Database: DatabaseConfig{
			Enabled:      getEnvBool("RISK_PG_ENABLED", false),
			DSN:          getEnv("RISK_PG_DSN", ""),
			MaxOpenConns: getEnvInt("RISK_PG_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("RISK_PG_MAX_IDLE_CONNS", 5),
			QueryTimeout: getEnvDuration("RISK_PG_QUERY_TIMEOUT", 30*time.Second),
		},

		Data: DataConfig{
			Root:      getEnv("DATA_ROOT", "data"),
			Exchange:  getEnv("DATA_EXCHANGE", "bybit"),
			Category:  getEnv("DATA_CATEGORY", "spot"),
			Interval:  getEnv("DATA_INTERVAL", "D"),
			RateLimit: getEnvFloat("DATA_RATE_LIMIT", 5.0),
			RateBurst: getEnvInt("DATA_RATE_BURST", 10),
		},
	}
}

func riskFromEnv(d RiskConfig) RiskConfig {
	return RiskConfig{
		MaxLossPerTrade:        getEnvFloat("RISK_MAX_LOSS_PER_TRADE", d.MaxLossPerTrade),
		MaxPortfolioAllocation: getEnvFloat("RISK_MAX_PORTFOLIO_ALLOCATION", d.MaxPortfolioAllocation),
		MaxConcurrentPositions: getEnvInt("RISK_MAX_CONCURRENT_POSITIONS", d.MaxConcurrentPositions),
		MaxSectorConcentration: getEnvFloat("RISK_MAX_SECTOR_CONCENTRATION", d.MaxSectorConcentration),
		DeltaLimit:             getEnvFloat("RISK_DELTA_LIMIT", d.DeltaLimit),
		GammaLimit:             getEnvFloat("RISK_GAMMA_LIMIT", d.GammaLimit),
		VegaLimit:              getEnvFloat("RISK_VEGA_LIMIT", d.VegaLimit),
		RhoLimit:               getEnvFloat("RISK_RHO_LIMIT", d.RhoLimit),
		ESConfidenceLevels:     getEnvFloatList("RISK_ES_CONFIDENCE_LEVELS", d.ESConfidenceLevels),
		PremiumDecayThreshold:  getEnvFloat("RISK_PREMIUM_DECAY_THRESHOLD", d.PremiumDecayThreshold),
		VolSpikeRatio:          getEnvFloat("RISK_VOL_SPIKE_RATIO", d.VolSpikeRatio),
		AdverseMoveThreshold:   getEnvFloat("RISK_ADVERSE_MOVE_THRESHOLD", d.AdverseMoveThreshold),
		DrawdownTolerance:      getEnvFloat("RISK_DRAWDOWN_TOLERANCE", d.DrawdownTolerance),
		CounterpartyLimit:      getEnvFloat("RISK_COUNTERPARTY_LIMIT", d.CounterpartyLimit),
		MinOptionVolume:        int64(getEnvInt("RISK_MIN_OPTION_VOLUME", int(d.MinOptionVolume))),
		MaxSpreadFraction:      getEnvFloat("RISK_MAX_SPREAD_FRACTION", d.MaxSpreadFraction),
		CommissionPerContract:  getEnvFloat("RISK_COMMISSION_PER_CONTRACT", d.CommissionPerContract),
	}
}

// Validate enforces the structural invariants of the parameter bundle
func (c *Config) Validate() error {
	r := c.Risk

	fractions := map[string]float64{
		"RISK_MAX_LOSS_PER_TRADE":       r.MaxLossPerTrade,
		"RISK_MAX_PORTFOLIO_ALLOCATION": r.MaxPortfolioAllocation,
		"RISK_MAX_SECTOR_CONCENTRATION": r.MaxSectorConcentration,
		"RISK_PREMIUM_DECAY_THRESHOLD":  r.PremiumDecayThreshold,
		"RISK_ADVERSE_MOVE_THRESHOLD":   r.AdverseMoveThreshold,
		"RISK_DRAWDOWN_TOLERANCE":       r.DrawdownTolerance,
		"RISK_COUNTERPARTY_LIMIT":       r.CounterpartyLimit,
		"RISK_MAX_SPREAD_FRACTION":      r.MaxSpreadFraction,
	}
	for name, v := range fractions {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}

	if r.MaxConcurrentPositions < 1 {
		return fmt.Errorf("RISK_MAX_CONCURRENT_POSITIONS must be at least 1, got %d", r.MaxConcurrentPositions)
	}
	for name, v := range map[string]float64{
		"RISK_DELTA_LIMIT": r.DeltaLimit,
		"RISK_GAMMA_LIMIT": r.GammaLimit,
		"RISK_VEGA_LIMIT":  r.VegaLimit,
		"RISK_RHO_LIMIT":   r.RhoLimit,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}
	if r.VolSpikeRatio <= 1 {
		return fmt.Errorf("RISK_VOL_SPIKE_RATIO must exceed 1, got %v", r.VolSpikeRatio)
	}

	if len(r.ESConfidenceLevels) == 0 {
		return fmt.Errorf("RISK_ES_CONFIDENCE_LEVELS must not be empty")
	}
	if !sort.Float64sAreSorted(r.ESConfidenceLevels) {
		return fmt.Errorf("RISK_ES_CONFIDENCE_LEVELS must be strictly increasing")
	}
	for i, level := range r.ESConfidenceLevels {
		if level <= 0 || level >= 1 {
			return fmt.Errorf("RISK_ES_CONFIDENCE_LEVELS entries must be in (0,1), got %v", level)
		}
		if i > 0 && level == r.ESConfidenceLevels[i-1] {
			return fmt.Errorf("RISK_ES_CONFIDENCE_LEVELS must be strictly increasing")
		}
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("RISK_PG_DSN is required when RISK_PG_ENABLED is true")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a valid port, got %d", c.Server.Port)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloatList(key string, defaultVal []float64) []float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	parsed := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultVal
		}
		parsed = append(parsed, f)
	}
	return parsed
}
