package backtest

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// SimulationResult holds the per-bar output of one stylized strategy run
// together with the PnL decomposition the attribution report is built from.
// All figures are fractions of portfolio value.
type SimulationResult struct {
	PnL    []float64 `json:"pnl"`
	Equity []float64 `json:"equity"`

	ThetaPnL float64 `json:"theta_pnl"`
	DeltaPnL float64 `json:"delta_pnl"`
	GammaPnL float64 `json:"gamma_pnl"`
	NetPnL   float64 `json:"net_pnl"`

	PremiumIncome float64 `json:"premium_income"`
	StopOuts      int     `json:"stop_outs"`
}

// RegimeResult is the outcome of running the sizing and loss rules over
// the bars labeled with one regime. Sparse marks regimes the requested
// data never produced; Failure records an isolated per-regime error.
type RegimeResult struct {
	Regime       regime.Regime `json:"regime"`
	Bars         int           `json:"bars"`
	Sparse       bool          `json:"sparse"`
	Failure      string        `json:"failure,omitempty"`
	Allocation   float64       `json:"allocation"`
	TotalReturn  float64       `json:"total_return"`
	Sharpe       float64       `json:"sharpe"`
	Sortino      float64       `json:"sortino"`
	MaxDrawdown  float64       `json:"max_drawdown"`
	WinRate      float64       `json:"win_rate"`
	ProfitFactor float64       `json:"profit_factor"`

	Simulation *SimulationResult `json:"simulation,omitempty"`
}

// MultiRegimeReport bundles the per-regime results of one backtest run.
type MultiRegimeReport struct {
	RunID   string         `json:"run_id"`
	Symbols []string       `json:"symbols"`
	Results []RegimeResult `json:"results"`
	Elapsed time.Duration  `json:"elapsed"`
}

// WalkForwardWindow is one rolling train/test split outcome.
type WalkForwardWindow struct {
	Index      int                  `json:"index"`
	Symbol     string               `json:"symbol"`
	TrainStart time.Time            `json:"train_start"`
	TrainEnd   time.Time            `json:"train_end"`
	TestStart  time.Time            `json:"test_start"`
	TestEnd    time.Time            `json:"test_end"`
	TrainBars  int                  `json:"train_bars"`
	TestBars   int                  `json:"test_bars"`
	Params     CalibratedParameters `json:"params"`
	TestSharpe float64              `json:"test_sharpe"`
	TestReturn float64              `json:"test_return"`
}

// WalkForwardReport aggregates all rolling windows of one run.
type WalkForwardReport struct {
	RunID     string              `json:"run_id"`
	Windows   []WalkForwardWindow `json:"windows"`
	AvgSharpe float64             `json:"avg_sharpe"`
}

// AttributionReport decomposes a simulation's realized PnL into named
// contributions. The four components sum to Total exactly; Total is the
// arithmetic sum of per-bar PnL.
type AttributionReport struct {
	PremiumDecayContribution   float64 `json:"premium_decay_contribution"`
	UnderlyingMoveContribution float64 `json:"underlying_move_contribution"`
	VolatilityContribution     float64 `json:"volatility_contribution"`
	Residual                   float64 `json:"residual"`
	Total                      float64 `json:"total"`
}

// CalibratedParameters are model parameters fitted from a training slice,
// consumable as RiskConfig stop-loss overrides.
type CalibratedParameters struct {
	Volatility   float64 `json:"volatility"`    // annualized realized volatility
	Drift        float64 `json:"drift"`         // annualized mean return
	PremiumYield float64 `json:"premium_yield"` // per-bar carry at full notional

	PremiumDecayThreshold float64 `json:"premium_decay_threshold"`
	VolSpikeRatio         float64 `json:"vol_spike_ratio"`
	AdverseMoveThreshold  float64 `json:"adverse_move_threshold"`
}

// ApplyTo returns a copy of cfg with the calibrated stop-loss thresholds
// applied. Zero-valued calibrations leave the original thresholds alone.
func (c CalibratedParameters) ApplyTo(cfg config.RiskConfig) config.RiskConfig {
	out := cfg
	if c.PremiumDecayThreshold > 0 {
		out.PremiumDecayThreshold = c.PremiumDecayThreshold
	}
	if c.VolSpikeRatio > 1 {
		out.VolSpikeRatio = c.VolSpikeRatio
	}
	if c.AdverseMoveThreshold > 0 {
		out.AdverseMoveThreshold = c.AdverseMoveThreshold
	}
	return out
}

// NewRunID returns a fresh ULID for tagging a backtest run and its
// report artifacts.
func NewRunID() string {
	return ulid.Make().String()
}
