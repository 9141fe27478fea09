// Package risk implements the admission pipeline for short-options
// positions: per-trade loss bounding, sizing gates, portfolio-level
// aggregation, and the combined evaluate decision.
package risk

import (
	"time"

	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// Stop-loss trigger labels recorded in the risk-event log
const (
	TriggerPremiumDecay = "premium_decay"
	TriggerVolSpike     = "volatility_spike"
	TriggerAdverseMove  = "adverse_move"
)

// Check is one named admission gate outcome. Value and Threshold are
// zero for gates without a meaningful numeric comparison.
type Check struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// Decision is the structured result of evaluating one candidate trade.
// Reason carries the first failure; FailureReasons carries all of them.
type Decision struct {
	Approved         bool              `json:"approved"`
	Reason           string            `json:"reason,omitempty"`
	Checks           []Check           `json:"checks"`
	FailureReasons   []string          `json:"failure_reasons,omitempty"`
	AdjustedPosition *options.Position `json:"adjusted_position,omitempty"`
	EvaluatedAt      time.Time         `json:"evaluated_at"`
	ElapsedMS        float64           `json:"elapsed_ms"`
}

// Alert is a liquidity, counterparty, or breach notification
type Alert struct {
	Kind     string  `json:"kind"`
	Symbol   string  `json:"symbol,omitempty"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
	Limit    float64 `json:"limit"`
}

// Recommendation is a suggested rebalancing action
type Recommendation struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Detail string `json:"detail"`
}

// CorrelationMatrix is a square pairwise return-correlation matrix
// indexed by the symbol slice. Diagonal entries are exactly 1.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// At returns the correlation between two symbols
func (m *CorrelationMatrix) At(a, b string) (float64, bool) {
	ai, bi := -1, -1
	for i, sym := range m.Symbols {
		if sym == a {
			ai = i
		}
		if sym == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return 0, false
	}
	return m.Values[ai][bi], true
}

// DashboardSnapshot is the read-only risk projection exported to
// external consumers. It is recomputed on demand; the open-position
// set stays authoritative.
type DashboardSnapshot struct {
	PortfolioValue    float64            `json:"portfolio_value"`
	PositionCount     int                `json:"position_count"`
	Greeks            options.Greeks     `json:"greeks"`
	VaR               float64            `json:"var"`
	ExpectedShortfall map[string]float64 `json:"expected_shortfall"`
	Correlations      *CorrelationMatrix `json:"correlations,omitempty"`
	SectorExposure    map[string]float64 `json:"sector_exposure,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// LossOutcome pairs a historical position with its realized loss
type LossOutcome struct {
	Position   options.Position `json:"position"`
	ActualLoss float64          `json:"actual_loss"`
}

// LossValidationReport scores the loss model against realized outcomes
type LossValidationReport struct {
	Samples      int     `json:"samples"`
	AccuracyRate float64 `json:"accuracy_rate"`
	AvgDeviation float64 `json:"avg_deviation"`
}

// SizingScenario is one historical or synthetic stress path for the
// sizing-rule backtest. Prices drive the drawdown when present;
// SimulatedDrawdown is the fallback for summary-only scenarios.
type SizingScenario struct {
	Name              string        `json:"name"`
	Regime            regime.Regime `json:"regime"`
	Crisis            bool          `json:"crisis"`
	Prices            []float64     `json:"prices,omitempty"`
	SimulatedDrawdown float64       `json:"simulated_drawdown,omitempty"`
}

// SizingBacktestReport summarizes the sizing-rule backtest
type SizingBacktestReport struct {
	Scenarios          int      `json:"scenarios"`
	MaxDrawdown        float64  `json:"max_drawdown"`
	DrawdownViolations []string `json:"drawdown_violations,omitempty"`
}

// HistoricalPeriod is one labelled span of market history used to
// score the framework's predictive accuracy.
type HistoricalPeriod struct {
	Name         string               `json:"name"`
	Returns      map[string][]float64 `json:"returns"`
	RealizedLoss float64              `json:"realized_loss"`
}

// FrameworkValidationReport scores VaR breach coverage across periods
type FrameworkValidationReport struct {
	Periods               int     `json:"periods"`
	Breaches              int     `json:"breaches"`
	BreachRate            float64 `json:"breach_rate"`
	ExpectedBreachRate    float64 `json:"expected_breach_rate"`
	OverallFrameworkScore float64 `json:"overall_framework_score"`
}
