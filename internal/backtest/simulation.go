package backtest

import (
	"fmt"
	"math"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// SimulationParams drive the stylized short-premium return proxy. Each
// bar earns theta carry, participates in a fraction of the underlying
// move through residual delta, and pays a quadratic gamma penalty on the
// move. The stop rule floors the per-bar loss at the adverse-move
// threshold, mirroring the live stop-loss triggers.
type SimulationParams struct {
	PremiumYield float64
	DeltaShare   float64
	GammaFactor  float64
	StopLoss     float64
}

func defaultSimulationParams(cfg config.RiskConfig) SimulationParams {
	return SimulationParams{
		PremiumYield: 0.0008,
		DeltaShare:   0.25,
		GammaFactor:  6.0,
		StopLoss:     cfg.AdverseMoveThreshold,
	}
}

// withCalibration overrides the carry and stop level from fitted
// parameters, keeping the structural knobs.
func (p SimulationParams) withCalibration(cal CalibratedParameters) SimulationParams {
	out := p
	if cal.PremiumYield > 0 {
		out.PremiumYield = cal.PremiumYield
	}
	if cal.AdverseMoveThreshold > 0 {
		out.StopLoss = cal.AdverseMoveThreshold
	}
	return out
}

// simulateShortPremium runs the per-bar proxy over a return series with
// the given portfolio allocation. PnL figures are fractions of portfolio
// value. Component sums (theta, delta, gamma) plus the stop-rule residual
// reconstruct NetPnL exactly.
func simulateShortPremium(returns []float64, alloc float64, p SimulationParams) (*SimulationResult, error) {
	if alloc <= 0 {
		return nil, fmt.Errorf("allocation must be positive, got %.4f", alloc)
	}

	res := &SimulationResult{
		PnL:    make([]float64, 0, len(returns)),
		Equity: make([]float64, 0, len(returns)),
	}

	equity := 1.0
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("non-finite return at bar %d", i)
		}

		theta := alloc * p.PremiumYield
		delta := alloc * p.DeltaShare * r
		gamma := -alloc * p.GammaFactor * r * r
		pnl := theta + delta + gamma

		if floor := -alloc * p.StopLoss; pnl < floor {
			pnl = floor
			res.StopOuts++
		}

		res.ThetaPnL += theta
		res.DeltaPnL += delta
		res.GammaPnL += gamma
		res.NetPnL += pnl

		equity *= 1 + pnl
		res.PnL = append(res.PnL, pnl)
		res.Equity = append(res.Equity, equity)
	}

	res.PremiumIncome = res.ThetaPnL
	return res, nil
}

// Simulate runs the short-premium proxy over a return series under the
// given risk configuration. The stop level tracks the config's
// adverse-move threshold; parameter-search callers probe candidate
// configs through this entry point.
func Simulate(returns []float64, alloc float64, cfg config.RiskConfig) (*SimulationResult, error) {
	return simulateShortPremium(returns, alloc, defaultSimulationParams(cfg))
}

// newRegimeResult assembles the metric bundle for one regime partition.
func newRegimeResult(reg regime.Regime, alloc float64, sim *SimulationResult) RegimeResult {
	res := RegimeResult{
		Regime:     reg,
		Bars:       len(sim.PnL),
		Allocation: alloc,
		Simulation: sim,
	}
	if len(sim.Equity) > 0 {
		res.TotalReturn = sim.Equity[len(sim.Equity)-1] - 1
	}
	res.Sharpe = AnnualizedSharpe(SharpeRatio(sim.PnL), tradingDaysPerYear)
	res.Sortino = SortinoRatio(sim.PnL)
	res.MaxDrawdown = MaxDrawdown(sim.Equity)
	res.WinRate = WinRate(sim.PnL)
	res.ProfitFactor = ProfitFactor(sim.PnL)
	return res
}
