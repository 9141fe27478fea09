package risk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// Number of scenario jobs the sizing backtest runs concurrently
const sizingBacktestWorkers = 4

// Sizer enforces position-level allocation, diversification, Greek and
// margin constraints against a portfolio snapshot. The optional notifier
// channel receives breach alerts; sends never block.
type Sizer struct {
	cfg      config.RiskConfig
	notifier chan<- Alert
}

// NewSizer creates a sizer. notifier may be nil.
func NewSizer(cfg config.RiskConfig, notifier chan<- Alert) *Sizer {
	return &Sizer{cfg: cfg, notifier: notifier}
}

// RegimeAllocationLimit returns the per-position allocation fraction for
// the given market regime: the base limit in normal and bull markets,
// scaled down in bear, high-volatility and crisis regimes.
func (s *Sizer) RegimeAllocationLimit(r regime.Regime) float64 {
	return s.cfg.MaxPortfolioAllocation * r.AllocationScale()
}

// CheckAllocation verifies the candidate's notional exposure fits the
// regime-adjusted allocation limit for the portfolio.
func (s *Sizer) CheckAllocation(p options.Position, port *portfolio.Portfolio, r regime.Regime) (bool, string) {
	if port == nil || port.Value <= 0 {
		return false, "portfolio value unavailable, cannot size allocation"
	}

	notional := p.Notional()
	limit := s.RegimeAllocationLimit(r) * port.Value
	if notional > limit {
		return false, fmt.Sprintf("notional %.2f exceeds %s-regime allocation limit %.2f",
			notional, r, limit)
	}
	return true, ""
}

// CheckDiversification verifies the open-position count stays under the
// concurrency cap and the candidate's sector stays within the
// concentration limit after adding its notional.
func (s *Sizer) CheckDiversification(p options.Position, port *portfolio.Portfolio) (bool, string) {
	if port == nil {
		return false, "portfolio snapshot unavailable"
	}

	if count := port.OpenCount(); count >= s.cfg.MaxConcurrentPositions {
		return false, fmt.Sprintf("open positions %d at the limit of %d", count, s.cfg.MaxConcurrentPositions)
	}

	concentration := port.SectorConcentration(p.Sector, p.Notional())
	if concentration > s.cfg.MaxSectorConcentration {
		return false, fmt.Sprintf("sector %s concentration %.1f%% exceeds %.0f%% limit",
			p.Sector, concentration*100, s.cfg.MaxSectorConcentration*100)
	}
	return true, ""
}

// CheckGreeks verifies aggregate Greek exposure stays within limits
// after adding the candidate. A position without Greeks fails the check;
// unknown exposure is treated as a breach.
func (s *Sizer) CheckGreeks(p options.Position, port *portfolio.Portfolio) (bool, string) {
	if p.Greeks == nil {
		return false, fmt.Sprintf("candidate %s has no greeks, failing closed", p.Symbol)
	}

	agg := *p.Greeks
	if port != nil {
		for _, open := range port.Positions {
			if open.Greeks == nil {
				return false, fmt.Sprintf("open position %s has no greeks, failing closed", open.Symbol)
			}
			agg = agg.Add(*open.Greeks)
		}
	}

	limits := []struct {
		name  string
		value float64
		limit float64
	}{
		{"delta", agg.Delta, s.cfg.DeltaLimit},
		{"gamma", agg.Gamma, s.cfg.GammaLimit},
		{"vega", agg.Vega, s.cfg.VegaLimit},
		{"rho", agg.Rho, s.cfg.RhoLimit},
	}
	for _, l := range limits {
		if math.Abs(l.value) > l.limit {
			return false, fmt.Sprintf("aggregate %s %.4f exceeds limit %.4f", l.name, math.Abs(l.value), l.limit)
		}
	}
	return true, ""
}

// OptimalContracts returns the contract count that fills the
// regime-adjusted allocation budget, scaled down when the bid-ask
// spread is wider than MaxSpreadFraction. Always at least 1 for a
// structurally valid candidate.
func (s *Sizer) OptimalContracts(p options.Position, port *portfolio.Portfolio, r regime.Regime) (int, error) {
	if p.UnderlyingPrice <= 0 {
		return 0, rerrors.NewInvalidInput("sizer", "optimal_contracts",
			fmt.Sprintf("underlying price must be positive, got %.4f", p.UnderlyingPrice))
	}

	budget := 0.0
	if port != nil && port.Value > 0 {
		budget = s.RegimeAllocationLimit(r) * port.Value
	}

	perContract := p.UnderlyingPrice * options.ContractMultiplier
	contracts := int(budget / perContract)

	if frac := p.SpreadFraction(); frac > s.cfg.MaxSpreadFraction && frac > 0 {
		contracts = int(float64(contracts) * s.cfg.MaxSpreadFraction / frac)
	}

	if contracts < 1 {
		contracts = 1
	}
	return contracts, nil
}

// CheckMargin verifies the portfolio can collateralize the candidate:
// cash-secured puts need ReservedCash covering full assignment at the
// strike, covered calls need 100 shares per contract already held.
func (s *Sizer) CheckMargin(p options.Position, port *portfolio.Portfolio) (bool, string) {
	if port == nil {
		return false, "portfolio snapshot unavailable"
	}

	switch p.OptionType {
	case options.OptionPut:
		required := p.StrikePrice * options.ContractMultiplier * float64(p.Contracts)
		if port.ReservedCash < required {
			return false, fmt.Sprintf("reserved cash %.2f below %.2f required to secure the put",
				port.ReservedCash, required)
		}
	case options.OptionCall:
		required := options.ContractMultiplier * float64(p.Contracts)
		if held := port.SharesFor(p.Symbol); held < required {
			return false, fmt.Sprintf("holding %.0f shares of %s, %.0f required to cover the call",
				held, p.Symbol, required)
		}
	default:
		return false, fmt.Sprintf("option type %q is not call or put", p.OptionType)
	}
	return true, ""
}

// AdjustForPartialExecution returns a copy reflecting a partial fill:
// Contracts set to the filled count, ExecutionRatio recorded, premium
// and Greeks scaled by the same ratio. Fills above the original count
// are rejected.
func (s *Sizer) AdjustForPartialExecution(p options.Position, filled int) (options.Position, error) {
	if p.Contracts <= 0 {
		return options.Position{}, rerrors.NewInvalidInput("sizer", "adjust_for_partial_execution",
			fmt.Sprintf("position has %d contracts, nothing to fill", p.Contracts))
	}
	if filled < 0 || filled > p.Contracts {
		return options.Position{}, rerrors.NewInvalidInput("sizer", "adjust_for_partial_execution",
			fmt.Sprintf("filled %d outside [0, %d]", filled, p.Contracts))
	}

	ratio := float64(filled) / float64(p.Contracts)
	adjusted := p.Clone()
	adjusted.Contracts = filled
	adjusted.ExecutionRatio = ratio
	adjusted.PremiumCollected = p.PremiumCollected * ratio
	if p.Greeks != nil {
		scaled := p.Greeks.Scale(ratio)
		adjusted.Greeks = &scaled
	}
	return adjusted, nil
}

// AlertOnBreaches reports limit violations through the structured log,
// the breach counter and, when wired, the notifier channel. A full or
// absent channel drops the send rather than blocking the trade path.
func (s *Sizer) AlertOnBreaches(p options.Position, violations []Alert) {
	for _, alert := range violations {
		if alert.Symbol == "" {
			alert.Symbol = p.Symbol
		}

		log.Warn().
			Str("component", "sizer").
			Str("kind", alert.Kind).
			Str("symbol", alert.Symbol).
			Str("severity", alert.Severity).
			Float64("value", alert.Value).
			Float64("limit", alert.Limit).
			Msg(alert.Message)
		monitoring.RecordCheck("sizer", alert.Kind, false)

		if s.notifier == nil {
			continue
		}
		select {
		case s.notifier <- alert:
		default:
			log.Debug().Str("component", "sizer").Str("kind", alert.Kind).
				Msg("Notifier channel full, alert dropped")
		}
	}
}

// BacktestSizingRules replays the sizing rules against historical and
// simulated scenarios. Each scenario's raw drawdown is scaled by the
// allocation limit its regime would have enforced; scaled drawdowns
// beyond DrawdownTolerance are reported as violations. Scenarios run
// concurrently on a bounded worker pool.
func (s *Sizer) BacktestSizingRules(ctx context.Context, scenarios []SizingScenario) (SizingBacktestReport, error) {
	report := SizingBacktestReport{Scenarios: len(scenarios)}
	if len(scenarios) == 0 {
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, sizingBacktestWorkers)
	)

	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(sc SizingScenario) {
			defer wg.Done()
			defer func() { <-sem }()

			raw := sc.SimulatedDrawdown
			if len(sc.Prices) >= 2 {
				raw = maxDrawdownFraction(sc.Prices)
			}

			scale := sc.Regime.AllocationScale()
			if sc.Crisis {
				scale = regime.RegimeCrisis.AllocationScale()
			}
			scaled := raw * scale

			mu.Lock()
			if scaled > report.MaxDrawdown {
				report.MaxDrawdown = scaled
			}
			if scaled > s.cfg.DrawdownTolerance {
				report.DrawdownViolations = append(report.DrawdownViolations, sc.Name)
			}
			mu.Unlock()
		}(scenario)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		monitoring.RecordBacktestRun("sizing", "aborted")
		return report, rerrors.Wrap(err, rerrors.ErrorCategoryTimeout, "sizer", "backtest_sizing_rules")
	}
	monitoring.RecordBacktestRun("sizing", "ok")
	return report, nil
}

// ValidatePosition runs the four sizing gates in order and reports the
// first failure: allocation, diversification, Greeks, margin.
func (s *Sizer) ValidatePosition(p options.Position, port *portfolio.Portfolio, r regime.Regime) (bool, string) {
	if ok, reason := s.CheckAllocation(p, port, r); !ok {
		return false, reason
	}
	if ok, reason := s.CheckDiversification(p, port); !ok {
		return false, reason
	}
	if ok, reason := s.CheckGreeks(p, port); !ok {
		return false, reason
	}
	if ok, reason := s.CheckMargin(p, port); !ok {
		return false, reason
	}
	return true, ""
}

// maxDrawdownFraction returns the largest peak-to-trough decline in the
// series as a fraction of the peak.
func maxDrawdownFraction(prices []float64) float64 {
	peak := prices[0]
	maxDD := 0.0
	for _, price := range prices[1:] {
		if price > peak {
			peak = price
			continue
		}
		if peak > 0 {
			if dd := (peak - price) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
