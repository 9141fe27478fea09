package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/store"
)

// Stress assumptions behind the practical loss estimate: a 5% adverse
// underlying move, a 10-point volatility shift, and five days of decay.
const (
	practicalAdverseMove = 0.05
	practicalVolShift    = 0.10
	practicalDecayDays   = 5.0

	// Relative-error tolerance for a loss prediction to count as accurate
	lossAccuracyTolerance = 0.25
)

// LossManager bounds and monitors worst-case loss for single positions.
// A nil store disables event logging but leaves all calculations usable.
type LossManager struct {
	cfg   config.RiskConfig
	store store.Store
}

// NewLossManager creates a loss manager backed by the given event log
func NewLossManager(cfg config.RiskConfig, st store.Store) *LossManager {
	return &LossManager{cfg: cfg, store: st}
}

// MaxLossPerTrade returns the per-trade loss budget:
// notional (underlying x 100 x contracts) times the configured fraction.
func (m *LossManager) MaxLossPerTrade(p options.Position) (float64, error) {
	if p.UnderlyingPrice <= 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "max_loss_per_trade",
			fmt.Sprintf("underlying price must be positive, got %.4f", p.UnderlyingPrice))
	}
	if p.Contracts < 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "max_loss_per_trade",
			fmt.Sprintf("contracts must not be negative, got %d", p.Contracts))
	}
	return p.UnderlyingPrice * options.ContractMultiplier * float64(p.Contracts) * m.cfg.MaxLossPerTrade, nil
}

// PotentialLoss returns the worst-case dollar loss assuming full
// assignment: (strike - premium) x 100 x contracts.
//
// The same formula is applied to covered calls and cash-secured puts.
// Standard options theory caps a covered call's loss at the stock going
// to zero rather than at the strike; the strike-based figure is kept
// for both types as the established behavior of this model.
func (m *LossManager) PotentialLoss(p options.Position) (float64, error) {
	if p.StrikePrice <= 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "potential_loss",
			fmt.Sprintf("strike price must be positive, got %.4f", p.StrikePrice))
	}
	if p.Contracts < 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "potential_loss",
			fmt.Sprintf("contracts must not be negative, got %d", p.Contracts))
	}
	return (p.StrikePrice - p.PremiumCollected) * options.ContractMultiplier * float64(p.Contracts), nil
}

// PracticalLossPotential estimates a realistic loss under a moderate
// adverse scenario from the position's Greeks: delta and gamma response
// to a 5% move, vega response to a 10-point volatility shift, less five
// days of decay and the premium collected. Never negative. Positions
// without Greeks fall back to the worst-case PotentialLoss.
func (m *LossManager) PracticalLossPotential(p options.Position) (float64, error) {
	if p.UnderlyingPrice <= 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "practical_loss_potential",
			fmt.Sprintf("underlying price must be positive, got %.4f", p.UnderlyingPrice))
	}
	if p.Contracts < 0 {
		return 0, rerrors.NewInvalidInput("loss_manager", "practical_loss_potential",
			fmt.Sprintf("contracts must not be negative, got %d", p.Contracts))
	}
	if p.Greeks == nil {
		return m.PotentialLoss(p)
	}

	move := p.UnderlyingPrice * practicalAdverseMove
	perShare := math.Abs(p.Greeks.Delta)*move +
		0.5*math.Abs(p.Greeks.Gamma)*move*move +
		math.Abs(p.Greeks.Vega)*practicalVolShift -
		math.Abs(p.Greeks.Theta)*practicalDecayDays
	if perShare < 0 {
		perShare = 0
	}

	scale := options.ContractMultiplier * float64(p.Contracts)
	loss := perShare*scale - p.PremiumCollected*scale
	return math.Max(0, loss), nil
}

// CheckStopLoss evaluates the exit triggers against a market snapshot.
// Returns (false, "") when no trigger fires.
func (m *LossManager) CheckStopLoss(p options.Position, snap options.MarketSnapshot) (bool, string) {
	fired, _, reason := m.evalStopLoss(p, snap)
	return fired, reason
}

// evalStopLoss runs the three triggers in priority order, first match
// wins: premium decay, volatility spike, adverse underlying move.
func (m *LossManager) evalStopLoss(p options.Position, snap options.MarketSnapshot) (bool, string, string) {
	if p.PremiumCollected > 0 {
		decay := (p.PremiumCollected - snap.CurrentPremium) / p.PremiumCollected
		if decay >= m.cfg.PremiumDecayThreshold {
			reason := fmt.Sprintf("premium decay %.1f%% breached %.0f%% threshold",
				decay*100, m.cfg.PremiumDecayThreshold*100)
			return true, TriggerPremiumDecay, reason
		}
	}

	if p.ImpliedVolatility > 0 {
		ratio := snap.CurrentVolatility / p.ImpliedVolatility
		if ratio >= m.cfg.VolSpikeRatio {
			reason := fmt.Sprintf("volatility spike %.1f%% breached %.0f%% threshold",
				(ratio-1)*100, (m.cfg.VolSpikeRatio-1)*100)
			return true, TriggerVolSpike, reason
		}
	}

	if p.UnderlyingPrice > 0 {
		move := math.Abs(p.UnderlyingPrice-snap.UnderlyingPrice) / p.UnderlyingPrice
		if move >= m.cfg.AdverseMoveThreshold {
			reason := fmt.Sprintf("underlying moved %.1f%% breached %.0f%% threshold",
				move*100, m.cfg.AdverseMoveThreshold*100)
			return true, TriggerAdverseMove, reason
		}
	}

	return false, "", ""
}

// AdjustForLossLimits returns a copy with contracts reduced, never
// raised, so the worst-case loss fits the portfolio's per-trade budget
// (portfolioValue x MaxLossPerTrade). Contracts floor at zero. Positions
// whose per-contract loss is non-positive are returned unchanged.
func (m *LossManager) AdjustForLossLimits(p options.Position, portfolioValue float64) (options.Position, error) {
	if p.StrikePrice <= 0 {
		return options.Position{}, rerrors.NewInvalidInput("loss_manager", "adjust_for_loss_limits",
			fmt.Sprintf("strike price must be positive, got %.4f", p.StrikePrice))
	}
	if p.Contracts < 0 {
		return options.Position{}, rerrors.NewInvalidInput("loss_manager", "adjust_for_loss_limits",
			fmt.Sprintf("contracts must not be negative, got %d", p.Contracts))
	}

	adjusted := p.Clone()
	perContract := (p.StrikePrice - p.PremiumCollected) * options.ContractMultiplier
	if perContract <= 0 {
		return adjusted, nil
	}

	budget := portfolioValue * m.cfg.MaxLossPerTrade
	if budget < 0 {
		budget = 0
	}

	maxContracts := int(budget / perContract)
	if maxContracts < adjusted.Contracts {
		adjusted.Contracts = maxContracts
	}
	return adjusted, nil
}

// LogRiskMetric appends one immutable event to the risk-event log.
// A failed append is retried once, then surfaced; risk events are
// never dropped silently.
func (m *LossManager) LogRiskMetric(ctx context.Context, symbol, positionID string, lossAmount float64, trigger, reason string) error {
	if m.store == nil {
		log.Debug().Str("component", "loss_manager").Str("symbol", symbol).
			Msg("Risk-event log disabled, metric not persisted")
		return nil
	}

	metric := store.RiskMetric{
		Timestamp:  time.Now().UTC(),
		Symbol:     symbol,
		PositionID: positionID,
		LossAmount: lossAmount,
		Trigger:    trigger,
		Reason:     reason,
	}

	_, err := m.store.Append(ctx, metric)
	if err == nil {
		monitoring.RecordLogAppend("ok")
		return nil
	}

	log.Warn().Err(err).Str("component", "loss_manager").Str("symbol", symbol).
		Msg("Risk-event append failed, retrying once")
	if _, retryErr := m.store.Append(ctx, metric); retryErr == nil {
		monitoring.RecordLogAppend("retried")
		return nil
	}

	monitoring.RecordLogAppend("failed")
	monitoring.RecordError(string(rerrors.ErrorCategoryPersistence))
	return rerrors.NewPersistence("loss_manager", "log_risk_metric", err)
}

// MonitoringDashboard returns the trailing window of risk events in
// ascending timestamp order.
func (m *LossManager) MonitoringDashboard(ctx context.Context, days int) ([]store.RiskMetric, error) {
	if m.store == nil {
		return nil, nil
	}
	if days <= 0 {
		return nil, rerrors.NewInvalidInput("loss_manager", "monitoring_dashboard",
			fmt.Sprintf("days must be positive, got %d", days))
	}

	now := time.Now().UTC()
	tr := store.TimeRange{From: now.Add(-time.Duration(days) * 24 * time.Hour), To: now}

	metrics, err := m.store.Window(ctx, tr, 0)
	if err != nil {
		return nil, err
	}

	// Store returns most recent first; the dashboard reads chronologically.
	for i, j := 0, len(metrics)-1; i < j; i, j = i+1, j-1 {
		metrics[i], metrics[j] = metrics[j], metrics[i]
	}
	return metrics, nil
}

// ValidateLossCalculations back-tests the loss model against realized
// outcomes. A prediction counts as accurate when its relative error is
// within 25%. Positions the model cannot price count as full misses.
func (m *LossManager) ValidateLossCalculations(outcomes []LossOutcome) LossValidationReport {
	if len(outcomes) == 0 {
		return LossValidationReport{}
	}

	accurate := 0
	totalDeviation := 0.0
	for _, outcome := range outcomes {
		deviation := 1.0
		if predicted, err := m.PotentialLoss(outcome.Position); err == nil {
			deviation = relativeDeviation(predicted, outcome.ActualLoss)
		}
		if deviation <= lossAccuracyTolerance {
			accurate++
		}
		totalDeviation += deviation
	}

	n := float64(len(outcomes))
	return LossValidationReport{
		Samples:      len(outcomes),
		AccuracyRate: float64(accurate) / n,
		AvgDeviation: totalDeviation / n,
	}
}

// ValidatePosition is the composite per-position gate: structural
// validity, worst-case loss within the per-trade budget, and no fired
// stop-loss when a snapshot is supplied.
func (m *LossManager) ValidatePosition(p options.Position, snap *options.MarketSnapshot) (bool, string) {
	if err := p.Validate(); err != nil {
		return false, err.Error()
	}

	potential, err := m.PotentialLoss(p)
	if err != nil {
		return false, err.Error()
	}
	maxLoss, err := m.MaxLossPerTrade(p)
	if err != nil {
		return false, err.Error()
	}
	if potential > maxLoss {
		return false, fmt.Sprintf("potential loss %.2f exceeds max loss per trade %.2f", potential, maxLoss)
	}

	if snap != nil {
		if triggered, reason := m.CheckStopLoss(p, *snap); triggered {
			return false, reason
		}
	}

	return true, ""
}

func relativeDeviation(predicted, actual float64) float64 {
	denom := math.Abs(actual)
	if denom < 1e-9 {
		if math.Abs(predicted) < 1e-9 {
			return 0
		}
		return 1.0
	}
	return math.Abs(predicted-actual) / denom
}
