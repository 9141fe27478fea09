package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// Check names as they appear in decisions and metrics
const (
	CheckInputValid      = "input_valid"
	CheckLossLimit       = "loss_limit"
	CheckStopLossTrigger = "stop_loss"
	CheckAllocation      = "allocation"
	CheckDiversification = "diversification"
	CheckGreeks          = "greeks"
	CheckMargin          = "margin"
	CheckLiquidity       = "liquidity"
)

// EvalRequest bundles the inputs for one admission decision. Snapshot
// is optional; without it the stop-loss triggers are not evaluated.
type EvalRequest struct {
	Position  options.Position        `json:"position"`
	Portfolio *portfolio.Portfolio    `json:"portfolio"`
	Snapshot  *options.MarketSnapshot `json:"snapshot,omitempty"`
	Regime    regime.Regime           `json:"regime"`
}

// Evaluator runs the ordered admission pipeline: structural validity,
// loss checks, sizing gates, then portfolio-level gates. Evaluation is
// synchronous and pure: given the same request and config it returns
// the same decision and touches no shared state.
type Evaluator struct {
	cfg       config.RiskConfig
	loss      *LossManager
	sizer     *Sizer
	framework *Framework
}

// NewEvaluator wires the pipeline over the three risk layers
func NewEvaluator(cfg config.RiskConfig, loss *LossManager, sizer *Sizer, framework *Framework) *Evaluator {
	return &Evaluator{cfg: cfg, loss: loss, sizer: sizer, framework: framework}
}

type pipelineStage struct {
	name string
	run  func() Check
}

// Evaluate runs every admission check against the candidate and
// returns the full decision. Only a structural-validity failure
// short-circuits; all other checks run so the decision lists every
// violation. An expired context at any stage vetoes the trade with a
// "stale risk check" reason.
func (e *Evaluator) Evaluate(ctx context.Context, req EvalRequest) Decision {
	start := time.Now()
	decision := Decision{EvaluatedAt: start.UTC()}

	p := req.Position
	for _, stage := range e.stages(req) {
		if err := ctx.Err(); err != nil {
			return e.staleDecision(decision, start, err)
		}

		check := stage.run()
		check.Name = stage.name
		decision.Checks = append(decision.Checks, check)
		monitoring.RecordCheck("evaluator", check.Name, check.Passed)

		if !check.Passed {
			decision.FailureReasons = append(decision.FailureReasons, fmt.Sprintf("%s: %s", check.Name, check.Detail))
			if decision.Reason == "" {
				decision.Reason = check.Detail
			}
			if check.Name == CheckInputValid {
				break
			}
			if check.Name == CheckLossLimit && req.Portfolio != nil {
				if adjusted, err := e.loss.AdjustForLossLimits(p, req.Portfolio.Value); err == nil {
					decision.AdjustedPosition = &adjusted
				}
			}
		}
	}

	decision.Approved = len(decision.FailureReasons) == 0
	decision.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000

	monitoring.RecordEvaluation(decision.Approved)
	monitoring.ObserveCheckDuration("evaluator", time.Since(start).Seconds())
	log.Debug().
		Str("component", "evaluator").
		Str("symbol", p.Symbol).
		Bool("approved", decision.Approved).
		Int("checks", len(decision.Checks)).
		Str("reason", decision.Reason).
		Msg("Position evaluated")
	return decision
}

func (e *Evaluator) stages(req EvalRequest) []pipelineStage {
	p := req.Position
	return []pipelineStage{
		{CheckInputValid, func() Check {
			if err := p.Validate(); err != nil {
				return Check{Detail: err.Error()}
			}
			return Check{Passed: true}
		}},
		{CheckLossLimit, func() Check {
			potential, err := e.loss.PotentialLoss(p)
			if err != nil {
				return Check{Detail: err.Error()}
			}
			maxLoss, err := e.loss.MaxLossPerTrade(p)
			if err != nil {
				return Check{Detail: err.Error()}
			}
			check := Check{Passed: potential <= maxLoss, Value: potential, Threshold: maxLoss}
			if !check.Passed {
				check.Detail = fmt.Sprintf("potential loss %.2f exceeds max loss per trade %.2f", potential, maxLoss)
			}
			return check
		}},
		{CheckStopLossTrigger, func() Check {
			if req.Snapshot == nil {
				return Check{Passed: true, Detail: "no market snapshot, trigger checks skipped"}
			}
			fired, trigger, reason := e.loss.evalStopLoss(p, *req.Snapshot)
			if fired {
				monitoring.RecordStopLossTrigger(trigger)
				return Check{Detail: reason}
			}
			return Check{Passed: true}
		}},
		{CheckAllocation, func() Check {
			check := Check{Value: p.Notional()}
			if req.Portfolio != nil {
				check.Threshold = e.sizer.RegimeAllocationLimit(req.Regime) * req.Portfolio.Value
			}
			ok, reason := e.sizer.CheckAllocation(p, req.Portfolio, req.Regime)
			check.Passed = ok
			check.Detail = reason
			return check
		}},
		{CheckDiversification, func() Check {
			ok, reason := e.sizer.CheckDiversification(p, req.Portfolio)
			return Check{Passed: ok, Detail: reason}
		}},
		{CheckGreeks, func() Check {
			ok, reason := e.sizer.CheckGreeks(p, req.Portfolio)
			return Check{Passed: ok, Detail: reason}
		}},
		{CheckMargin, func() Check {
			ok, reason := e.sizer.CheckMargin(p, req.Portfolio)
			return Check{Passed: ok, Detail: reason}
		}},
		{CheckLiquidity, func() Check {
			ok, reason := e.framework.checkCandidateLiquidity(p)
			return Check{Passed: ok, Detail: reason, Value: p.SpreadFraction(), Threshold: e.cfg.MaxSpreadFraction}
		}},
	}
}

func (e *Evaluator) staleDecision(decision Decision, start time.Time, cause error) Decision {
	decision.Approved = false
	decision.Reason = fmt.Sprintf("stale risk check: %v", cause)
	decision.FailureReasons = append(decision.FailureReasons, decision.Reason)
	decision.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000

	monitoring.RecordEvaluation(false)
	log.Warn().
		Str("component", "evaluator").
		Err(cause).
		Msg("Evaluation deadline expired, trade vetoed")
	return decision
}
