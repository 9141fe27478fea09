package server

import (
	"context"

	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
	"github.com/htn332805/RemDarwin-sub003/internal/store"
)

// RiskService is the surface the HTTP handlers call into. It exists so
// handler tests can substitute a stub without standing up the full
// engine stack.
type RiskService interface {
	Dashboard(ctx context.Context) (*risk.DashboardSnapshot, error)
	MetricsWindow(ctx context.Context, days int) ([]store.RiskMetric, error)
	EvaluatePosition(ctx context.Context, req risk.EvalRequest) (risk.Decision, error)
}

// BookSource supplies the open-position book and the per-symbol return
// history the portfolio aggregates are computed from. The trade
// management layer owns both; the server only reads.
type BookSource interface {
	Portfolio() *portfolio.Portfolio
	Returns(ctx context.Context) (map[string][]float64, error)
}

// Service implements RiskService over the engine layers
type Service struct {
	evaluator *risk.Evaluator
	loss      *risk.LossManager
	framework *risk.Framework
	book      BookSource
}

func NewService(evaluator *risk.Evaluator, loss *risk.LossManager, framework *risk.Framework, book BookSource) *Service {
	return &Service{
		evaluator: evaluator,
		loss:      loss,
		framework: framework,
		book:      book,
	}
}

// Dashboard assembles the portfolio-level risk snapshot from the
// current book and its return history.
func (s *Service) Dashboard(ctx context.Context) (*risk.DashboardSnapshot, error) {
	returns, err := s.book.Returns(ctx)
	if err != nil {
		return nil, err
	}
	return s.framework.DashboardData(s.book.Portfolio(), returns)
}

// MetricsWindow returns the trailing days of risk events in
// chronological order.
func (s *Service) MetricsWindow(ctx context.Context, days int) ([]store.RiskMetric, error) {
	return s.loss.MonitoringDashboard(ctx, days)
}

// EvaluatePosition runs the admission pipeline against the request.
// A request without a portfolio snapshot is evaluated against the live
// book. Rejections are appended to the risk-event log; a log append
// that fails after its retry comes back as the error alongside the
// decision, so the caller knows the rejection was decided but not
// durably recorded.
func (s *Service) EvaluatePosition(ctx context.Context, req risk.EvalRequest) (risk.Decision, error) {
	if req.Portfolio == nil {
		req.Portfolio = s.book.Portfolio()
	}

	decision := s.evaluator.Evaluate(ctx, req)
	if decision.Approved {
		return decision, nil
	}

	err := s.loss.LogRiskMetric(ctx, req.Position.Symbol, req.Position.ID, rejectedLossAmount(decision), "", decision.Reason)
	return decision, err
}

// rejectedLossAmount pulls the potential loss the loss-limit gate
// computed, when the pipeline got that far.
func rejectedLossAmount(decision risk.Decision) float64 {
	for _, check := range decision.Checks {
		if check.Name == risk.CheckLossLimit {
			return check.Value
		}
	}
	return 0
}
