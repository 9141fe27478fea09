package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admission pipeline metrics
	riskChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_checks_total",
			Help: "Total number of risk checks evaluated",
		},
		[]string{"component", "check", "result"},
	)

	checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_engine_check_duration_seconds",
			Help:    "Duration of risk check evaluations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	positionsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_positions_evaluated_total",
			Help: "Total number of candidate positions evaluated",
		},
		[]string{"approved"},
	)

	// Stop-loss metrics
	stopLossTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_stop_loss_triggers_total",
			Help: "Total number of stop-loss trigger firings",
		},
		[]string{"trigger"},
	)

	// Risk-event log metrics
	logAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_log_appends_total",
			Help: "Total number of risk-event log appends",
		},
		[]string{"status"},
	)

	// Portfolio exposure metrics
	portfolioVaR = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_portfolio_var_dollars",
			Help: "Latest portfolio value at risk in dollars",
		},
		[]string{"confidence"},
	)

	greekExposure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_greek_exposure",
			Help: "Latest aggregate portfolio Greek exposure",
		},
		[]string{"greek"},
	)

	// Backtest metrics
	backtestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_backtest_runs_total",
			Help: "Total number of backtest runs",
		},
		[]string{"kind", "status"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(riskChecksTotal)
	prometheus.MustRegister(checkDuration)
	prometheus.MustRegister(positionsEvaluated)
	prometheus.MustRegister(stopLossTriggers)
	prometheus.MustRegister(logAppends)
	prometheus.MustRegister(portfolioVaR)
	prometheus.MustRegister(greekExposure)
	prometheus.MustRegister(backtestRuns)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordCheck records one named risk check outcome
func RecordCheck(component, check string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	riskChecksTotal.WithLabelValues(component, check, result).Inc()
}

// ObserveCheckDuration records how long a component evaluation took
func ObserveCheckDuration(component string, seconds float64) {
	checkDuration.WithLabelValues(component).Observe(seconds)
}

// RecordEvaluation records a full pipeline decision
func RecordEvaluation(approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	positionsEvaluated.WithLabelValues(label).Inc()
}

// RecordStopLossTrigger records which condition fired
func RecordStopLossTrigger(trigger string) {
	stopLossTriggers.WithLabelValues(trigger).Inc()
}

// RecordLogAppend records a risk-event log append outcome
func RecordLogAppend(status string) {
	logAppends.WithLabelValues(status).Inc()
}

// UpdateVaR updates the portfolio value-at-risk gauge
func UpdateVaR(confidence string, dollars float64) {
	portfolioVaR.WithLabelValues(confidence).Set(dollars)
}

// UpdateGreekExposure updates one aggregate Greek gauge
func UpdateGreekExposure(greek string, value float64) {
	greekExposure.WithLabelValues(greek).Set(value)
}

// RecordBacktestRun records a backtest run outcome
func RecordBacktestRun(kind, status string) {
	backtestRuns.WithLabelValues(kind, status).Inc()
}

// RecordError records an error metric by category
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
