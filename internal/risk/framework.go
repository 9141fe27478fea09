package risk

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// Daily volatility assumed for symbols with no return history. Erring
// high keeps VaR conservative when data is missing.
const defaultDailyVol = 0.02

// Framework computes portfolio-level risk measures and runs the
// systemic monitors. VaR and expected shortfall use a parametric
// variance-covariance model with normal tails; missing return history
// and missing correlation pairs fall back to conservative defaults.
type Framework struct {
	cfg   config.RiskConfig
	loss  *LossManager
	sizer *Sizer
}

// NewFramework wires the framework over the loss and sizing layers
func NewFramework(cfg config.RiskConfig, loss *LossManager, sizer *Sizer) *Framework {
	return &Framework{cfg: cfg, loss: loss, sizer: sizer}
}

// AggregateGreeks sums Greek exposure across the portfolio, theta
// included. This is a descriptive aggregate: positions without Greeks
// contribute zero here, while admission checks fail them closed.
func (f *Framework) AggregateGreeks(port *portfolio.Portfolio) options.Greeks {
	var agg options.Greeks
	if port == nil {
		return agg
	}
	for _, p := range port.Positions {
		if p.Greeks != nil {
			agg = agg.Add(*p.Greeks)
		}
	}
	return agg
}

// VaR returns the parametric value-at-risk in dollars at the highest
// configured confidence level. Portfolio volatility comes from
// per-symbol return vols weighted by notional and the pairwise
// correlation matrix. Never negative; zero for an empty portfolio.
func (f *Framework) VaR(port *portfolio.Portfolio, returns map[string][]float64) (float64, error) {
	sigma, value, err := f.portfolioSigma(port, returns)
	if err != nil {
		return 0, err
	}
	if sigma == 0 || value <= 0 {
		return 0, nil
	}
	return zScore(f.highestConfidence()) * sigma * value, nil
}

// ExpectedShortfall returns the expected tail loss in dollars for every
// configured confidence level. Under normal tails ES = sigma x V x
// phi(z)/(1-c), which rises with the confidence level.
func (f *Framework) ExpectedShortfall(port *portfolio.Portfolio, returns map[string][]float64) (map[float64]float64, error) {
	sigma, value, err := f.portfolioSigma(port, returns)
	if err != nil {
		return nil, err
	}

	es := make(map[float64]float64, len(f.cfg.ESConfidenceLevels))
	for _, c := range f.cfg.ESConfidenceLevels {
		if sigma == 0 || value <= 0 {
			es[c] = 0
			continue
		}
		z := zScore(c)
		es[c] = sigma * value * normPDF(z) / (1 - c)
	}
	return es, nil
}

// UpdateCorrelationMatrix builds the pairwise Pearson correlation
// matrix over the portfolio's symbol set. The diagonal is exactly 1;
// pairs without overlapping history are assumed fully correlated.
func (f *Framework) UpdateCorrelationMatrix(port *portfolio.Portfolio, returns map[string][]float64) *CorrelationMatrix {
	symbols := []string{}
	if port != nil {
		symbols = port.Symbols()
	}

	values := make([][]float64, len(symbols))
	for i := range symbols {
		values[i] = make([]float64, len(symbols))
		values[i][i] = 1.0
	}
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			rho, ok := pearson(returns[symbols[i]], returns[symbols[j]])
			if !ok {
				rho = 1.0
			}
			values[i][j] = rho
			values[j][i] = rho
		}
	}
	return &CorrelationMatrix{Symbols: symbols, Values: values}
}

// MonitorLiquidityRisk flags open positions whose bid-ask spread is
// wider than MaxSpreadFraction or whose volume is below MinOptionVolume.
func (f *Framework) MonitorLiquidityRisk(port *portfolio.Portfolio) []Alert {
	if port == nil {
		return nil
	}

	var alerts []Alert
	for _, p := range port.Positions {
		if frac := p.SpreadFraction(); frac > f.cfg.MaxSpreadFraction {
			alerts = append(alerts, Alert{
				Kind:     "liquidity_spread",
				Symbol:   p.Symbol,
				Severity: "warning",
				Message:  fmt.Sprintf("bid-ask spread %.1f%% of mid exceeds %.0f%% limit", frac*100, f.cfg.MaxSpreadFraction*100),
				Value:    frac,
				Limit:    f.cfg.MaxSpreadFraction,
			})
		}
		if p.Volume < f.cfg.MinOptionVolume {
			alerts = append(alerts, Alert{
				Kind:     "liquidity_volume",
				Symbol:   p.Symbol,
				Severity: "warning",
				Message:  fmt.Sprintf("volume %d below minimum %d", p.Volume, f.cfg.MinOptionVolume),
				Value:    float64(p.Volume),
				Limit:    float64(f.cfg.MinOptionVolume),
			})
		}
	}
	return alerts
}

// MonitorCounterpartyRisk flags brokers holding more than
// CounterpartyLimit of total notional exposure.
func (f *Framework) MonitorCounterpartyRisk(port *portfolio.Portfolio) []Alert {
	if port == nil {
		return nil
	}

	exposure := port.BrokerExposure()
	brokers := make([]string, 0, len(exposure))
	for broker := range exposure {
		brokers = append(brokers, broker)
	}
	sort.Strings(brokers)

	var alerts []Alert
	for _, broker := range brokers {
		share := exposure[broker]
		if share > f.cfg.CounterpartyLimit {
			alerts = append(alerts, Alert{
				Kind:     "counterparty",
				Symbol:   broker,
				Severity: "warning",
				Message:  fmt.Sprintf("broker %s holds %.1f%% of notional, limit %.0f%%", broker, share*100, f.cfg.CounterpartyLimit*100),
				Value:    share,
				Limit:    f.cfg.CounterpartyLimit,
			})
		}
	}
	return alerts
}

// CheckRebalancingTriggers recommends rebalancing actions when sector
// concentration, aggregate delta or VaR breach their thresholds.
func (f *Framework) CheckRebalancingTriggers(port *portfolio.Portfolio, returns map[string][]float64) []Recommendation {
	if port == nil {
		return nil
	}

	var recs []Recommendation

	seen := map[options.Sector]bool{}
	for _, p := range port.Positions {
		if seen[p.Sector] {
			continue
		}
		seen[p.Sector] = true
		if conc := port.SectorConcentration(p.Sector, 0); conc > f.cfg.MaxSectorConcentration {
			recs = append(recs, Recommendation{
				Action: "trim_sector",
				Target: p.Sector.String(),
				Detail: fmt.Sprintf("concentration %.1f%% exceeds %.0f%% limit", conc*100, f.cfg.MaxSectorConcentration*100),
			})
		}
	}

	agg := f.AggregateGreeks(port)
	if math.Abs(agg.Delta) > f.cfg.DeltaLimit {
		recs = append(recs, Recommendation{
			Action: "reduce_delta",
			Detail: fmt.Sprintf("aggregate delta %.4f exceeds limit %.4f", agg.Delta, f.cfg.DeltaLimit),
		})
	}

	if valueAtRisk, err := f.VaR(port, returns); err == nil {
		budget := port.Value * f.cfg.MaxLossPerTrade
		if valueAtRisk > budget {
			recs = append(recs, Recommendation{
				Action: "reduce_var",
				Detail: fmt.Sprintf("VaR %.2f exceeds portfolio loss budget %.2f", valueAtRisk, budget),
			})
		}
	}
	return recs
}

// DashboardData assembles the full risk dashboard from one portfolio
// snapshot. Greeks, VaR/ES, correlations and sector exposure are
// computed concurrently over the same snapshot, so the sections are
// consistent with each other at the generation instant.
func (f *Framework) DashboardData(port *portfolio.Portfolio, returns map[string][]float64) (*DashboardSnapshot, error) {
	if port == nil {
		return nil, rerrors.NewInvalidInput("framework", "dashboard_data", "portfolio snapshot is required")
	}

	snap := port.Snapshot()
	dashboard := &DashboardSnapshot{
		PortfolioValue: snap.Value,
		PositionCount:  snap.OpenCount(),
		GeneratedAt:    time.Now().UTC(),
	}

	var (
		wg     sync.WaitGroup
		varErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		dashboard.Greeks = f.AggregateGreeks(snap)
	}()
	go func() {
		defer wg.Done()
		valueAtRisk, err := f.VaR(snap, returns)
		if err != nil {
			varErr = err
			return
		}
		es, err := f.ExpectedShortfall(snap, returns)
		if err != nil {
			varErr = err
			return
		}
		dashboard.VaR = valueAtRisk
		dashboard.ExpectedShortfall = make(map[string]float64, len(es))
		for c, v := range es {
			dashboard.ExpectedShortfall[strconv.FormatFloat(c, 'g', -1, 64)] = v
		}
	}()
	go func() {
		defer wg.Done()
		dashboard.Correlations = f.UpdateCorrelationMatrix(snap, returns)
	}()
	go func() {
		defer wg.Done()
		dashboard.SectorExposure = sectorExposure(snap)
	}()
	wg.Wait()

	if varErr != nil {
		return nil, varErr
	}

	monitoring.UpdateVaR(strconv.FormatFloat(f.highestConfidence(), 'g', -1, 64), dashboard.VaR)
	monitoring.UpdateGreekExposure("delta", dashboard.Greeks.Delta)
	monitoring.UpdateGreekExposure("gamma", dashboard.Greeks.Gamma)
	monitoring.UpdateGreekExposure("theta", dashboard.Greeks.Theta)
	monitoring.UpdateGreekExposure("vega", dashboard.Greeks.Vega)
	monitoring.UpdateGreekExposure("rho", dashboard.Greeks.Rho)
	return dashboard, nil
}

// ValidateRiskFramework scores the VaR model against labelled
// historical periods: a breach is a realized loss beyond the period's
// VaR, and the score reflects how close the observed breach rate comes
// to the rate the confidence level implies.
func (f *Framework) ValidateRiskFramework(port *portfolio.Portfolio, periods []HistoricalPeriod) (FrameworkValidationReport, error) {
	if len(periods) == 0 {
		return FrameworkValidationReport{}, rerrors.NewDataUnavailable("framework", "validate_risk_framework",
			"no historical periods supplied")
	}

	breaches := 0
	for _, period := range periods {
		valueAtRisk, err := f.VaR(port, period.Returns)
		if err != nil {
			return FrameworkValidationReport{}, err
		}
		if period.RealizedLoss > valueAtRisk {
			breaches++
		}
	}

	n := float64(len(periods))
	expected := 1 - f.highestConfidence()
	rate := float64(breaches) / n
	score := 1 - math.Abs(rate-expected)
	if score < 0 {
		score = 0
	}

	return FrameworkValidationReport{
		Periods:               len(periods),
		Breaches:              breaches,
		BreachRate:            rate,
		ExpectedBreachRate:    expected,
		OverallFrameworkScore: score,
	}, nil
}

// ValidatePosition is the top-level admission gate: the loss checks,
// the sizing gates and the candidate's own liquidity must all pass.
func (f *Framework) ValidatePosition(p options.Position, port *portfolio.Portfolio, snap *options.MarketSnapshot, r regime.Regime) (bool, string) {
	if ok, reason := f.loss.ValidatePosition(p, snap); !ok {
		return false, reason
	}
	if ok, reason := f.sizer.ValidatePosition(p, port, r); !ok {
		return false, reason
	}
	return f.checkCandidateLiquidity(p)
}

func (f *Framework) checkCandidateLiquidity(p options.Position) (bool, string) {
	if frac := p.SpreadFraction(); frac > f.cfg.MaxSpreadFraction {
		return false, fmt.Sprintf("bid-ask spread %.1f%% of mid exceeds %.0f%% limit",
			frac*100, f.cfg.MaxSpreadFraction*100)
	}
	if p.Volume < f.cfg.MinOptionVolume {
		return false, fmt.Sprintf("volume %d below minimum %d", p.Volume, f.cfg.MinOptionVolume)
	}
	return true, ""
}

// portfolioSigma returns the portfolio's daily return volatility and
// value. Weights are notional shares of portfolio value; symbols with
// no usable return history get defaultDailyVol.
func (f *Framework) portfolioSigma(port *portfolio.Portfolio, returns map[string][]float64) (sigma, value float64, err error) {
	if port == nil {
		return 0, 0, rerrors.NewInvalidInput("framework", "portfolio_sigma", "portfolio snapshot is required")
	}
	if port.Value <= 0 || port.OpenCount() == 0 {
		return 0, port.Value, nil
	}

	symbols := port.Symbols()
	weights := make([]float64, len(symbols))
	vols := make([]float64, len(symbols))
	for i, sym := range symbols {
		notional := 0.0
		for _, p := range port.Positions {
			if p.Symbol == sym {
				notional += p.Notional()
			}
		}
		weights[i] = notional / port.Value
		vols[i] = dailyVol(returns[sym])
	}

	variance := 0.0
	for i := range symbols {
		for j := range symbols {
			rho := 1.0
			if i != j {
				if r, ok := pearson(returns[symbols[i]], returns[symbols[j]]); ok {
					rho = r
				}
			}
			variance += weights[i] * weights[j] * vols[i] * vols[j] * rho
		}
	}
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), port.Value, nil
}

func (f *Framework) highestConfidence() float64 {
	highest := 0.0
	for _, c := range f.cfg.ESConfidenceLevels {
		if c > highest {
			highest = c
		}
	}
	if highest == 0 {
		highest = 0.99
	}
	return highest
}

// dailyVol returns the sample standard deviation of a return series,
// or defaultDailyVol when the series is too short to estimate.
func dailyVol(returns []float64) float64 {
	if len(returns) < 2 {
		return defaultDailyVol
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	sumSq := 0.0
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)-1))
}

// pearson returns the correlation over the trailing overlap of two
// return series. ok is false when the overlap is too short or either
// series has no variance.
func pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0, false
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	meanA, meanB := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}

// zScore returns the standard-normal quantile for confidence level c
func zScore(c float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*c-1)
}

// normPDF is the standard normal density at z
func normPDF(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}

// sectorExposure returns each sector's share of portfolio value
func sectorExposure(port *portfolio.Portfolio) map[string]float64 {
	exposure := map[string]float64{}
	if port == nil || port.Value <= 0 {
		return exposure
	}
	for _, p := range port.Positions {
		exposure[p.Sector.String()] += p.Notional() / port.Value
	}
	return exposure
}
