package backtest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

type mapProvider struct {
	series map[string][]types.OHLCV
}

func (p *mapProvider) LoadData(_ context.Context, symbol, _ string) ([]types.OHLCV, error) {
	s, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return s, nil
}

func (p *mapProvider) ValidateData([]types.OHLCV) error { return nil }

func (p *mapProvider) GetName() string { return "Map Provider" }

func candlesFrom(start time.Time, prices []float64) []types.OHLCV {
	candles := make([]types.OHLCV, len(prices))
	for i, price := range prices {
		candles[i] = types.OHLCV{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func steadyPrices(n int, start, dailyRet float64) []float64 {
	prices := make([]float64, n)
	price := start
	for i := range prices {
		prices[i] = price
		price *= 1 + dailyRet
	}
	return prices
}

func newTestValidator(cfg config.RiskConfig, series map[string][]types.OHLCV) *Validator {
	return NewValidator(cfg, &mapProvider{series: series}, "D")
}

func findRegime(t *testing.T, rep *MultiRegimeReport, reg regime.Regime) RegimeResult {
	t.Helper()
	for _, res := range rep.Results {
		if res.Regime == reg {
			return res
		}
	}
	t.Fatalf("no result for regime %s", reg)
	return RegimeResult{}
}

func TestValidator_AcquireHistoricalData(t *testing.T) {
	now := time.Now()
	old := candlesFrom(now.AddDate(-2, 0, 0), steadyPrices(20, 100, 0.001))
	recent := candlesFrom(now.AddDate(0, 0, -10), steadyPrices(10, 110, 0.001))

	v := newTestValidator(config.DefaultRiskConfig(), map[string][]types.OHLCV{
		"AAPL": append(append([]types.OHLCV{}, old...), recent...),
		"MSFT": recent,
	})

	dataset, err := v.AcquireHistoricalData(context.Background(), []string{"AAPL", "MSFT"}, 1)
	require.NoError(t, err)

	require.Len(t, dataset, 2)
	assert.Len(t, dataset["AAPL"], 10, "bars older than the horizon are trimmed")
	assert.Len(t, dataset["MSFT"], 10)
}

func TestValidator_AcquireHistoricalData_MissingSymbolsFailClosed(t *testing.T) {
	now := time.Now()
	v := newTestValidator(config.DefaultRiskConfig(), map[string][]types.OHLCV{
		"AAPL": candlesFrom(now.AddDate(0, 0, -10), steadyPrices(10, 100, 0.001)),
	})

	_, err := v.AcquireHistoricalData(context.Background(), []string{"AAPL", "TSLA", "NVDA"}, 1)
	require.Error(t, err)
	assert.True(t, rerrors.IsDataUnavailable(err))
	assert.Contains(t, err.Error(), "TSLA")
	assert.Contains(t, err.Error(), "NVDA")
}

func TestValidator_AcquireHistoricalData_RejectsBadInput(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)

	_, err := v.AcquireHistoricalData(context.Background(), nil, 2)
	assert.True(t, rerrors.IsInvalidInput(err))

	_, err = v.AcquireHistoricalData(context.Background(), []string{"AAPL"}, 0)
	assert.True(t, rerrors.IsInvalidInput(err))
}

func TestValidator_AcquireHistoricalData_StaleContext(t *testing.T) {
	now := time.Now()
	v := newTestValidator(config.DefaultRiskConfig(), map[string][]types.OHLCV{
		"AAPL": candlesFrom(now.AddDate(0, 0, -10), steadyPrices(10, 100, 0.001)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.AcquireHistoricalData(ctx, []string{"AAPL"}, 1)
	require.Error(t, err)
	assert.True(t, rerrors.IsCategory(err, rerrors.ErrorCategoryTimeout))
}

func TestValidator_RunMultiRegimeBacktest_EveryRequestedRegimePresent(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dataset := map[string][]types.OHLCV{
		"BULL": candlesFrom(start, steadyPrices(61, 100, 0.005)),
		"BEAR": candlesFrom(start, steadyPrices(61, 100, -0.005)),
	}
	v := newTestValidator(config.DefaultRiskConfig(), dataset)

	rep, err := v.RunMultiRegimeBacktest(context.Background(), dataset, regime.All())
	require.NoError(t, err)

	require.Len(t, rep.Results, len(regime.All()))
	for i, reg := range regime.All() {
		assert.Equal(t, reg, rep.Results[i].Regime, "results preserve requested order")
	}
	assert.Equal(t, []string{"BEAR", "BULL"}, rep.Symbols)
	assert.Len(t, rep.RunID, 26)

	bull := findRegime(t, rep, regime.RegimeBull)
	assert.Equal(t, 56, bull.Bars)
	assert.False(t, bull.Sparse)
	assert.Empty(t, bull.Failure)
	assert.Greater(t, bull.TotalReturn, 0.0)
	assert.InDelta(t, 0.05, bull.Allocation, 1e-12)

	bear := findRegime(t, rep, regime.RegimeBear)
	assert.Equal(t, 56, bear.Bars)
	assert.Less(t, bear.TotalReturn, 0.0)
	assert.InDelta(t, 0.03, bear.Allocation, 1e-12, "bear regime scales the allocation by 0.6")

	normal := findRegime(t, rep, regime.RegimeNormal)
	assert.Equal(t, 8, normal.Bars, "warmup bars before the classifier window fills")

	for _, reg := range []regime.Regime{regime.RegimeHighVolatility, regime.RegimeCrisis} {
		res := findRegime(t, rep, reg)
		assert.True(t, res.Sparse, "%s had no matching bars", reg)
		assert.Equal(t, 0, res.Bars)
		assert.Empty(t, res.Failure)
	}
}

func TestValidator_RunMultiRegimeBacktest_IsolatesPartitionFailure(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	badPrices := []float64{100, 100, 100, 100, 100, math.NaN(), 100, 100, 100, 100, 100}
	dataset := map[string][]types.OHLCV{
		"GOOD": candlesFrom(start, steadyPrices(61, 100, 0.005)),
		"BAD":  candlesFrom(start, badPrices),
	}
	v := newTestValidator(config.DefaultRiskConfig(), dataset)

	regimes := []regime.Regime{regime.RegimeNormal, regime.RegimeBull, regime.RegimeCrisis}
	rep, err := v.RunMultiRegimeBacktest(context.Background(), dataset, regimes)
	require.NoError(t, err, "one bad partition must not abort the batch")

	normal := findRegime(t, rep, regime.RegimeNormal)
	assert.Contains(t, normal.Failure, "non-finite return")
	assert.False(t, normal.Sparse)

	bull := findRegime(t, rep, regime.RegimeBull)
	assert.Empty(t, bull.Failure)
	assert.Equal(t, 56, bull.Bars)

	crisis := findRegime(t, rep, regime.RegimeCrisis)
	assert.True(t, crisis.Sparse)
}

func TestValidator_RunMultiRegimeBacktest_Guards(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dataset := map[string][]types.OHLCV{
		"AAPL": candlesFrom(start, steadyPrices(61, 100, 0.005)),
	}

	_, err := v.RunMultiRegimeBacktest(context.Background(), nil, regime.All())
	assert.True(t, rerrors.IsDataUnavailable(err))

	_, err = v.RunMultiRegimeBacktest(context.Background(), dataset, nil)
	assert.True(t, rerrors.IsInvalidInput(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.RunMultiRegimeBacktest(ctx, dataset, regime.All())
	require.Error(t, err)
	assert.True(t, rerrors.IsCategory(err, rerrors.ErrorCategoryTimeout))
}

func TestValidator_RunWalkForward_WindowCountGrowsWithData(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg := config.DefaultRiskConfig()

	short := map[string][]types.OHLCV{
		"AAPL": candlesFrom(start, steadyPrices(50, 100, 0.003)),
	}
	long := map[string][]types.OHLCV{
		"AAPL": candlesFrom(start, steadyPrices(80, 100, 0.003)),
	}

	shortRep, err := newTestValidator(cfg, short).RunWalkForward(context.Background(), short, 40)
	require.NoError(t, err)
	longRep, err := newTestValidator(cfg, long).RunWalkForward(context.Background(), long, 40)
	require.NoError(t, err)

	assert.Len(t, shortRep.Windows, 1)
	assert.Len(t, longRep.Windows, 4)
	assert.Greater(t, len(longRep.Windows), len(shortRep.Windows),
		"window count grows with data length")

	w := shortRep.Windows[0]
	assert.Equal(t, 0, w.Index)
	assert.Equal(t, "AAPL", w.Symbol)
	assert.Equal(t, 40, w.TrainBars)
	assert.Equal(t, 10, w.TestBars)
	assert.True(t, w.TrainEnd.Before(w.TestStart), "test slice follows the training slice")
	assert.Greater(t, w.TestReturn, 0.0)
	assert.False(t, math.IsNaN(shortRep.AvgSharpe))
	assert.Len(t, shortRep.RunID, 26)

	for i, win := range longRep.Windows {
		assert.Equal(t, i, win.Index)
	}
}

func TestValidator_RunWalkForward_Guards(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg := config.DefaultRiskConfig()
	dataset := map[string][]types.OHLCV{
		"AAPL": candlesFrom(start, steadyPrices(30, 100, 0.003)),
	}
	v := newTestValidator(cfg, dataset)

	_, err := v.RunWalkForward(context.Background(), nil, 40)
	assert.True(t, rerrors.IsDataUnavailable(err))

	_, err = v.RunWalkForward(context.Background(), dataset, 10)
	assert.True(t, rerrors.IsInvalidInput(err))

	_, err = v.RunWalkForward(context.Background(), dataset, 40)
	assert.True(t, rerrors.IsDataUnavailable(err), "too little history for one window")

	_, err = v.RunWalkForward(context.Background(), dataset, 0)
	assert.True(t, rerrors.IsDataUnavailable(err), "default window needs a year of bars")

	bigger := map[string][]types.OHLCV{
		"AAPL": candlesFrom(start, steadyPrices(50, 100, 0.003)),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestValidator(cfg, bigger).RunWalkForward(ctx, bigger, 40)
	require.Error(t, err)
	assert.True(t, rerrors.IsCategory(err, rerrors.ErrorCategoryTimeout))
}

func TestValidator_TransactionCosts(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)

	t.Run("quoted spread", func(t *testing.T) {
		p := options.Position{Symbol: "AAPL", Contracts: 2, Bid: 1.98, Ask: 2.02}
		cost, err := v.TransactionCosts(p, 2.0)
		require.NoError(t, err)
		assert.InDelta(t, 0.65*2+0.02*100*2, cost, 1e-9)
		assert.Greater(t, cost, 0.0)
	})

	t.Run("bps fallback without quote", func(t *testing.T) {
		p := options.Position{Symbol: "AAPL", Contracts: 1}
		cost, err := v.TransactionCosts(p, 2.0)
		require.NoError(t, err)
		assert.InDelta(t, 0.65+2.0*0.005*100, cost, 1e-9)
	})

	t.Run("commission only", func(t *testing.T) {
		p := options.Position{Symbol: "AAPL", Contracts: 1}
		cost, err := v.TransactionCosts(p, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.65, cost, 1e-9)
	})

	t.Run("zero commission still positive", func(t *testing.T) {
		cfg := config.DefaultRiskConfig()
		cfg.CommissionPerContract = 0
		free := newTestValidator(cfg, nil)

		cost, err := free.TransactionCosts(options.Position{Contracts: 1}, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.01, cost)
	})

	t.Run("non-positive contracts rejected", func(t *testing.T) {
		_, err := v.TransactionCosts(options.Position{Contracts: 0}, 2.0)
		assert.True(t, rerrors.IsInvalidInput(err))
	})
}

func TestValidator_PerformanceAttribution_SumsToTotal(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)
	params := defaultSimulationParams(config.DefaultRiskConfig())

	sim, err := simulateShortPremium([]float64{0.004, -0.5, 0.002, -0.006, 0.001}, 0.05, params)
	require.NoError(t, err)
	require.Equal(t, 1, sim.StopOuts)

	att, err := v.PerformanceAttribution(sim)
	require.NoError(t, err)

	assert.InDelta(t, sim.NetPnL, att.Total, 1e-12)
	sum := att.PremiumDecayContribution + att.UnderlyingMoveContribution +
		att.VolatilityContribution + att.Residual
	assert.InDelta(t, att.Total, sum, 1e-12, "contributions reconstruct total PnL")
	assert.Greater(t, att.Residual, 0.0, "stop rule clawed back part of the raw loss")
	assert.Greater(t, att.PremiumDecayContribution, 0.0)
	assert.Less(t, att.VolatilityContribution, 0.0)
}

func TestValidator_PerformanceAttribution_NilResult(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)

	_, err := v.PerformanceAttribution(nil)
	assert.True(t, rerrors.IsInvalidInput(err))
}

func TestValidator_CalibrateParameters(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	// Alternating +2%/-2% returns: zero mean, ~2% daily volatility.
	prices := make([]float64, 101)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		if i%2 == 1 {
			prices[i] = prices[i-1] * 1.02
		} else {
			prices[i] = prices[i-1] * 0.98
		}
	}

	cal, err := v.CalibrateParameters(candlesFrom(start, prices))
	require.NoError(t, err)

	assert.InDelta(t, 0.3191, cal.Volatility, 1e-3)
	assert.InDelta(t, 0.0, cal.Drift, 1e-9)
	assert.InDelta(t, 0.000804, cal.PremiumYield, 1e-5)
	assert.InDelta(t, 0.201, cal.PremiumDecayThreshold, 1e-3)
	assert.InDelta(t, 1.5025, cal.VolSpikeRatio, 1e-3)
	assert.InDelta(t, 0.1005, cal.AdverseMoveThreshold, 1e-3)
}

func TestValidator_CalibrateParameters_InsufficientData(t *testing.T) {
	v := newTestValidator(config.DefaultRiskConfig(), nil)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := v.CalibrateParameters(candlesFrom(start, []float64{100, 101}))
	assert.True(t, rerrors.IsDataUnavailable(err))
}

func TestCalibratedParameters_ApplyTo(t *testing.T) {
	cfg := config.DefaultRiskConfig()

	cal := CalibratedParameters{
		PremiumDecayThreshold: 0.25,
		VolSpikeRatio:         1.8,
		AdverseMoveThreshold:  0.12,
	}
	applied := cal.ApplyTo(cfg)
	assert.Equal(t, 0.25, applied.PremiumDecayThreshold)
	assert.Equal(t, 1.8, applied.VolSpikeRatio)
	assert.Equal(t, 0.12, applied.AdverseMoveThreshold)
	assert.Equal(t, cfg.MaxLossPerTrade, applied.MaxLossPerTrade, "unrelated thresholds untouched")

	unchanged := CalibratedParameters{}.ApplyTo(cfg)
	assert.Equal(t, cfg, unchanged)
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)

	_, err := ulid.Parse(a)
	assert.NoError(t, err)
}
