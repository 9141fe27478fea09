package risk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

func newTestFramework(cfg config.RiskConfig) *Framework {
	return NewFramework(cfg, NewLossManager(cfg, nil), NewSizer(cfg, nil))
}

func hasAction(recs []Recommendation, action string) bool {
	for _, rec := range recs {
		if rec.Action == action {
			return true
		}
	}
	return false
}

func TestFramework_AggregateGreeks(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
	a.Greeks = &options.Greeks{Delta: -0.10, Gamma: 0.02, Theta: -0.05, Vega: 0.10, Rho: 0.02}
	b := options.NewPosition("MSFT", options.OptionCall, 320, 4, 300, 1)
	b.Greeks = &options.Greeks{Delta: -0.05, Gamma: 0.01, Theta: -0.02, Vega: 0.05, Rho: 0.01}
	c := options.NewPosition("XOM", options.OptionPut, 90, 1, 95, 1) // no greeks

	agg := f.AggregateGreeks(newTestPortfolio(1000000, a, b, c))
	assert.InDelta(t, -0.15, agg.Delta, 1e-12)
	assert.InDelta(t, 0.03, agg.Gamma, 1e-12)
	assert.InDelta(t, -0.07, agg.Theta, 1e-12)
	assert.InDelta(t, 0.15, agg.Vega, 1e-12)
	assert.InDelta(t, 0.03, agg.Rho, 1e-12)
}

func TestFramework_AggregateGreeks_EmptyPortfolio(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())
	assert.Equal(t, options.Greeks{}, f.AggregateGreeks(newTestPortfolio(100000)))
	assert.Equal(t, options.Greeks{}, f.AggregateGreeks(nil))
}

func TestFramework_VaR(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	t.Run("nil portfolio", func(t *testing.T) {
		_, err := f.VaR(nil, nil)
		require.Error(t, err)
		assert.True(t, rerrors.IsInvalidInput(err))
	})

	t.Run("empty portfolio is riskless", func(t *testing.T) {
		valueAtRisk, err := f.VaR(newTestPortfolio(100000), nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, valueAtRisk)
	})

	t.Run("missing history uses the conservative default vol", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 4) // notional 40000
		port := newTestPortfolio(1000000, p)

		valueAtRisk, err := f.VaR(port, nil)
		require.NoError(t, err)
		assert.InDelta(t, 1861.1, valueAtRisk, 1.0)
	})

	t.Run("calm history lowers the estimate", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 4)
		port := newTestPortfolio(1000000, p)

		calm := map[string][]float64{"AAPL": {0.001, -0.001, 0.001, -0.001, 0.001, -0.001}}
		withHistory, err := f.VaR(port, calm)
		require.NoError(t, err)
		withoutHistory, err := f.VaR(port, nil)
		require.NoError(t, err)

		assert.Greater(t, withoutHistory, withHistory)
		assert.GreaterOrEqual(t, withHistory, 0.0)
	})

	t.Run("perfect hedge nets to zero", func(t *testing.T) {
		long := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 2)
		short := options.NewPosition("MSFT", options.OptionCall, 105, 2, 100, 2)
		port := newTestPortfolio(1000000, long, short)

		returns := map[string][]float64{
			"AAPL": {0.01, -0.02, 0.03, -0.01, 0.02, -0.03},
			"MSFT": {-0.01, 0.02, -0.03, 0.01, -0.02, 0.03},
		}
		valueAtRisk, err := f.VaR(port, returns)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, valueAtRisk, 1e-6)
	})
}

func TestFramework_ExpectedShortfall(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 4)
	port := newTestPortfolio(1000000, p)

	es, err := f.ExpectedShortfall(port, nil)
	require.NoError(t, err)
	require.Contains(t, es, 0.975)
	require.Contains(t, es, 0.99)

	// Deeper tails carry larger expected losses
	assert.Greater(t, es[0.99], es[0.975])
	assert.Greater(t, es[0.975], 0.0)

	valueAtRisk, err := f.VaR(port, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, es[0.99], valueAtRisk)
}

func TestFramework_ExpectedShortfall_EmptyPortfolioKeepsLevels(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	es, err := f.ExpectedShortfall(newTestPortfolio(100000), nil)
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, 0.0, es[0.975])
	assert.Equal(t, 0.0, es[0.99])
}

func TestFramework_UpdateCorrelationMatrix(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
	b := options.NewPosition("MSFT", options.OptionCall, 320, 4, 300, 1)
	c := options.NewPosition("XOM", options.OptionPut, 90, 1, 95, 1)
	port := newTestPortfolio(1000000, a, b, c)

	returns := map[string][]float64{
		"AAPL": {0.01, -0.02, 0.03, -0.01},
		"MSFT": {0.02, -0.04, 0.06, -0.02}, // exactly twice AAPL
	}

	matrix := f.UpdateCorrelationMatrix(port, returns)
	require.Equal(t, []string{"AAPL", "MSFT", "XOM"}, matrix.Symbols)
	require.Len(t, matrix.Values, 3)

	for i := range matrix.Values {
		require.Len(t, matrix.Values[i], 3)
		assert.Equal(t, 1.0, matrix.Values[i][i])
		for j := range matrix.Values[i] {
			assert.Equal(t, matrix.Values[i][j], matrix.Values[j][i])
		}
	}

	rho, ok := matrix.At("AAPL", "MSFT")
	require.True(t, ok)
	assert.InDelta(t, 1.0, rho, 1e-9)

	// XOM has no history; unknown pairs assume full correlation
	rho, ok = matrix.At("AAPL", "XOM")
	require.True(t, ok)
	assert.Equal(t, 1.0, rho)

	_, ok = matrix.At("AAPL", "TSLA")
	assert.False(t, ok)
}

func TestFramework_UpdateCorrelationMatrix_AntiCorrelated(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
	b := options.NewPosition("MSFT", options.OptionCall, 320, 4, 300, 1)
	port := newTestPortfolio(1000000, a, b)

	returns := map[string][]float64{
		"AAPL": {0.01, -0.02, 0.03, -0.01},
		"MSFT": {-0.01, 0.02, -0.03, 0.01},
	}

	matrix := f.UpdateCorrelationMatrix(port, returns)
	rho, ok := matrix.At("AAPL", "MSFT")
	require.True(t, ok)
	assert.InDelta(t, -1.0, rho, 1e-9)
}

func TestFramework_MonitorLiquidityRisk(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	t.Run("wide spread and thin volume flagged", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		p.Bid, p.Ask = 1.0, 1.2
		p.Volume = 5
		alerts := f.MonitorLiquidityRisk(newTestPortfolio(100000, p))

		require.Len(t, alerts, 2)
		assert.Equal(t, "liquidity_spread", alerts[0].Kind)
		assert.Equal(t, "liquidity_volume", alerts[1].Kind)
		assert.Equal(t, "AAPL", alerts[0].Symbol)
	})

	t.Run("liquid book stays quiet", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		p.Bid, p.Ask = 2.0, 2.02
		p.Volume = 500
		assert.Empty(t, f.MonitorLiquidityRisk(newTestPortfolio(100000, p)))
	})
}

func TestFramework_MonitorCounterpartyRisk(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	t.Run("concentrated broker flagged", func(t *testing.T) {
		a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 8) // 80000
		a.Broker = "ibkr"
		b := options.NewPosition("MSFT", options.OptionCall, 105, 2, 100, 2) // 20000
		b.Broker = "schwab"
		alerts := f.MonitorCounterpartyRisk(newTestPortfolio(100000, a, b))

		require.Len(t, alerts, 1)
		assert.Equal(t, "counterparty", alerts[0].Kind)
		assert.Equal(t, "ibkr", alerts[0].Symbol)
		assert.InDelta(t, 0.8, alerts[0].Value, 1e-12)
	})

	t.Run("balanced brokers stay quiet", func(t *testing.T) {
		a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 5)
		a.Broker = "ibkr"
		b := options.NewPosition("MSFT", options.OptionCall, 105, 2, 100, 5)
		b.Broker = "schwab"
		assert.Empty(t, f.MonitorCounterpartyRisk(newTestPortfolio(100000, a, b)))
	})
}

func TestFramework_CheckRebalancingTriggers(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	t.Run("over-concentrated sector", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 3) // 30000 of 100000
		p.Sector = options.SectorTechnology
		recs := f.CheckRebalancingTriggers(newTestPortfolio(100000, p), nil)

		require.True(t, hasAction(recs, "trim_sector"))
		for _, rec := range recs {
			if rec.Action == "trim_sector" {
				assert.Equal(t, "technology", rec.Target)
			}
		}
	})

	t.Run("aggregate delta breach", func(t *testing.T) {
		a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		a.Greeks = &options.Greeks{Delta: -0.15}
		b := options.NewPosition("MSFT", options.OptionCall, 320, 4, 100, 1)
		b.Greeks = &options.Greeks{Delta: -0.10}
		recs := f.CheckRebalancingTriggers(newTestPortfolio(1000000, a, b), nil)

		assert.True(t, hasAction(recs, "reduce_delta"))
		assert.False(t, hasAction(recs, "trim_sector"))
	})

	t.Run("value at risk beyond the loss budget", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 10) // notional = full value
		port := newTestPortfolio(100000, p)
		wild := map[string][]float64{"AAPL": {0.5, -0.5, 0.5, -0.5, 0.5, -0.5, 0.5, -0.5, 0.5, -0.5}}

		recs := f.CheckRebalancingTriggers(port, wild)
		assert.True(t, hasAction(recs, "reduce_var"))
	})

	t.Run("quiet book needs no rebalancing", func(t *testing.T) {
		p := options.NewPosition("AAPL", options.OptionPut, 45, 1, 50, 1) // notional 5000
		p.Greeks = &options.Greeks{Delta: -0.05}
		recs := f.CheckRebalancingTriggers(newTestPortfolio(100000, p), nil)
		assert.Empty(t, recs)
	})
}

func TestFramework_DashboardData(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	a := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 4)
	a.Greeks = &options.Greeks{Delta: -0.10, Gamma: 0.02, Theta: -0.05, Vega: 0.10, Rho: 0.02}
	a.Sector = options.SectorTechnology
	b := options.NewPosition("MSFT", options.OptionCall, 320, 4, 300, 1)
	b.Greeks = &options.Greeks{Delta: -0.05, Gamma: 0.01, Theta: -0.02, Vega: 0.05, Rho: 0.01}
	b.Sector = options.SectorTechnology
	port := newTestPortfolio(1000000, a, b)

	returns := map[string][]float64{
		"AAPL": {0.01, -0.02, 0.03, -0.01},
		"MSFT": {0.02, -0.01, 0.01, -0.02},
	}

	dashboard, err := f.DashboardData(port, returns)
	require.NoError(t, err)

	assert.Equal(t, 1000000.0, dashboard.PortfolioValue)
	assert.Equal(t, 2, dashboard.PositionCount)
	assert.InDelta(t, -0.15, dashboard.Greeks.Delta, 1e-12)
	assert.GreaterOrEqual(t, dashboard.VaR, 0.0)
	assert.False(t, dashboard.GeneratedAt.IsZero())

	require.Contains(t, dashboard.ExpectedShortfall, "0.975")
	require.Contains(t, dashboard.ExpectedShortfall, "0.99")
	assert.GreaterOrEqual(t, dashboard.ExpectedShortfall["0.99"], dashboard.ExpectedShortfall["0.975"])

	require.NotNil(t, dashboard.Correlations)
	assert.Equal(t, []string{"AAPL", "MSFT"}, dashboard.Correlations.Symbols)

	assert.InDelta(t, 0.07, dashboard.SectorExposure["technology"], 1e-12)

	// The dashboard is served over HTTP; it must marshal cleanly
	_, err = json.Marshal(dashboard)
	require.NoError(t, err)
}

func TestFramework_DashboardData_NilPortfolio(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())
	_, err := f.DashboardData(nil, nil)
	require.Error(t, err)
	assert.True(t, rerrors.IsInvalidInput(err))
}

func TestFramework_ValidateRiskFramework(t *testing.T) {
	f := newTestFramework(config.DefaultRiskConfig())

	p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 4)
	port := newTestPortfolio(1000000, p)

	t.Run("no periods", func(t *testing.T) {
		_, err := f.ValidateRiskFramework(port, nil)
		require.Error(t, err)
		assert.True(t, rerrors.IsDataUnavailable(err))
	})

	t.Run("breach counting and score", func(t *testing.T) {
		periods := []HistoricalPeriod{
			{Name: "calm quarter", RealizedLoss: 500},
			{Name: "crash quarter", RealizedLoss: 5000},
		}

		report, err := f.ValidateRiskFramework(port, periods)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Periods)
		assert.Equal(t, 1, report.Breaches)
		assert.Equal(t, 0.5, report.BreachRate)
		assert.InDelta(t, 0.01, report.ExpectedBreachRate, 1e-9)
		assert.InDelta(t, 0.51, report.OverallFrameworkScore, 1e-9)
		assert.GreaterOrEqual(t, report.OverallFrameworkScore, 0.0)
		assert.LessOrEqual(t, report.OverallFrameworkScore, 1.0)
	})
}

func TestFramework_ValidatePosition(t *testing.T) {
	t.Run("full admission pass", func(t *testing.T) {
		cfg := config.DefaultRiskConfig()
		cfg.MaxLossPerTrade = 1.0
		f := newTestFramework(cfg)

		port := newTestPortfolio(1000000)
		port.ReservedCash = 20000

		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		p.Greeks = &options.Greeks{Delta: -0.05, Gamma: 0.01, Vega: 0.05, Rho: 0.01}
		p.Bid, p.Ask = 1.98, 2.02
		p.Volume = 500

		ok, reason := f.ValidatePosition(p, port, nil, regime.RegimeNormal)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("loss gate rejects first", func(t *testing.T) {
		f := newTestFramework(config.DefaultRiskConfig())

		port := newTestPortfolio(1000000)
		port.ReservedCash = 20000

		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		ok, reason := f.ValidatePosition(p, port, nil, regime.RegimeNormal)
		assert.False(t, ok)
		assert.Contains(t, reason, "exceeds max loss per trade")
	})

	t.Run("illiquid candidate rejected", func(t *testing.T) {
		cfg := config.DefaultRiskConfig()
		cfg.MaxLossPerTrade = 1.0
		f := newTestFramework(cfg)

		port := newTestPortfolio(1000000)
		port.ReservedCash = 20000

		p := options.NewPosition("AAPL", options.OptionPut, 95, 2, 100, 1)
		p.Greeks = &options.Greeks{Delta: -0.05}
		p.Bid, p.Ask = 1.98, 2.02
		p.Volume = 5

		ok, reason := f.ValidatePosition(p, port, nil, regime.RegimeNormal)
		assert.False(t, ok)
		assert.Contains(t, reason, "volume")
	})
}
