package reporting

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

func sampleMultiRegimeReport() *backtest.MultiRegimeReport {
	sim := &backtest.SimulationResult{
		PnL:           []float64{0.001, 0.002, -0.0005},
		Equity:        []float64{1.001, 1.003, 1.0025},
		ThetaPnL:      0.0024,
		DeltaPnL:      0.0009,
		GammaPnL:      -0.0008,
		NetPnL:        0.0025,
		PremiumIncome: 0.0024,
		StopOuts:      0,
	}
	return &backtest.MultiRegimeReport{
		RunID:   "01J63V9P4NXT5W8GQRC2JDEF01",
		Symbols: []string{"AAPL", "XOM"},
		Results: []backtest.RegimeResult{
			{
				Regime: regime.RegimeNormal, Bars: 42, Allocation: 0.05,
				TotalReturn: 0.012, Sharpe: 1.25, Sortino: 1.8, MaxDrawdown: 0.02,
				WinRate: 64.3, ProfitFactor: 2.1, Simulation: sim,
			},
			{
				Regime: regime.RegimeBull, Bars: 30, Allocation: 0.05,
				TotalReturn: 0.02, Sharpe: 2.0, Sortino: math.Inf(1), MaxDrawdown: 0,
				WinRate: 100, ProfitFactor: math.Inf(1), Simulation: sim,
			},
			{Regime: regime.RegimeCrisis, Sparse: true},
			{Regime: regime.RegimeBear, Bars: 12, Allocation: 0.03, Failure: "non-finite return at bar 3"},
		},
		Elapsed: 150 * time.Millisecond,
	}
}

func sampleWalkForwardReport() *backtest.WalkForwardReport {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	params := backtest.CalibratedParameters{
		Volatility: 0.32, Drift: 0.05, PremiumYield: 0.0008,
		PremiumDecayThreshold: 0.2, VolSpikeRatio: 1.5, AdverseMoveThreshold: 0.1,
	}
	return &backtest.WalkForwardReport{
		RunID: "01J63V9P4NXT5W8GQRC2JDEF02",
		Windows: []backtest.WalkForwardWindow{
			{
				Index: 0, Symbol: "AAPL",
				TrainStart: start, TrainEnd: start.AddDate(0, 0, 39),
				TestStart: start.AddDate(0, 0, 40), TestEnd: start.AddDate(0, 0, 49),
				TrainBars: 40, TestBars: 10,
				Params: params, TestSharpe: 1.1, TestReturn: 0.004,
			},
			{
				Index: 1, Symbol: "AAPL",
				TrainStart: start.AddDate(0, 0, 10), TrainEnd: start.AddDate(0, 0, 49),
				TestStart: start.AddDate(0, 0, 50), TestEnd: start.AddDate(0, 0, 59),
				TrainBars: 40, TestBars: 10,
				Params: params, TestSharpe: 0.9, TestReturn: 0.003,
			},
		},
		AvgSharpe: 1.0,
	}
}

func TestReportingManager_WritesAllArtifacts(t *testing.T) {
	root := t.TempDir()
	m := NewReportingManager(ReportingConfig{
		EnableFiles:     true,
		OutputDirectory: root,
		CSVEnabled:      true,
		ExcelEnabled:    true,
		JSONEnabled:     true,
	})

	multi := sampleMultiRegimeReport()
	outputDir, err := m.ReportBacktest(multi, sampleWalkForwardReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, multi.RunID), outputDir)

	for _, name := range []string{"regimes.csv", "walkforward.csv", "report.xlsx", "run.json"} {
		_, err := os.Stat(filepath.Join(outputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestReportingManager_FilesDisabled(t *testing.T) {
	m := NewReportingManager(ReportingConfig{})

	outputDir, err := m.ReportBacktest(sampleMultiRegimeReport(), nil)
	require.NoError(t, err)
	assert.Empty(t, outputDir)
}

func TestReportingManager_NothingToReport(t *testing.T) {
	m := NewReportingManager(ReportingConfig{EnableFiles: true})

	_, err := m.ReportBacktest(nil, nil)
	assert.Error(t, err)
}

func TestReportingManager_WalkForwardOnlyUsesItsRunID(t *testing.T) {
	root := t.TempDir()
	m := NewReportingManager(ReportingConfig{
		EnableFiles:     true,
		OutputDirectory: root,
		JSONEnabled:     true,
	})

	wf := sampleWalkForwardReport()
	outputDir, err := m.ReportBacktest(nil, wf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, wf.RunID), outputDir)

	_, err = os.Stat(filepath.Join(outputDir, "run.json"))
	assert.NoError(t, err)
}
