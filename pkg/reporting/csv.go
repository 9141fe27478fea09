package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteRegimeCSV writes one row per regime result plus a trailing summary row.
// An .xlsx path delegates to the Excel writer.
func (r *DefaultCSVReporter) WriteRegimeCSV(report *backtest.MultiRegimeReport, path string) error {
	if report == nil {
		return fmt.Errorf("no regime report to write")
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// If the user requests an Excel file, delegate to Excel writer
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteBacktestXLSX(report, nil, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"Regime",
		"Status",
		"Bars",
		"Allocation",
		"Total_Return",
		"Sharpe",
		"Sortino",
		"Max_Drawdown",
		"Win_Rate_%",
		"Profit_Factor",
		"Premium_Income",
		"Stop_Outs",
	}); err != nil {
		return err
	}

	for _, res := range report.Results {
		premium, stopOuts := "", ""
		if res.Simulation != nil {
			premium = csvFloat(res.Simulation.PremiumIncome)
			stopOuts = strconv.Itoa(res.Simulation.StopOuts)
		}
		row := []string{
			res.Regime.String(),
			statusLabel(res),
			strconv.Itoa(res.Bars),
			csvFloat(res.Allocation),
			csvFloat(res.TotalReturn),
			csvFloat(res.Sharpe),
			csvFloat(res.Sortino),
			csvFloat(res.MaxDrawdown),
			fmt.Sprintf("%.2f", res.WinRate),
			csvFloat(res.ProfitFactor),
			premium,
			stopOuts,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("SUMMARY: run_id=%s; symbols=%s; elapsed=%s",
		report.RunID, strings.Join(report.Symbols, "|"), report.Elapsed)

	// Summary row keeps every field empty except the last column
	summaryRow := make([]string, 12)
	summaryRow[11] = summary
	return w.Write(summaryRow)
}

// WriteWalkForwardCSV writes one row per rolling window plus a trailing
// summary row. An .xlsx path delegates to the Excel writer.
func (r *DefaultCSVReporter) WriteWalkForwardCSV(report *backtest.WalkForwardReport, path string) error {
	if report == nil {
		return fmt.Errorf("no walk-forward report to write")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteBacktestXLSX(nil, report, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"Window",
		"Symbol",
		"Train_Start",
		"Train_End",
		"Test_Start",
		"Test_End",
		"Train_Bars",
		"Test_Bars",
		"Volatility",
		"Drift",
		"Premium_Yield",
		"Test_Sharpe",
		"Test_Return",
	}); err != nil {
		return err
	}

	for _, win := range report.Windows {
		row := []string{
			strconv.Itoa(win.Index),
			win.Symbol,
			win.TrainStart.Format("2006-01-02 15:04:05"),
			win.TrainEnd.Format("2006-01-02 15:04:05"),
			win.TestStart.Format("2006-01-02 15:04:05"),
			win.TestEnd.Format("2006-01-02 15:04:05"),
			strconv.Itoa(win.TrainBars),
			strconv.Itoa(win.TestBars),
			csvFloat(win.Params.Volatility),
			csvFloat(win.Params.Drift),
			csvFloat(win.Params.PremiumYield),
			csvFloat(win.TestSharpe),
			csvFloat(win.TestReturn),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("SUMMARY: run_id=%s; windows=%d; avg_sharpe=%.4f",
		report.RunID, len(report.Windows), report.AvgSharpe)

	summaryRow := make([]string, 13)
	summaryRow[12] = summary
	return w.Write(summaryRow)
}

// statusLabel collapses the sparse/failed/ok states into one column value
func statusLabel(res backtest.RegimeResult) string {
	switch {
	case res.Failure != "":
		return "failed"
	case res.Sparse:
		return "sparse"
	default:
		return "ok"
	}
}

func csvFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// Package-level convenience functions

func WriteRegimeCSV(report *backtest.MultiRegimeReport, path string) error {
	reporter := NewDefaultCSVReporter()
	return reporter.WriteRegimeCSV(report, path)
}

func WriteWalkForwardCSV(report *backtest.WalkForwardReport, path string) error {
	reporter := NewDefaultCSVReporter()
	return reporter.WriteWalkForwardCSV(report, path)
}
