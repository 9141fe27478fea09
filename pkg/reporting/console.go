package reporting

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
)

// DefaultConsoleReporter implements console output functionality
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

// PrintRegimeResults renders the per-regime backtest table
func (c *DefaultConsoleReporter) PrintRegimeResults(report *backtest.MultiRegimeReport) {
	if report == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("REGIME BACKTEST %s", report.RunID)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Regime", "Status", "Bars", "Alloc", "Return", "Sharpe", "Sortino", "Max DD", "Win Rate", "Profit Factor"})
	for _, res := range report.Results {
		t.AppendRow(table.Row{
			res.Regime.String(),
			consoleStatus(res),
			res.Bars,
			formatFraction(res.Allocation),
			formatFraction(res.TotalReturn),
			formatRatio(res.Sharpe),
			formatRatio(res.Sortino),
			formatFraction(res.MaxDrawdown),
			fmt.Sprintf("%.1f%%", res.WinRate),
			formatRatio(res.ProfitFactor),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight},
	})

	t.Render()

	fmt.Fprintf(c.out, "📊 %d symbols (%s) in %s\n",
		len(report.Symbols), strings.Join(report.Symbols, ", "), report.Elapsed.Round(time.Millisecond))
	for _, res := range report.Results {
		if res.Failure != "" {
			fmt.Fprintf(c.out, "❌ %s: %s\n", res.Regime, res.Failure)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintWalkForwardSummary renders the rolling train/test window table
func (c *DefaultConsoleReporter) PrintWalkForwardSummary(report *backtest.WalkForwardReport) {
	if report == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("WALK-FORWARD %s", report.RunID)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"#", "Symbol", "Train", "Test", "Test End", "Vol", "Sharpe", "Return"})
	for _, w := range report.Windows {
		t.AppendRow(table.Row{
			w.Index,
			w.Symbol,
			w.TrainBars,
			w.TestBars,
			w.TestEnd.Format("2006-01-02"),
			formatFraction(w.Params.Volatility),
			formatRatio(w.TestSharpe),
			formatFraction(w.TestReturn),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "avg", formatRatio(report.AvgSharpe), ""})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(c.out)
}

// PrintValidationSummary renders the VaR breach-coverage scorecard
func (c *DefaultConsoleReporter) PrintValidationSummary(report risk.FrameworkValidationReport) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("FRAMEWORK VALIDATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🧪 Periods", report.Periods},
		{"🚨 VaR Breaches", report.Breaches},
		{"📉 Breach Rate", formatFraction(report.BreachRate)},
		{"🎯 Expected Rate", formatFraction(report.ExpectedBreachRate)},
		{"🏆 Framework Score", fmt.Sprintf("%.2f", report.OverallFrameworkScore)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 12, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(c.out)
}

func consoleStatus(res backtest.RegimeResult) string {
	switch statusLabel(res) {
	case "failed":
		return "❌ failed"
	case "sparse":
		return "⚠️ sparse"
	default:
		return "✅ ok"
	}
}

// formatFraction renders a fractional quantity (0.05 -> "5.00%")
func formatFraction(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}

// formatRatio renders Sharpe-style ratios, tolerating the blow-up cases
// (profit factor with no losing bars, Sortino with no downside)
func formatRatio(f float64) string {
	switch {
	case math.IsNaN(f):
		return "n/a"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%.2f", f)
	}
}
