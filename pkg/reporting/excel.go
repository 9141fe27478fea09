package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteBacktestXLSX writes a workbook with a summary sheet plus one sheet
// per present report section. Either report may be nil.
func (r *DefaultExcelReporter) WriteBacktestXLSX(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport, path string) error {
	if multi == nil && wf == nil {
		return fmt.Errorf("no backtest reports to write")
	}

	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const regimeSheet = "Regimes"
	const walkForwardSheet = "Walk-Forward"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if multi != nil {
		fx.NewSheet(regimeSheet)
	}
	if wf != nil {
		fx.NewSheet(walkForwardSheet)
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, summarySheet, multi, wf, styles); err != nil {
		return err
	}
	if multi != nil {
		if err := r.writeRegimeSheet(fx, regimeSheet, multi, styles); err != nil {
			return err
		}
	}
	if wf != nil {
		if err := r.writeWalkForwardSheet(fx, walkForwardSheet, wf, styles); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

// createExcelStyles creates all Excel styles
func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"}, // Dark slate gray
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	// Base style (light borders)
	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "E0E0E0", Style: 1},
			{Type: "right", Color: "E0E0E0", Style: 1},
			{Type: "bottom", Color: "E0E0E0", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	// Percentage style (right aligned, 0.00% format)
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "E0E0E0", Style: 1},
			{Type: "right", Color: "E0E0E0", Style: 1},
			{Type: "bottom", Color: "E0E0E0", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	// Number style (right aligned, 0.00 format)
	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 2,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "E0E0E0", Style: 1},
			{Type: "right", Color: "E0E0E0", Style: 1},
			{Type: "bottom", Color: "E0E0E0", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	// Summary label style (blue background)
	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"}, // Blue
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

// writeSummarySheet writes labeled key/value rows describing the run
func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 26)
	fx.SetColWidth(sheet, "B", "B", 44)

	rows := [][2]interface{}{}
	if multi != nil {
		sparse, failed := 0, 0
		for _, res := range multi.Results {
			if res.Failure != "" {
				failed++
			} else if res.Sparse {
				sparse++
			}
		}
		rows = append(rows,
			[2]interface{}{"Run ID", multi.RunID},
			[2]interface{}{"Symbols", strings.Join(multi.Symbols, ", ")},
			[2]interface{}{"Regimes Evaluated", len(multi.Results)},
			[2]interface{}{"Sparse Regimes", sparse},
			[2]interface{}{"Failed Regimes", failed},
			[2]interface{}{"Elapsed", multi.Elapsed.String()},
		)
	}
	if wf != nil {
		if multi == nil {
			rows = append(rows, [2]interface{}{"Run ID", wf.RunID})
		}
		rows = append(rows,
			[2]interface{}{"Walk-Forward Windows", len(wf.Windows)},
			[2]interface{}{"Avg Test Sharpe", finiteRatio(wf.AvgSharpe)},
		)
	}

	for i, row := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		fx.SetCellValue(sheet, labelCell, row[0])
		fx.SetCellValue(sheet, valueCell, row[1])
		fx.SetCellStyle(sheet, labelCell, labelCell, styles.SummaryStyle)
		fx.SetCellStyle(sheet, valueCell, valueCell, styles.BaseStyle)
	}

	return nil
}

// writeRegimeSheet writes one row per regime result
func (r *DefaultExcelReporter) writeRegimeSheet(fx *excelize.File, sheet string, multi *backtest.MultiRegimeReport, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 16) // Regime
	fx.SetColWidth(sheet, "B", "B", 10) // Status
	fx.SetColWidth(sheet, "C", "C", 8)  // Bars
	fx.SetColWidth(sheet, "D", "D", 12) // Allocation
	fx.SetColWidth(sheet, "E", "E", 12) // Total Return
	fx.SetColWidth(sheet, "F", "F", 10) // Sharpe
	fx.SetColWidth(sheet, "G", "G", 10) // Sortino
	fx.SetColWidth(sheet, "H", "H", 14) // Max Drawdown
	fx.SetColWidth(sheet, "I", "I", 10) // Win Rate
	fx.SetColWidth(sheet, "J", "J", 14) // Profit Factor
	fx.SetColWidth(sheet, "K", "K", 16) // Premium Income
	fx.SetColWidth(sheet, "L", "L", 10) // Stop Outs

	headers := []string{
		"Regime", "Status", "Bars", "Allocation", "Total Return", "Sharpe",
		"Sortino", "Max Drawdown", "Win Rate", "Profit Factor", "Premium Income", "Stop Outs",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}

	for i, res := range multi.Results {
		rowNum := i + 2
		values := []interface{}{
			res.Regime.String(),
			statusLabel(res),
			res.Bars,
			res.Allocation,
			res.TotalReturn,
			finiteRatio(res.Sharpe),
			finiteRatio(res.Sortino),
			res.MaxDrawdown,
			res.WinRate / 100, // sheet cell carries the percent format
			finiteRatio(res.ProfitFactor),
			nil,
			nil,
		}
		if res.Simulation != nil {
			values[10] = res.Simulation.PremiumIncome
			values[11] = res.Simulation.StopOuts
		}

		cellStyles := []int{
			styles.BaseStyle,    // Regime
			styles.BaseStyle,    // Status
			styles.BaseStyle,    // Bars
			styles.PercentStyle, // Allocation
			styles.PercentStyle, // Total Return
			styles.NumberStyle,  // Sharpe
			styles.NumberStyle,  // Sortino
			styles.PercentStyle, // Max Drawdown
			styles.PercentStyle, // Win Rate
			styles.NumberStyle,  // Profit Factor
			styles.PercentStyle, // Premium Income
			styles.BaseStyle,    // Stop Outs
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if v != nil {
				fx.SetCellValue(sheet, cell, v)
			}
			fx.SetCellStyle(sheet, cell, cell, cellStyles[col])
		}
	}

	return nil
}

// writeWalkForwardSheet writes one row per rolling train/test window
func (r *DefaultExcelReporter) writeWalkForwardSheet(fx *excelize.File, sheet string, wf *backtest.WalkForwardReport, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 8)  // Window
	fx.SetColWidth(sheet, "B", "B", 10) // Symbol
	fx.SetColWidth(sheet, "C", "F", 14) // Date columns
	fx.SetColWidth(sheet, "G", "H", 10) // Bar counts
	fx.SetColWidth(sheet, "I", "M", 14) // Metrics

	headers := []string{
		"Window", "Symbol", "Train Start", "Train End", "Test Start", "Test End",
		"Train Bars", "Test Bars", "Volatility", "Drift", "Premium Yield", "Test Sharpe", "Test Return",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}

	for i, win := range wf.Windows {
		rowNum := i + 2
		values := []interface{}{
			win.Index,
			win.Symbol,
			win.TrainStart.Format("2006-01-02"),
			win.TrainEnd.Format("2006-01-02"),
			win.TestStart.Format("2006-01-02"),
			win.TestEnd.Format("2006-01-02"),
			win.TrainBars,
			win.TestBars,
			win.Params.Volatility,
			win.Params.Drift,
			win.Params.PremiumYield,
			finiteRatio(win.TestSharpe),
			win.TestReturn,
		}
		cellStyles := []int{
			styles.BaseStyle,    // Window
			styles.BaseStyle,    // Symbol
			styles.BaseStyle,    // Train Start
			styles.BaseStyle,    // Train End
			styles.BaseStyle,    // Test Start
			styles.BaseStyle,    // Test End
			styles.BaseStyle,    // Train Bars
			styles.BaseStyle,    // Test Bars
			styles.PercentStyle, // Volatility
			styles.PercentStyle, // Drift
			styles.PercentStyle, // Premium Yield
			styles.NumberStyle,  // Test Sharpe
			styles.PercentStyle, // Test Return
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			fx.SetCellValue(sheet, cell, v)
			fx.SetCellStyle(sheet, cell, cell, cellStyles[col])
		}
	}

	return nil
}

// Package-level convenience function
func WriteBacktestXLSX(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport, path string) error {
	reporter := NewDefaultExcelReporter()
	return reporter.WriteBacktestXLSX(multi, wf, path)
}
