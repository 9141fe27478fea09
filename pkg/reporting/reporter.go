package reporting

import (
	"fmt"
	"path/filepath"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

// Console output methods
func (r *DefaultReporter) PrintRegimeResults(report *backtest.MultiRegimeReport) {
	r.console.PrintRegimeResults(report)
}

func (r *DefaultReporter) PrintWalkForwardSummary(report *backtest.WalkForwardReport) {
	r.console.PrintWalkForwardSummary(report)
}

func (r *DefaultReporter) PrintValidationSummary(report risk.FrameworkValidationReport) {
	r.console.PrintValidationSummary(report)
}

// File output methods
func (r *DefaultReporter) WriteRegimeCSV(report *backtest.MultiRegimeReport, path string) error {
	return r.csv.WriteRegimeCSV(report, path)
}

func (r *DefaultReporter) WriteWalkForwardCSV(report *backtest.WalkForwardReport, path string) error {
	return r.csv.WriteWalkForwardCSV(report, path)
}

func (r *DefaultReporter) WriteBacktestXLSX(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport, path string) error {
	return r.excel.WriteBacktestXLSX(multi, wf, path)
}

func (r *DefaultReporter) WriteRunJSON(artifact *RunArtifact, path string) error {
	return WriteRunJSON(artifact, path)
}

func (r *DefaultReporter) WriteParametersJSON(params backtest.CalibratedParameters, path string) error {
	return WriteParametersJSON(params, path)
}

// JSON methods
func (r *DefaultReporter) FormatParameters(params backtest.CalibratedParameters) ([]byte, error) {
	return r.json.FormatParameters(params)
}

func (r *DefaultReporter) FormatRun(artifact *RunArtifact) ([]byte, error) {
	return r.json.FormatRun(artifact)
}

func (r *DefaultReporter) PrintParameters(params backtest.CalibratedParameters) {
	r.json.PrintParameters(params)
}

// Path management methods
func (r *DefaultReporter) RunOutputDir(runID string) string {
	return r.paths.RunOutputDir(runID)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig) *ReportingManager {
	reporter := NewDefaultReporter()
	if config.OutputDirectory != "" {
		reporter.paths = NewPathManagerWithRoot(config.OutputDirectory)
	}
	return &ReportingManager{
		reporter: reporter,
		config:   config,
	}
}

// ReportBacktest outputs the run according to configuration and returns the
// artifact directory when files were written. Either report may be nil.
func (m *ReportingManager) ReportBacktest(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport) (string, error) {
	if multi == nil && wf == nil {
		return "", fmt.Errorf("nothing to report")
	}

	// Console output
	if m.config.EnableConsole {
		m.reporter.PrintRegimeResults(multi)
		m.reporter.PrintWalkForwardSummary(wf)
	}

	// File outputs
	if !m.config.EnableFiles {
		return "", nil
	}

	runID := ""
	if multi != nil {
		runID = multi.RunID
	} else {
		runID = wf.RunID
	}

	outputDir := m.reporter.RunOutputDir(runID)
	if err := m.reporter.EnsureDirectoryExists(outputDir); err != nil {
		return "", err
	}

	if m.config.CSVEnabled {
		if multi != nil {
			if err := m.reporter.WriteRegimeCSV(multi, filepath.Join(outputDir, "regimes.csv")); err != nil {
				return "", err
			}
		}
		if wf != nil {
			if err := m.reporter.WriteWalkForwardCSV(wf, filepath.Join(outputDir, "walkforward.csv")); err != nil {
				return "", err
			}
		}
	}

	if m.config.ExcelEnabled {
		if err := m.reporter.WriteBacktestXLSX(multi, wf, filepath.Join(outputDir, "report.xlsx")); err != nil {
			return "", err
		}
	}

	if m.config.JSONEnabled {
		if err := m.reporter.WriteRunJSON(NewRunArtifact(multi, wf), filepath.Join(outputDir, "run.json")); err != nil {
			return "", err
		}
	}

	return outputDir, nil
}

// ReportValidation prints the framework validation scorecard when console
// output is enabled
func (m *ReportingManager) ReportValidation(report risk.FrameworkValidationReport) {
	if m.config.EnableConsole {
		m.reporter.PrintValidationSummary(report)
	}
}
