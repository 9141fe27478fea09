package reporting

import (
	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
)

// Package reporting renders backtest and validation results to the
// console and to CSV/JSON/XLSX artifacts under a run-scoped directory.

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintRegimeResults(report *backtest.MultiRegimeReport)
	PrintWalkForwardSummary(report *backtest.WalkForwardReport)
	PrintValidationSummary(report risk.FrameworkValidationReport)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteRegimeCSV(report *backtest.MultiRegimeReport, path string) error
	WriteWalkForwardCSV(report *backtest.WalkForwardReport, path string) error
	WriteBacktestXLSX(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport, path string) error
	WriteRunJSON(artifact *RunArtifact, path string) error
	WriteParametersJSON(params backtest.CalibratedParameters, path string) error
}

// JSONFormatter defines interface for JSON output
type JSONFormatter interface {
	FormatParameters(params backtest.CalibratedParameters) ([]byte, error)
	FormatRun(artifact *RunArtifact) ([]byte, error)
	PrintParameters(params backtest.CalibratedParameters)
}

// PathManager defines interface for output path management
type PathManager interface {
	RunOutputDir(runID string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	JSONFormatter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle  int
	BaseStyle    int
	PercentStyle int
	NumberStyle  int
	SummaryStyle int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
}
