package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
)

// RunArtifact is the on-disk JSON snapshot of one backtest run.
type RunArtifact struct {
	RunID       string                      `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	MultiRegime *backtest.MultiRegimeReport `json:"multi_regime,omitempty"`
	WalkForward *backtest.WalkForwardReport `json:"walk_forward,omitempty"`
}

// encoding/json rejects NaN and Inf, so ratio fields that can blow up
// (profit factor with no losing bars) are clamped to this before marshalling.
const maxFiniteRatio = 1e6

// NewRunArtifact bundles the reports of one run into a JSON-safe envelope.
// The run ID is taken from whichever report is present.
func NewRunArtifact(multi *backtest.MultiRegimeReport, wf *backtest.WalkForwardReport) *RunArtifact {
	a := &RunArtifact{
		GeneratedAt: time.Now().UTC(),
		MultiRegime: sanitizeMultiRegime(multi),
		WalkForward: sanitizeWalkForward(wf),
	}
	switch {
	case multi != nil:
		a.RunID = multi.RunID
	case wf != nil:
		a.RunID = wf.RunID
	}
	return a
}

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// FormatParameters formats calibrated parameters as indented JSON bytes
func (f *DefaultJSONFormatter) FormatParameters(params backtest.CalibratedParameters) ([]byte, error) {
	return json.MarshalIndent(params, "", "  ")
}

// FormatRun formats a run artifact as indented JSON bytes
func (f *DefaultJSONFormatter) FormatRun(artifact *RunArtifact) ([]byte, error) {
	if artifact == nil {
		return nil, fmt.Errorf("no run artifact to format")
	}
	return json.MarshalIndent(artifact, "", "  ")
}

// PrintParameters prints calibrated parameters as JSON to the console
func (f *DefaultJSONFormatter) PrintParameters(params backtest.CalibratedParameters) {
	data, _ := json.MarshalIndent(params, "", "  ")
	fmt.Println(string(data))
}

// WriteParametersJSON writes calibrated parameters to a JSON file
func WriteParametersJSON(params backtest.CalibratedParameters, path string) error {
	formatter := NewDefaultJSONFormatter()
	data, err := formatter.FormatParameters(params)
	if err != nil {
		return err
	}
	return writeFileWithDir(path, data)
}

// WriteRunJSON writes a run artifact to a JSON file
func WriteRunJSON(artifact *RunArtifact, path string) error {
	formatter := NewDefaultJSONFormatter()
	data, err := formatter.FormatRun(artifact)
	if err != nil {
		return err
	}
	return writeFileWithDir(path, data)
}

func writeFileWithDir(path string, data []byte) error {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func sanitizeMultiRegime(report *backtest.MultiRegimeReport) *backtest.MultiRegimeReport {
	if report == nil {
		return nil
	}
	out := *report
	out.Results = make([]backtest.RegimeResult, len(report.Results))
	for i, res := range report.Results {
		res.Sharpe = finiteRatio(res.Sharpe)
		res.Sortino = finiteRatio(res.Sortino)
		res.ProfitFactor = finiteRatio(res.ProfitFactor)
		out.Results[i] = res
	}
	return &out
}

func sanitizeWalkForward(report *backtest.WalkForwardReport) *backtest.WalkForwardReport {
	if report == nil {
		return nil
	}
	out := *report
	out.AvgSharpe = finiteRatio(report.AvgSharpe)
	out.Windows = make([]backtest.WalkForwardWindow, len(report.Windows))
	for i, win := range report.Windows {
		win.TestSharpe = finiteRatio(win.TestSharpe)
		out.Windows[i] = win
	}
	return &out
}

func finiteRatio(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return maxFiniteRatio
	case math.IsInf(f, -1):
		return -maxFiniteRatio
	default:
		return f
	}
}
