package reporting

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	resultsRoot string
}

// NewDefaultPathManager creates a path manager rooted at "results"
func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{resultsRoot: "results"}
}

// NewPathManagerWithRoot creates a path manager rooted at root
func NewPathManagerWithRoot(root string) *DefaultPathManager {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "results"
	}
	return &DefaultPathManager{resultsRoot: root}
}

// RunOutputDir returns the artifact directory for one backtest run.
// Run IDs are ULIDs, so sibling run directories sort chronologically.
func (p *DefaultPathManager) RunOutputDir(runID string) string {
	id := strings.TrimSpace(runID)
	if id == "" {
		id = "unknown"
	}
	return filepath.Join(p.resultsRoot, id)
}

// EnsureDirectoryExists creates the directory and any missing parents
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}

// Package-level convenience function
func RunOutputDir(runID string) string {
	manager := NewDefaultPathManager()
	return manager.RunOutputDir(runID)
}
