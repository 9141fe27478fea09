package reporting

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteBacktestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteBacktestXLSX(sampleMultiRegimeReport(), sampleWalkForwardReport(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Summary", "Regimes", "Walk-Forward"}, fx.GetSheetList())

	runID, err := fx.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "01J63V9P4NXT5W8GQRC2JDEF01", runID)

	regimeCell, err := fx.GetCellValue("Regimes", "A2")
	require.NoError(t, err)
	assert.Equal(t, "normal", regimeCell)

	status, err := fx.GetCellValue("Regimes", "B4")
	require.NoError(t, err)
	assert.Equal(t, "sparse", status)

	symbol, err := fx.GetCellValue("Walk-Forward", "B2")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", symbol)

	trainStart, err := fx.GetCellValue("Walk-Forward", "C2")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", trainStart)
}

func TestWriteBacktestXLSX_WalkForwardOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.xlsx")
	require.NoError(t, WriteBacktestXLSX(nil, sampleWalkForwardReport(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Summary", "Walk-Forward"}, fx.GetSheetList())

	runID, err := fx.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "01J63V9P4NXT5W8GQRC2JDEF02", runID)
}

func TestWriteBacktestXLSX_NoReports(t *testing.T) {
	err := WriteBacktestXLSX(nil, nil, filepath.Join(t.TempDir(), "empty.xlsx"))
	assert.Error(t, err)
}
