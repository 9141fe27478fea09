package reporting

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteRegimeCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "regimes.csv")
	require.NoError(t, WriteRegimeCSV(sampleMultiRegimeReport(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6, "header + four regimes + summary")

	assert.Equal(t, "Regime", rows[0][0])
	assert.Equal(t, "Win_Rate_%", rows[0][8])

	assert.Equal(t, "normal", rows[1][0])
	assert.Equal(t, "ok", rows[1][1])
	assert.Equal(t, "42", rows[1][2])
	assert.Equal(t, "0.050000", rows[1][3])
	assert.Equal(t, "64.30", rows[1][8])
	assert.Equal(t, "0.002400", rows[1][10])
	assert.Equal(t, "0", rows[1][11])

	assert.Equal(t, "+Inf", rows[2][9], "profit factor with no losing bars")

	assert.Equal(t, "sparse", rows[3][1])
	assert.Equal(t, "", rows[3][10], "sparse regime has no simulation columns")

	assert.Equal(t, "failed", rows[4][1])

	assert.Contains(t, rows[5][11], "SUMMARY: run_id=01J63V9P4NXT5W8GQRC2JDEF01")
	assert.Contains(t, rows[5][11], "symbols=AAPL|XOM")
}

func TestWriteRegimeCSV_XLSXDelegation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteRegimeCSV(sampleMultiRegimeReport(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	idx, err := fx.GetSheetIndex("Regimes")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0)
}

func TestWriteWalkForwardCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walkforward.csv")
	require.NoError(t, WriteWalkForwardCSV(sampleWalkForwardReport(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header + two windows + summary")

	assert.Equal(t, "Window", rows[0][0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "AAPL", rows[1][1])
	assert.Equal(t, "2025-01-06 00:00:00", rows[1][2])
	assert.Equal(t, "40", rows[1][6])
	assert.Equal(t, "0.320000", rows[1][8])
	assert.Equal(t, "1", rows[2][0])

	assert.Contains(t, rows[3][12], "windows=2")
	assert.Contains(t, rows[3][12], "avg_sharpe=1.0000")
}

func TestWriteCSV_NilReports(t *testing.T) {
	dir := t.TempDir()

	err := WriteRegimeCSV(nil, filepath.Join(dir, "regimes.csv"))
	assert.ErrorContains(t, err, "no regime report")

	err = WriteWalkForwardCSV(nil, filepath.Join(dir, "walkforward.csv"))
	assert.ErrorContains(t, err, "no walk-forward report")
}
