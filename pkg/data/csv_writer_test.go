package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

func TestWriteCandles_RoundTrip(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	candles := []types.OHLCV{
		{Timestamp: base, Open: 100, High: 101.5, Low: 99.25, Close: 101, Volume: 12000},
		{Timestamp: base.Add(24 * time.Hour), Open: 101, High: 103, Low: 100.5, Close: 102.75, Volume: 9800},
	}

	path := CandleFile(root, "bybit", "spot", "AAPL", "D")
	require.NoError(t, WriteCandles(path, candles))

	loaded, err := NewCSVProvider(root, "bybit").LoadData(context.Background(), "AAPL", "D")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, candles[0].Timestamp, loaded[0].Timestamp)
	assert.Equal(t, 101.5, loaded[0].High)
	assert.Equal(t, 102.75, loaded[1].Close)
	assert.Equal(t, 9800.0, loaded[1].Volume)
}

func TestWriteCandles_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "candles.csv")
	err := WriteCandles(path, []types.OHLCV{
		{Timestamp: time.Now().UTC(), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	})
	require.NoError(t, err)

	loaded, err := NewCSVProvider(filepath.Dir(path), "").parseFile(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}
