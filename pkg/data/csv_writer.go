package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// WriteCandles writes candles to path in the layout DefaultCSVFormat
// reads back: timestamp, open, high, low, close, volume. Parent
// directories are created as needed and an existing file is replaced.
func WriteCandles(path string, candles []types.OHLCV) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create candle file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	for _, bar := range candles {
		row := []string{
			bar.Timestamp.UTC().Format(DefaultCSVFormat.DateFormat),
			candleFloat(bar.Open),
			candleFloat(bar.High),
			candleFloat(bar.Low),
			candleFloat(bar.Close),
			candleFloat(bar.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func candleFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
