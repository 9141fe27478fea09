package data

import (
	"fmt"
	"sort"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// ValidateCandles checks a candle series for positive prices, consistent
// high/low bounds, and chronological order.
func ValidateCandles(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no candles provided")
	}

	for i, bar := range data {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			return fmt.Errorf("invalid candle at index %d: prices must be positive", i)
		}
		if bar.High < bar.Low {
			return fmt.Errorf("invalid candle at index %d: high %.4f below low %.4f", i, bar.High, bar.Low)
		}
		if bar.High < bar.Open || bar.High < bar.Close {
			return fmt.Errorf("invalid candle at index %d: high %.4f below open/close", i, bar.High)
		}
		if bar.Low > bar.Open || bar.Low > bar.Close {
			return fmt.Errorf("invalid candle at index %d: low %.4f above open/close", i, bar.Low)
		}
		if i > 0 && !bar.Timestamp.After(data[i-1].Timestamp) {
			return fmt.Errorf("candles out of order at index %d: %s not after %s",
				i, bar.Timestamp.Format("2006-01-02 15:04:05"), data[i-1].Timestamp.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// SortCandles orders a candle series ascending by timestamp and drops
// duplicate timestamps, keeping the first occurrence.
func SortCandles(data []types.OHLCV) []types.OHLCV {
	if len(data) <= 1 {
		return data
	}
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:1]
	for _, bar := range sorted[1:] {
		if bar.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
