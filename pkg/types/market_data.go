package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Closes extracts the close-price series from a candle slice.
func Closes(data []OHLCV) []float64 {
	closes := make([]float64, len(data))
	for i, bar := range data {
		closes[i] = bar.Close
	}
	return closes
}

// SimpleReturns computes bar-over-bar simple returns from a candle slice.
// A series of n candles yields n-1 returns; fewer than two candles yield nil.
func SimpleReturns(data []OHLCV) []float64 {
	if len(data) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(data)-1)
	for i := 1; i < len(data); i++ {
		prev := data[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (data[i].Close-prev)/prev)
	}
	return returns
}
