package backtest

import (
	"math"
)

// tradingDaysPerYear annualizes metrics computed on daily bars.
const tradingDaysPerYear = 252

// SharpeRatio computes the per-bar Sharpe ratio of a PnL series using
// population variance. A near-zero standard deviation yields 0.
func SharpeRatio(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range pnl {
		mean += r
	}
	mean /= float64(len(pnl))

	variance := 0.0
	for _, r := range pnl {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(pnl))

	stdDev := math.Sqrt(variance)
	if stdDev < 1e-10 {
		return 0
	}
	return mean / stdDev
}

// AnnualizedSharpe scales a per-bar Sharpe ratio by the square root of
// the number of bars per year.
func AnnualizedSharpe(sharpe float64, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return sharpe
	}
	return sharpe * math.Sqrt(periodsPerYear)
}

// SortinoRatio computes mean PnL over downside deviation. A series with
// no losing bars returns +Inf when the mean is positive, 0 otherwise.
func SortinoRatio(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range pnl {
		mean += r
	}
	mean /= float64(len(pnl))

	downside := 0.0
	losses := 0
	for _, r := range pnl {
		if r < 0 {
			downside += r * r
			losses++
		}
	}
	if losses == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return 0
	}

	downsideDev := math.Sqrt(downside / float64(len(pnl)))
	if downsideDev < 1e-10 {
		return 0
	}
	return mean / downsideDev
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity
// curve as a positive fraction of the peak.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ProfitFactor returns gross profit over gross loss. A series with no
// losing bars returns +Inf when there is any profit, 0 otherwise.
func ProfitFactor(pnl []float64) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, r := range pnl {
		if r > 0 {
			grossProfit += r
		} else if r < 0 {
			grossLoss += -r
		}
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// WinRate returns the percentage of bars with positive PnL.
func WinRate(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}
	wins := 0
	for _, r := range pnl {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnl)) * 100
}
