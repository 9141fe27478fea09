package regime

import (
	"math"
)

// Classifier labels return windows with a market regime from trailing
// trend and realized volatility. Thresholds are expressed per bar.
type Classifier struct {
	window      int
	trendThresh float64
	volThresh   float64
	crisisScale float64
	minBars     int
}

// NewClassifier builds a classifier with the given trailing window.
// Windows below 5 bars are raised to 5.
func NewClassifier(window int) *Classifier {
	if window < 5 {
		window = 5
	}
	return &Classifier{
		window:      window,
		trendThresh: 0.002,
		volThresh:   0.025,
		crisisScale: 2.0,
		minBars:     5,
	}
}

// Classify labels the regime at the end of the return series, using at
// most the trailing window of returns. Fewer than minBars returns yield
// RegimeNormal.
func (c *Classifier) Classify(returns []float64) Regime {
	if len(returns) < c.minBars {
		return RegimeNormal
	}

	window := returns
	if len(window) > c.window {
		window = window[len(window)-c.window:]
	}

	trend := mean(window)
	vol := stddev(window)

	highVol := vol >= c.volThresh
	extremeVol := vol >= c.volThresh*c.crisisScale
	bearish := trend <= -c.trendThresh
	bullish := trend >= c.trendThresh

	switch {
	case extremeVol && bearish:
		return RegimeCrisis
	case bearish:
		return RegimeBear
	case highVol:
		return RegimeHighVolatility
	case bullish:
		return RegimeBull
	default:
		return RegimeNormal
	}
}

// ClassifySeries labels every bar of a return series with its trailing
// regime. The result has the same length as the input.
func (c *Classifier) ClassifySeries(returns []float64) []Regime {
	labels := make([]Regime, len(returns))
	for i := range returns {
		labels[i] = c.Classify(returns[:i+1])
	}
	return labels
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
