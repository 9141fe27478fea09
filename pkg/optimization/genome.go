// Package optimization searches the stop-loss and allocation parameter
// space with a genetic algorithm, scoring candidates against the
// short-premium backtest simulation.
package optimization

import (
	"math/rand"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
)

// Genome is one candidate parameter set. Only the thresholds the stop
// rules and sizing gates consume are searched; structural limits stay
// at their configured values.
type Genome struct {
	PremiumDecayThreshold float64 `json:"premium_decay_threshold"`
	VolSpikeRatio         float64 `json:"vol_spike_ratio"`
	AdverseMoveThreshold  float64 `json:"adverse_move_threshold"`
	Allocation            float64 `json:"allocation"`
}

// ApplyTo overlays the genome onto a risk configuration
func (g Genome) ApplyTo(cfg config.RiskConfig) config.RiskConfig {
	out := cfg
	out.PremiumDecayThreshold = g.PremiumDecayThreshold
	out.VolSpikeRatio = g.VolSpikeRatio
	out.AdverseMoveThreshold = g.AdverseMoveThreshold
	out.MaxPortfolioAllocation = g.Allocation
	return out
}

// Range bounds one searched parameter
type Range struct {
	Min float64
	Max float64
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func (r Range) clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Ranges bounds the full genome
type Ranges struct {
	PremiumDecay Range
	VolSpike     Range
	AdverseMove  Range
	Allocation   Range
}

// DefaultRanges covers the legal span of each threshold without
// touching the degenerate edges.
func DefaultRanges() Ranges {
	return Ranges{
		PremiumDecay: Range{Min: 0.10, Max: 0.50},
		VolSpike:     Range{Min: 1.2, Max: 3.0},
		AdverseMove:  Range{Min: 0.05, Max: 0.25},
		Allocation:   Range{Min: 0.01, Max: 0.10},
	}
}

func (r Ranges) sample(rng *rand.Rand) Genome {
	return Genome{
		PremiumDecayThreshold: r.PremiumDecay.sample(rng),
		VolSpikeRatio:         r.VolSpike.sample(rng),
		AdverseMoveThreshold:  r.AdverseMove.sample(rng),
		Allocation:            r.Allocation.sample(rng),
	}
}

func (r Ranges) clamp(g Genome) Genome {
	return Genome{
		PremiumDecayThreshold: r.PremiumDecay.clamp(g.PremiumDecayThreshold),
		VolSpikeRatio:         r.VolSpike.clamp(g.VolSpikeRatio),
		AdverseMoveThreshold:  r.AdverseMove.clamp(g.AdverseMoveThreshold),
		Allocation:            r.Allocation.clamp(g.Allocation),
	}
}
