package optimization

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/config"
)

// drawdownPenalty weights the max-drawdown term in the fitness score.
// Fitness = net return - penalty x drawdown, so the search rewards
// carry only when it survives its own tail.
const drawdownPenalty = 2.0

// Config holds the genetic-algorithm settings
type Config struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	CrossoverRate  float64
	EliteSize      int
	TournamentSize int
	MaxWorkers     int
	Seed           int64 // 0 seeds from the clock
}

// DefaultConfig returns settings sized for an interactive CLI run
func DefaultConfig() Config {
	return Config{
		PopulationSize: 40,
		Generations:    25,
		MutationRate:   0.15,
		CrossoverRate:  0.8,
		EliteSize:      4,
		TournamentSize: 3,
		MaxWorkers:     runtime.NumCPU(),
	}
}

// Individual pairs a genome with its evaluated fitness
type Individual struct {
	Genome    Genome
	Fitness   float64
	evaluated bool
}

// Optimizer searches the stop-loss parameter space against a return
// series. Evaluation is parallel; selection and breeding are serial so
// runs with a fixed seed reproduce exactly.
type Optimizer struct {
	cfg    Config
	ranges Ranges
	base   config.RiskConfig
	rng    *rand.Rand
}

// New builds an optimizer. Zero config fields fall back to defaults.
func New(cfg Config, ranges Ranges, base config.RiskConfig) *Optimizer {
	d := DefaultConfig()
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = d.PopulationSize
	}
	if cfg.Generations <= 0 {
		cfg.Generations = d.Generations
	}
	if cfg.MutationRate <= 0 {
		cfg.MutationRate = d.MutationRate
	}
	if cfg.CrossoverRate <= 0 {
		cfg.CrossoverRate = d.CrossoverRate
	}
	if cfg.EliteSize <= 0 || cfg.EliteSize >= cfg.PopulationSize {
		cfg.EliteSize = d.EliteSize
		if cfg.EliteSize >= cfg.PopulationSize {
			cfg.EliteSize = 1
		}
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = d.TournamentSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = d.MaxWorkers
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Optimizer{
		cfg:    cfg,
		ranges: ranges,
		base:   base,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Optimize runs the generational loop and returns the fittest genome
// seen. The context cancels between generations.
func (o *Optimizer) Optimize(ctx context.Context, returns []float64) (Individual, error) {
	if len(returns) == 0 {
		return Individual{}, fmt.Errorf("no returns to optimize against")
	}

	population := make([]Individual, o.cfg.PopulationSize)
	for i := range population {
		population[i] = Individual{Genome: o.ranges.sample(o.rng)}
	}

	best := Individual{Fitness: math.Inf(-1)}
	for gen := 0; gen < o.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		o.evaluate(population, returns)
		sort.SliceStable(population, func(i, j int) bool {
			return population[i].Fitness > population[j].Fitness
		})
		if population[0].Fitness > best.Fitness {
			best = population[0]
		}

		log.Debug().
			Str("component", "optimizer").
			Int("generation", gen).
			Float64("best", population[0].Fitness).
			Float64("avg", averageFitness(population)).
			Msg("Generation evaluated")

		if gen < o.cfg.Generations-1 {
			population = o.nextGeneration(population)
		}
	}

	if math.IsInf(best.Fitness, -1) {
		return best, fmt.Errorf("no viable genome found in %d generations", o.cfg.Generations)
	}
	return best, nil
}

// evaluate fills in fitness for unevaluated individuals, bounded by the
// worker limit.
func (o *Optimizer) evaluate(population []Individual, returns []float64) {
	var wg sync.WaitGroup
	slots := make(chan struct{}, o.cfg.MaxWorkers)

	for i := range population {
		if population[i].evaluated {
			continue
		}
		wg.Add(1)
		go func(ind *Individual) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			ind.Fitness = o.fitness(ind.Genome, returns)
			ind.evaluated = true
		}(&population[i])
	}
	wg.Wait()
}

// fitness scores a genome by simulating the short-premium proxy under
// its thresholds. Genomes the simulator rejects score negative
// infinity and die out.
func (o *Optimizer) fitness(g Genome, returns []float64) float64 {
	sim, err := backtest.Simulate(returns, g.Allocation, g.ApplyTo(o.base))
	if err != nil {
		return math.Inf(-1)
	}
	score := sim.NetPnL - drawdownPenalty*backtest.MaxDrawdown(sim.Equity)
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}

// nextGeneration keeps the elite and breeds the rest by tournament
// selection, uniform crossover, and single-field mutation.
func (o *Optimizer) nextGeneration(population []Individual) []Individual {
	next := make([]Individual, len(population))
	copy(next, population[:o.cfg.EliteSize])

	for i := o.cfg.EliteSize; i < len(population); i++ {
		parent1 := o.tournament(population)
		parent2 := o.tournament(population)
		child := o.crossover(parent1.Genome, parent2.Genome)
		child = o.mutate(child)
		next[i] = Individual{Genome: o.ranges.clamp(child)}
	}
	return next
}

func (o *Optimizer) tournament(population []Individual) Individual {
	best := population[o.rng.Intn(len(population))]
	for i := 1; i < o.cfg.TournamentSize; i++ {
		candidate := population[o.rng.Intn(len(population))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// crossover takes each field from either parent with equal odds when
// the crossover roll hits, otherwise clones the first parent.
func (o *Optimizer) crossover(a, b Genome) Genome {
	child := a
	if o.rng.Float64() >= o.cfg.CrossoverRate {
		return child
	}
	if o.rng.Float64() < 0.5 {
		child.PremiumDecayThreshold = b.PremiumDecayThreshold
	}
	if o.rng.Float64() < 0.5 {
		child.VolSpikeRatio = b.VolSpikeRatio
	}
	if o.rng.Float64() < 0.5 {
		child.AdverseMoveThreshold = b.AdverseMoveThreshold
	}
	if o.rng.Float64() < 0.5 {
		child.Allocation = b.Allocation
	}
	return child
}

// mutate resamples one random field when the mutation roll hits
func (o *Optimizer) mutate(g Genome) Genome {
	if o.rng.Float64() >= o.cfg.MutationRate {
		return g
	}
	switch o.rng.Intn(4) {
	case 0:
		g.PremiumDecayThreshold = o.ranges.PremiumDecay.sample(o.rng)
	case 1:
		g.VolSpikeRatio = o.ranges.VolSpike.sample(o.rng)
	case 2:
		g.AdverseMoveThreshold = o.ranges.AdverseMove.sample(o.rng)
	default:
		g.Allocation = o.ranges.Allocation.sample(o.rng)
	}
	return g
}

func averageFitness(population []Individual) float64 {
	sum := 0.0
	for _, ind := range population {
		sum += ind.Fitness
	}
	return sum / float64(len(population))
}
