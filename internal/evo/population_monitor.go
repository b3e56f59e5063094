package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"knapga/internal/model"
)

const DefaultMaxBootstrapAttempts = 1000

var (
	ErrInvalidConfig      = errors.New("invalid monitor config")
	ErrBootstrapExhausted = errors.New("bootstrap attempts exhausted")
)

type MonitorConfig struct {
	WeightMin      int
	WeightMax      int
	PopulationSize int
	Epochs         int
	CrossoverRate  float64
	MutationRate   float64
	// InitialZeroBias is the code-rule zero count at the start of each run.
	// Zero selects DefaultZeroBias.
	InitialZeroBias int
	// MaxBootstrapAttempts caps the initialize/select retries before the
	// first feasible population. Zero selects DefaultMaxBootstrapAttempts.
	MaxBootstrapAttempts int
	Seed                 int64
	Selector             Selector
	Crossover            Recombiner
	Mutation             Mutator
	Logger               *zap.Logger
}

type RunResult struct {
	// Selection is the best individual's inclusion mask in catalog order.
	Selection []bool
	Best      Individual
	// BestByGeneration is the best-so-far value after each generation.
	BestByGeneration []float64
	// GenerationBest is each generation's own best feasible individual.
	GenerationBest    []Individual
	Diagnostics       []model.GenerationDiagnostics
	BootstrapAttempts int
	FinalZeroBias     int
}

// PopulationMonitor runs the generational loop over a fixed item catalog.
// A monitor may be reused; every Run starts from a fresh code rule and a
// random source seeded with cfg.Seed.
type PopulationMonitor struct {
	cfg   MonitorConfig
	items []model.Item
	log   *zap.Logger
}

func NewPopulationMonitor(items []model.Item, cfg MonitorConfig) (*PopulationMonitor, error) {
	for i, item := range items {
		if err := ValidateItem(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidConfig, i, err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	monitor := &PopulationMonitor{
		items: append([]model.Item(nil), items...),
		log:   cfg.Logger,
	}
	// One item or none never reaches the loop, so its configuration is not checked.
	if len(items) <= 1 {
		monitor.cfg = cfg
		return monitor, nil
	}

	if cfg.WeightMin < 0 {
		return nil, fmt.Errorf("%w: weight min must be >= 0", ErrInvalidConfig)
	}
	if cfg.WeightMin > cfg.WeightMax {
		return nil, fmt.Errorf("%w: weight min %d exceeds weight max %d", ErrInvalidConfig, cfg.WeightMin, cfg.WeightMax)
	}
	totalWeight := 0
	for _, item := range items {
		totalWeight += item.Weight
	}
	if cfg.WeightMin > totalWeight {
		return nil, fmt.Errorf("%w: weight min %d exceeds total catalog weight %d", ErrInvalidConfig, cfg.WeightMin, totalWeight)
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if cfg.PopulationSize%2 != 0 {
		return nil, fmt.Errorf("%w: population size must be even, got %d", ErrInvalidConfig, cfg.PopulationSize)
	}
	if cfg.Epochs < 0 {
		return nil, fmt.Errorf("%w: epochs must be >= 0", ErrInvalidConfig)
	}
	if !validRate(cfg.CrossoverRate) {
		return nil, fmt.Errorf("%w: crossover rate must be in [0, 1]", ErrInvalidConfig)
	}
	if !validRate(cfg.MutationRate) {
		return nil, fmt.Errorf("%w: mutation rate must be in [0, 1]", ErrInvalidConfig)
	}
	if cfg.InitialZeroBias < 0 {
		return nil, fmt.Errorf("%w: initial zero bias must be >= 0", ErrInvalidConfig)
	}
	if cfg.InitialZeroBias == 0 {
		cfg.InitialZeroBias = DefaultZeroBias
	}
	if cfg.MaxBootstrapAttempts < 0 {
		return nil, fmt.Errorf("%w: max bootstrap attempts must be >= 0", ErrInvalidConfig)
	}
	if cfg.MaxBootstrapAttempts == 0 {
		cfg.MaxBootstrapAttempts = DefaultMaxBootstrapAttempts
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{Window: WeightWindow{Min: cfg.WeightMin, Max: cfg.WeightMax}}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = SinglePointCrossover{Rate: cfg.CrossoverRate}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = BitFlipMutation{Rate: cfg.MutationRate}
	}

	monitor.cfg = cfg
	return monitor, nil
}

// ValidateItem rejects items that cannot be scored.
func ValidateItem(item model.Item) error {
	if item.ID == "" {
		return errors.New("item id is required")
	}
	if item.Weight < 0 {
		return fmt.Errorf("item %s: weight must be >= 0", item.ID)
	}
	if item.Value < 0 || math.IsNaN(item.Value) || math.IsInf(item.Value, 0) {
		return fmt.Errorf("item %s: value must be a finite number >= 0", item.ID)
	}
	return nil
}

func validRate(rate float64) bool {
	return rate >= 0 && rate <= 1
}

func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	switch len(m.items) {
	case 0:
		return RunResult{Selection: []bool{}}, nil
	case 1:
		only := Chromosome{true}
		scored, _ := Evaluate(m.items, []Chromosome{only})
		return RunResult{Selection: []bool{true}, Best: scored[0]}, nil
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	rule := NewCodeRule(m.cfg.InitialZeroBias)

	population, pool, attempts, err := m.bootstrap(ctx, rng, rule)
	if err != nil {
		return RunResult{}, err
	}
	_, best := Evaluate(m.items, Chromosomes(pool))

	bestHistory := make([]float64, 0, m.cfg.Epochs)
	generationBest := make([]Individual, 0, m.cfg.Epochs)
	diagnostics := make([]model.GenerationDiagnostics, 0, m.cfg.Epochs)

	for gen := 0; gen < m.cfg.Epochs; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		scored, _ := Evaluate(m.items, population)
		selected, err := m.cfg.Selector.Select(rng, scored, m.cfg.PopulationSize)
		fallback := false
		if err != nil {
			if !errors.Is(err, ErrInfeasiblePopulation) {
				return RunResult{}, err
			}
			// Breed from the last feasible pool instead of the empty selection.
			fallback = true
			selected = pool
			m.log.Warn("generation produced no feasible individuals, reusing previous pool",
				zap.Int("generation", gen+1),
				zap.Error(err),
			)
		}
		pool = selected

		feasible, local := Evaluate(m.items, Chromosomes(selected))
		crossed, pairs, err := m.cfg.Crossover.Recombine(rng, Chromosomes(selected))
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d crossover: %w", gen+1, err)
		}
		mutated, flipped, err := m.cfg.Mutation.Mutate(rng, crossed)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d mutation: %w", gen+1, err)
		}
		population = mutated

		if local.Value > best.Value {
			best = local
		}
		bestHistory = append(bestHistory, best.Value)
		generationBest = append(generationBest, local)

		feasibleCount := len(feasible)
		if fallback {
			feasibleCount = 0
		}
		diagnostics = append(diagnostics, model.GenerationDiagnostics{
			Generation:     gen + 1,
			BestValue:      local.Value,
			BestWeight:     local.Weight,
			MeanValue:      meanValue(feasible),
			FeasibleCount:  feasibleCount,
			CrossoverPairs: pairs,
			MutatedBits:    flipped,
			Fallback:       fallback,
		})
		m.log.Debug("generation complete",
			zap.Int("generation", gen+1),
			zap.Float64("generation_best", local.Value),
			zap.Float64("best_so_far", best.Value),
			zap.Int("crossover_pairs", pairs),
			zap.Int("mutated_bits", flipped),
		)
	}

	m.log.Info("run complete",
		zap.Int("epochs", m.cfg.Epochs),
		zap.Int("bootstrap_attempts", attempts),
		zap.Float64("best_value", best.Value),
		zap.Int("best_weight", best.Weight),
		zap.Int("selected_items", best.Chromosome.Ones()),
		zap.Stringer("best_chromosome", best.Chromosome),
	)

	return RunResult{
		Selection:         best.Chromosome.Decode(),
		Best:              best,
		BestByGeneration:  bestHistory,
		GenerationBest:    generationBest,
		Diagnostics:       diagnostics,
		BootstrapAttempts: attempts,
		FinalZeroBias:     rule.Zeros(),
	}, nil
}

// bootstrap draws populations until one passes selection, widening the code
// rule after every failure. It returns the accepted raw population, its
// feasible selection and the number of attempts used.
func (m *PopulationMonitor) bootstrap(ctx context.Context, rng *rand.Rand, rule *CodeRule) ([]Chromosome, []Individual, int, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxBootstrapAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}
		population := InitPopulation(rng, rule, m.cfg.PopulationSize, len(m.items))
		scored, _ := Evaluate(m.items, population)
		selected, err := m.cfg.Selector.Select(rng, scored, m.cfg.PopulationSize)
		if err == nil {
			return population, selected, attempt, nil
		}
		if !errors.Is(err, ErrInfeasiblePopulation) {
			return nil, nil, 0, err
		}
		lastErr = err
		rule.Widen()
		m.log.Debug("bootstrap population infeasible",
			zap.Int("attempt", attempt),
			zap.Int("zero_bias", rule.Zeros()),
			zap.Float64("one_probability", rule.OneProbability()),
			zap.Error(err),
		)
	}
	return nil, nil, 0, fmt.Errorf("%w after %d attempts: %w", ErrBootstrapExhausted, m.cfg.MaxBootstrapAttempts, lastErr)
}
