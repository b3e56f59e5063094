package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"knapga/internal/model"
)

func newTestMonitor(t *testing.T, items []model.Item, cfg MonitorConfig) *PopulationMonitor {
	t.Helper()
	monitor, err := NewPopulationMonitor(items, cfg)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return monitor
}

func TestNewPopulationMonitorValidation(t *testing.T) {
	valid := MonitorConfig{WeightMin: 0, WeightMax: 10, PopulationSize: 10, Epochs: 5, CrossoverRate: 0.2, MutationRate: 0.01}
	cases := []struct {
		name   string
		mutate func(*MonitorConfig)
	}{
		{"negative weight min", func(c *MonitorConfig) { c.WeightMin = -1 }},
		{"min above max", func(c *MonitorConfig) { c.WeightMin = 8; c.WeightMax = 7 }},
		{"min above catalog weight", func(c *MonitorConfig) { c.WeightMin = 14; c.WeightMax = 20 }},
		{"zero population", func(c *MonitorConfig) { c.PopulationSize = 0 }},
		{"odd population", func(c *MonitorConfig) { c.PopulationSize = 7 }},
		{"negative epochs", func(c *MonitorConfig) { c.Epochs = -1 }},
		{"crossover rate above one", func(c *MonitorConfig) { c.CrossoverRate = 1.1 }},
		{"negative mutation rate", func(c *MonitorConfig) { c.MutationRate = -0.5 }},
		{"nan mutation rate", func(c *MonitorConfig) { c.MutationRate = math.NaN() }},
		{"negative zero bias", func(c *MonitorConfig) { c.InitialZeroBias = -1 }},
		{"negative bootstrap cap", func(c *MonitorConfig) { c.MaxBootstrapAttempts = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			_, err := NewPopulationMonitor(sampleItems(), cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected invalid config error, got %v", err)
			}
		})
	}

	if _, err := NewPopulationMonitor(sampleItems(), valid); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestNewPopulationMonitorRejectsBadItems(t *testing.T) {
	cfg := MonitorConfig{WeightMax: 10, PopulationSize: 4}
	for _, item := range []model.Item{
		{ID: "", Weight: 1, Value: 1},
		{ID: "x", Weight: -1, Value: 1},
		{ID: "x", Weight: 1, Value: -1},
		{ID: "x", Weight: 1, Value: math.Inf(1)},
	} {
		items := append(sampleItems(), item)
		if _, err := NewPopulationMonitor(items, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("item %+v: expected invalid config error, got %v", item, err)
		}
	}
}

func TestRunSingleItemAlwaysIncluded(t *testing.T) {
	items := []model.Item{{ID: "only", Weight: 50, Value: 1}}
	// The window would exclude the item; a single item short-circuits the search.
	monitor := newTestMonitor(t, items, MonitorConfig{WeightMin: 0, WeightMax: 1, PopulationSize: 3})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Selection) != 1 || !result.Selection[0] {
		t.Fatalf("expected [true], got %v", result.Selection)
	}
}

func TestRunEmptyCatalog(t *testing.T) {
	monitor := newTestMonitor(t, nil, MonitorConfig{})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Selection == nil || len(result.Selection) != 0 {
		t.Fatalf("expected empty selection, got %v", result.Selection)
	}
}

func TestRunUnconstrainedConvergesToAllItems(t *testing.T) {
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{
		WeightMin:      0,
		WeightMax:      9999,
		PopulationSize: 40,
		Epochs:         300,
		CrossoverRate:  0.6,
		MutationRate:   0.05,
		Seed:           7,
	})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []bool{true, true, true, true}
	for i := range want {
		if result.Selection[i] != want[i] {
			t.Fatalf("expected all items selected, got %v", result.Selection)
		}
	}
	if result.Best.Weight != 13 || result.Best.Value != 19 {
		t.Fatalf("unexpected best: weight=%d value=%v", result.Best.Weight, result.Best.Value)
	}
}

func TestRunRespectsWeightCeiling(t *testing.T) {
	items := sampleItems()
	for seed := int64(1); seed <= 5; seed++ {
		monitor := newTestMonitor(t, items, MonitorConfig{
			WeightMin:      0,
			WeightMax:      5,
			PopulationSize: 30,
			Epochs:         150,
			CrossoverRate:  0.5,
			MutationRate:   0.05,
			Seed:           seed,
		})
		result, err := monitor.Run(context.Background())
		if err != nil {
			t.Fatalf("seed=%d run: %v", seed, err)
		}
		weight := 0
		for i, included := range result.Selection {
			if included {
				weight += items[i].Weight
			}
		}
		if weight > 5 {
			t.Fatalf("seed=%d: selection %v weighs %d", seed, result.Selection, weight)
		}
		if result.Best.Value != 9 || result.Best.Chromosome.String() != "1010" {
			t.Fatalf("seed=%d: expected {A,C} with value 9, got %s value=%v", seed, result.Best.Chromosome, result.Best.Value)
		}
	}
}

func TestRunBestSoFarIsMonotone(t *testing.T) {
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{
		WeightMin:      2,
		WeightMax:      8,
		PopulationSize: 12,
		Epochs:         60,
		CrossoverRate:  0.4,
		MutationRate:   0.1,
		Seed:           11,
	})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.BestByGeneration) != 60 || len(result.GenerationBest) != 60 || len(result.Diagnostics) != 60 {
		t.Fatalf("unexpected history lengths: %d %d %d", len(result.BestByGeneration), len(result.GenerationBest), len(result.Diagnostics))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best-so-far decreased at generation %d: %v", i+1, result.BestByGeneration)
		}
	}
	for i, ind := range result.GenerationBest {
		if ind.Weight < 2 || ind.Weight > 8 {
			t.Fatalf("generation %d best weighs %d", i+1, ind.Weight)
		}
		if ind.Value > result.BestByGeneration[i] {
			t.Fatalf("generation %d best %v exceeds best-so-far %v", i+1, ind.Value, result.BestByGeneration[i])
		}
	}
	if result.Best.Value != result.BestByGeneration[len(result.BestByGeneration)-1] {
		t.Fatalf("final best %v does not match history tail", result.Best.Value)
	}
	for _, d := range result.Diagnostics {
		if d.CrossoverPairs*2 > 12 {
			t.Fatalf("generation %d: %d pairs", d.Generation, d.CrossoverPairs)
		}
	}
}

func TestRunZeroEpochsReturnsBootstrapBest(t *testing.T) {
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{WeightMax: 7, PopulationSize: 10, Seed: 3})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Selection) != 4 {
		t.Fatalf("expected full-length selection, got %v", result.Selection)
	}
	if result.Best.Weight > 7 || result.Best.Value <= 0 {
		t.Fatalf("expected a feasible valued bootstrap best, got %+v", result.Best)
	}
	if len(result.BestByGeneration) != 0 {
		t.Fatalf("expected no generations, got %d", len(result.BestByGeneration))
	}
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	cfg := MonitorConfig{WeightMax: 9, PopulationSize: 10, Epochs: 25, CrossoverRate: 0.3, MutationRate: 0.05, Seed: 42}
	monitor := newTestMonitor(t, sampleItems(), cfg)
	first, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !first.Best.Chromosome.equal(second.Best.Chromosome) || fmt.Sprint(first.BestByGeneration) != fmt.Sprint(second.BestByGeneration) {
		t.Fatalf("expected identical runs, got %v vs %v", first.BestByGeneration, second.BestByGeneration)
	}
}

func TestRunBootstrapExhausted(t *testing.T) {
	// No subset of {2, 4} weighs exactly 3.
	items := []model.Item{{ID: "a", Weight: 2, Value: 1}, {ID: "b", Weight: 4, Value: 1}}
	monitor := newTestMonitor(t, items, MonitorConfig{
		WeightMin:            3,
		WeightMax:            3,
		PopulationSize:       4,
		Epochs:               5,
		MaxBootstrapAttempts: 6,
	})
	_, err := monitor.Run(context.Background())
	if !errors.Is(err, ErrBootstrapExhausted) {
		t.Fatalf("expected bootstrap exhausted error, got %v", err)
	}
	if !errors.Is(err, ErrInfeasiblePopulation) {
		t.Fatalf("expected wrapped infeasible population error, got %v", err)
	}
}

// scriptedSelector fails with ErrInfeasiblePopulation on the listed call numbers.
type scriptedSelector struct {
	inner RouletteSelector
	fail  map[int]bool
	calls int
}

func (s *scriptedSelector) Name() string { return "scripted" }

func (s *scriptedSelector) Select(rng *rand.Rand, scored []Individual, count int) ([]Individual, error) {
	s.calls++
	if s.fail[s.calls] {
		return nil, fmt.Errorf("%w: scripted", ErrInfeasiblePopulation)
	}
	return s.inner.Select(rng, scored, count)
}

func TestRunBootstrapWidensCodeRule(t *testing.T) {
	selector := &scriptedSelector{
		inner: RouletteSelector{Window: WeightWindow{Min: 0, Max: 9999}},
		fail:  map[int]bool{1: true, 2: true, 3: true},
	}
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{
		WeightMax:      9999,
		PopulationSize: 6,
		Epochs:         2,
		Selector:       selector,
	})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.BootstrapAttempts != 4 {
		t.Fatalf("expected 4 bootstrap attempts, got %d", result.BootstrapAttempts)
	}
	if result.FinalZeroBias != DefaultZeroBias+3 {
		t.Fatalf("expected zero bias %d, got %d", DefaultZeroBias+3, result.FinalZeroBias)
	}

	// Each run starts again from the configured bias.
	selector.calls = 0
	selector.fail = nil
	result, err = monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.FinalZeroBias != DefaultZeroBias {
		t.Fatalf("expected zero bias reset to %d, got %d", DefaultZeroBias, result.FinalZeroBias)
	}
}

func TestRunLogsBootstrapBiasAndSelectedItems(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	selector := &scriptedSelector{
		inner: RouletteSelector{Window: WeightWindow{Min: 0, Max: 9999}},
		fail:  map[int]bool{1: true, 2: true},
	}
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{
		WeightMax:      9999,
		PopulationSize: 6,
		Epochs:         3,
		Selector:       selector,
		Logger:         zap.New(core),
	})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	failed := logs.FilterMessage("bootstrap population infeasible").All()
	if len(failed) != 2 {
		t.Fatalf("expected 2 bootstrap failure entries, got %d", len(failed))
	}
	for i, entry := range failed {
		want := 1 / float64(DefaultZeroBias+i+2)
		got, ok := entry.ContextMap()["one_probability"].(float64)
		if !ok || math.Abs(got-want) > 1e-12 {
			t.Fatalf("attempt %d: expected one_probability %v, got %v", i+1, want, entry.ContextMap()["one_probability"])
		}
	}

	done := logs.FilterMessage("run complete").All()
	if len(done) != 1 {
		t.Fatalf("expected one run complete entry, got %d", len(done))
	}
	selected := 0
	for _, include := range result.Selection {
		if include {
			selected++
		}
	}
	if got := done[0].ContextMap()["selected_items"]; got != int64(selected) {
		t.Fatalf("expected selected_items=%d, got %v", selected, got)
	}
}

func TestRunFallsBackToPreviousPoolWhenGenerationIsInfeasible(t *testing.T) {
	selector := &scriptedSelector{
		inner: RouletteSelector{Window: WeightWindow{Min: 0, Max: 9999}},
		fail:  map[int]bool{3: true},
	}
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{
		WeightMax:      9999,
		PopulationSize: 8,
		Epochs:         4,
		CrossoverRate:  0.5,
		MutationRate:   0.1,
		Selector:       selector,
	})
	result, err := monitor.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Call 1 is bootstrap, so call 3 is the second generation.
	for _, d := range result.Diagnostics {
		wantFallback := d.Generation == 2
		if d.Fallback != wantFallback {
			t.Fatalf("generation %d: fallback=%v", d.Generation, d.Fallback)
		}
		if wantFallback && d.FeasibleCount != 0 {
			t.Fatalf("fallback generation reports %d feasible", d.FeasibleCount)
		}
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best-so-far decreased: %v", result.BestByGeneration)
		}
	}
}

func TestRunHonorsCanceledContext(t *testing.T) {
	monitor := newTestMonitor(t, sampleItems(), MonitorConfig{WeightMax: 10, PopulationSize: 4, Epochs: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := monitor.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
