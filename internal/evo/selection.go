package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrInfeasiblePopulation is returned when no individual fits the weight
// window or the feasible individuals carry no value to weigh the wheel by.
var ErrInfeasiblePopulation = errors.New("no feasible individuals")

// WeightWindow is an inclusive weight range.
type WeightWindow struct {
	Min int
	Max int
}

func (w WeightWindow) Contains(weight int) bool {
	return weight >= w.Min && weight <= w.Max
}

// SelectedIndividual carries the roulette probabilities of one feasible
// individual. P is its share of the total value, Q the running sum of P.
type SelectedIndividual struct {
	Individual
	P float64
	Q float64
}

// RouletteSelector drops individuals outside Window and samples the rest
// with replacement, proportionally to value.
type RouletteSelector struct {
	Window WeightWindow
}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (s RouletteSelector) Select(rng *rand.Rand, scored []Individual, count int) ([]Individual, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid selection count: %d", count)
	}
	wheel, err := s.Wheel(scored)
	if err != nil {
		return nil, err
	}

	cumulative := make([]float64, len(wheel))
	for i, entry := range wheel {
		cumulative[i] = entry.Q
	}

	selected := make([]Individual, 0, count)
	for i := 0; i < count; i++ {
		picked := wheel[spinIndex(cumulative, rng.Float64())].Individual
		picked.Chromosome = picked.Chromosome.Clone()
		selected = append(selected, picked)
	}
	return selected, nil
}

// Wheel filters scored down to the feasible individuals, keeping their order,
// and assigns P and Q.
func (s RouletteSelector) Wheel(scored []Individual) ([]SelectedIndividual, error) {
	wheel := make([]SelectedIndividual, 0, len(scored))
	total := 0.0
	for _, ind := range scored {
		if !s.Window.Contains(ind.Weight) {
			continue
		}
		wheel = append(wheel, SelectedIndividual{Individual: ind})
		total += ind.Value
	}
	if len(wheel) == 0 {
		return nil, fmt.Errorf("%w: none of %d within weight [%d, %d]", ErrInfeasiblePopulation, len(scored), s.Window.Min, s.Window.Max)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: total value of %d feasible individuals is zero", ErrInfeasiblePopulation, len(wheel))
	}

	running := 0.0
	for i := range wheel {
		wheel[i].P = wheel[i].Value / total
		running += wheel[i].P
		wheel[i].Q = running
	}
	return wheel, nil
}

// spinIndex returns the k with q[k-1] < r <= q[k], taking q[-1] as 0.
// Draws past the last entry, possible through rounding, land on the last entry.
func spinIndex(cumulative []float64, r float64) int {
	idx := sort.SearchFloat64s(cumulative, r)
	if idx >= len(cumulative) {
		idx = len(cumulative) - 1
	}
	return idx
}
