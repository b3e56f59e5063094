package evo

import (
	"fmt"
	"math/rand"
)

// SinglePointCrossover marks each chromosome with probability Rate, re-rolls
// the marks until their count is even, pairs the marked ones in random order
// and swaps suffixes at a uniform cut in [0, length].
type SinglePointCrossover struct {
	Rate float64
}

func (SinglePointCrossover) Name() string {
	return "single_point"
}

// Recombine returns the unmarked chromosomes in their original order followed
// by the children. The population size never changes.
func (c SinglePointCrossover) Recombine(rng *rand.Rand, population []Chromosome) ([]Chromosome, int, error) {
	if rng == nil {
		return nil, 0, fmt.Errorf("random source is required")
	}
	if c.Rate < 0 || c.Rate > 1 {
		return nil, 0, fmt.Errorf("crossover rate must be in [0, 1]: %v", c.Rate)
	}
	if c.Rate == 1 && len(population)%2 != 0 {
		return nil, 0, fmt.Errorf("cannot pair all of an odd population of %d", len(population))
	}

	marked := c.mark(rng, len(population))
	isMarked := make([]bool, len(population))
	parents := make([]Chromosome, 0, len(marked))
	for _, idx := range marked {
		isMarked[idx] = true
		parents = append(parents, population[idx])
	}
	rng.Shuffle(len(parents), func(i, j int) {
		parents[i], parents[j] = parents[j], parents[i]
	})

	children := make([]Chromosome, 0, len(parents))
	for i := 0; i+1 < len(parents); i += 2 {
		a, b := parents[i], parents[i+1]
		cut := rng.Intn(len(a) + 1)
		childA, childB := swapSuffix(a, b, cut)
		children = append(children, childA, childB)
	}

	next := make([]Chromosome, 0, len(population))
	for i, chromosome := range population {
		if !isMarked[i] {
			next = append(next, chromosome)
		}
	}
	next = append(next, children...)
	return next, len(children) / 2, nil
}

func (c SinglePointCrossover) mark(rng *rand.Rand, n int) []int {
	marked := make([]int, 0, n)
	for {
		marked = marked[:0]
		for i := 0; i < n; i++ {
			if rng.Float64() < c.Rate {
				marked = append(marked, i)
			}
		}
		if len(marked)%2 == 0 {
			return marked
		}
	}
}

func swapSuffix(a, b Chromosome, cut int) (Chromosome, Chromosome) {
	childA := make(Chromosome, 0, len(a))
	childA = append(childA, a[:cut]...)
	childA = append(childA, b[cut:]...)

	childB := make(Chromosome, 0, len(b))
	childB = append(childB, b[:cut]...)
	childB = append(childB, a[cut:]...)
	return childA, childB
}
