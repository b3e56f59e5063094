package evo

import (
	"fmt"
	"math/rand"
)

// BitFlipMutation flips every bit independently with probability Rate.
type BitFlipMutation struct {
	Rate float64
}

func (BitFlipMutation) Name() string {
	return "bit_flip"
}

// Mutate returns mutated copies; the input chromosomes are left untouched.
func (m BitFlipMutation) Mutate(rng *rand.Rand, population []Chromosome) ([]Chromosome, int, error) {
	if rng == nil {
		return nil, 0, fmt.Errorf("random source is required")
	}
	if m.Rate < 0 || m.Rate > 1 {
		return nil, 0, fmt.Errorf("mutation rate must be in [0, 1]: %v", m.Rate)
	}

	flipped := 0
	out := make([]Chromosome, 0, len(population))
	for _, chromosome := range population {
		mutated := chromosome.Clone()
		for i := range mutated {
			if rng.Float64() < m.Rate {
				mutated[i] = !mutated[i]
				flipped++
			}
		}
		out = append(out, mutated)
	}
	return out, flipped, nil
}
