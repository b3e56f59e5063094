package evo

import "math/rand"

// Selector turns a scored population into the next parent pool.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, scored []Individual, count int) ([]Individual, error)
}

// Recombiner pairs parents and returns the recombined population and the number of pairs.
type Recombiner interface {
	Name() string
	Recombine(rng *rand.Rand, population []Chromosome) ([]Chromosome, int, error)
}

// Mutator perturbs a population and returns it with the number of flipped bits.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, population []Chromosome) ([]Chromosome, int, error)
}
