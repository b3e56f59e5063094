package evo

import "math/rand"

// DefaultZeroBias is the starting number of zero symbols against a single one.
const DefaultZeroBias = 4

// CodeRule is the weighted {0,1} symbol set used to sample initial bits.
// It holds Zeros copies of "0" and exactly one "1", so each sampled bit is
// set with probability 1/(Zeros+1).
type CodeRule struct {
	zeros int
}

func NewCodeRule(zeros int) *CodeRule {
	if zeros < 0 {
		zeros = 0
	}
	return &CodeRule{zeros: zeros}
}

func (r *CodeRule) Zeros() int {
	return r.zeros
}

// Widen adds one more zero symbol, biasing future samples toward lighter individuals.
func (r *CodeRule) Widen() {
	r.zeros++
}

func (r *CodeRule) OneProbability() float64 {
	return 1 / float64(r.zeros+1)
}

// Sample draws one symbol uniformly from the rule.
func (r *CodeRule) Sample(rng *rand.Rand) bool {
	return rng.Intn(r.zeros+1) == r.zeros
}

// InitPopulation samples size chromosomes of the given length, each bit drawn
// independently from rule.
func InitPopulation(rng *rand.Rand, rule *CodeRule, size, length int) []Chromosome {
	population := make([]Chromosome, 0, size)
	for i := 0; i < size; i++ {
		c := NewChromosome(length)
		for j := range c {
			c[j] = rule.Sample(rng)
		}
		population = append(population, c)
	}
	return population
}
