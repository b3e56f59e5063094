package evo

import (
	"testing"

	"knapga/internal/model"
)

func sampleItems() []model.Item {
	return []model.Item{
		{ID: "A", Weight: 1, Value: 3},
		{ID: "B", Weight: 2, Value: 2},
		{ID: "C", Weight: 4, Value: 6},
		{ID: "D", Weight: 6, Value: 8},
	}
}

func mustChromosome(t *testing.T, s string) Chromosome {
	t.Helper()
	c, err := parseChromosome(s)
	if err != nil {
		t.Fatalf("parse chromosome %q: %v", s, err)
	}
	return c
}

func columnCounts(population []Chromosome) []int {
	if len(population) == 0 {
		return nil
	}
	counts := make([]int, len(population[0]))
	for _, c := range population {
		for i, bit := range c {
			if bit {
				counts[i]++
			}
		}
	}
	return counts
}
