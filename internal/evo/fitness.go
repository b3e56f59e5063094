package evo

import "knapga/internal/model"

// Individual is a chromosome plus the weight and value it selects from the catalog.
type Individual struct {
	Chromosome Chromosome
	Weight     int
	Value      float64
}

// Evaluate scores every chromosome against items and returns the scored
// population together with the highest-value individual of this call.
// Ties keep the earliest individual. Infeasible chromosomes are scored too.
func Evaluate(items []model.Item, population []Chromosome) ([]Individual, Individual) {
	scored := make([]Individual, 0, len(population))
	var best Individual
	for i, chromosome := range population {
		ind := Individual{Chromosome: chromosome}
		for idx, bit := range chromosome {
			if !bit {
				continue
			}
			ind.Weight += items[idx].Weight
			ind.Value += items[idx].Value
		}
		scored = append(scored, ind)
		if i == 0 || ind.Value > best.Value {
			best = ind
		}
	}
	return scored, best
}

// Chromosomes strips the derived fitness from a population.
func Chromosomes(population []Individual) []Chromosome {
	out := make([]Chromosome, 0, len(population))
	for _, ind := range population {
		out = append(out, ind.Chromosome)
	}
	return out
}

func meanValue(population []Individual) float64 {
	if len(population) == 0 {
		return 0
	}
	total := 0.0
	for _, ind := range population {
		total += ind.Value
	}
	return total / float64(len(population))
}
