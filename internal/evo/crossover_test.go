package evo

import (
	"math/rand"
	"testing"
)

func TestSwapSuffix(t *testing.T) {
	a := mustChromosome(t, "1111")
	b := mustChromosome(t, "0000")

	cases := []struct {
		cut   int
		wantA string
		wantB string
	}{
		{0, "0000", "1111"},
		{1, "1000", "0111"},
		{3, "1110", "0001"},
		{4, "1111", "0000"},
	}
	for _, tc := range cases {
		childA, childB := swapSuffix(a, b, tc.cut)
		if childA.String() != tc.wantA || childB.String() != tc.wantB {
			t.Fatalf("cut=%d: got %s/%s want %s/%s", tc.cut, childA, childB, tc.wantA, tc.wantB)
		}
	}
	if a.String() != "1111" || b.String() != "0000" {
		t.Fatal("parents mutated by crossover")
	}
}

func TestCrossoverPreservesSizeAndPairsEvenly(t *testing.T) {
	for _, rate := range []float64{0, 0.2, 0.5, 0.9, 1} {
		for seed := int64(1); seed <= 20; seed++ {
			rng := rand.New(rand.NewSource(seed))
			population := InitPopulation(rng, NewCodeRule(1), 10, 6)
			before := columnCounts(population)

			next, pairs, err := SinglePointCrossover{Rate: rate}.Recombine(rng, population)
			if err != nil {
				t.Fatalf("rate=%v seed=%d: %v", rate, seed, err)
			}
			if len(next) != len(population) {
				t.Fatalf("rate=%v seed=%d: size changed %d -> %d", rate, seed, len(population), len(next))
			}
			if pairs*2 > len(population) {
				t.Fatalf("rate=%v seed=%d: %d pairs from %d individuals", rate, seed, pairs, len(population))
			}
			for i, c := range next {
				if len(c) != 6 {
					t.Fatalf("rate=%v seed=%d: chromosome %d has length %d", rate, seed, i, len(c))
				}
			}
			after := columnCounts(next)
			for i := range before {
				if before[i] != after[i] {
					t.Fatalf("rate=%v seed=%d: bit column %d changed %d -> %d", rate, seed, i, before[i], after[i])
				}
			}
		}
	}
}

func TestCrossoverRateZeroPassesThrough(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	population := InitPopulation(rng, NewCodeRule(1), 8, 5)
	next, pairs, err := SinglePointCrossover{Rate: 0}.Recombine(rng, population)
	if err != nil {
		t.Fatalf("recombine: %v", err)
	}
	if pairs != 0 {
		t.Fatalf("expected no pairs, got %d", pairs)
	}
	for i := range population {
		if !population[i].equal(next[i]) {
			t.Fatalf("chromosome %d changed", i)
		}
	}
}

func TestCrossoverRateOnePairsEveryone(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	population := InitPopulation(rng, NewCodeRule(1), 8, 5)
	_, pairs, err := SinglePointCrossover{Rate: 1}.Recombine(rng, population)
	if err != nil {
		t.Fatalf("recombine: %v", err)
	}
	if pairs != 4 {
		t.Fatalf("expected 4 pairs, got %d", pairs)
	}
}

func TestCrossoverMarkCountIsAlwaysEven(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	c := SinglePointCrossover{Rate: 0.5}
	for i := 0; i < 500; i++ {
		n := 1 + i%11
		if marked := c.mark(rng, n); len(marked)%2 != 0 {
			t.Fatalf("odd mark count %d for n=%d", len(marked), n)
		}
	}
}

func TestCrossoverRejectsUnpairablePopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	population := InitPopulation(rng, NewCodeRule(1), 3, 4)
	if _, _, err := (SinglePointCrossover{Rate: 1}).Recombine(rng, population); err == nil {
		t.Fatal("expected error for odd population at rate 1")
	}
	if _, _, err := (SinglePointCrossover{Rate: 1.5}).Recombine(rng, population); err == nil {
		t.Fatal("expected error for rate above 1")
	}
	if _, _, err := (SinglePointCrossover{Rate: 0.5}).Recombine(nil, population); err == nil {
		t.Fatal("expected error for nil random source")
	}
}
