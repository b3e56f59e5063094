package evo

import (
	"fmt"
	"strings"
)

// Chromosome holds one inclusion bit per catalog item, index for index.
type Chromosome []bool

func NewChromosome(length int) Chromosome {
	return make(Chromosome, length)
}

// parseChromosome reads the "0101" form produced by String.
func parseChromosome(s string) (Chromosome, error) {
	c := make(Chromosome, len(s))
	for i, r := range s {
		switch r {
		case '0':
		case '1':
			c[i] = true
		default:
			return nil, fmt.Errorf("invalid chromosome bit %q at %d", r, i)
		}
	}
	return c, nil
}

func (c Chromosome) String() string {
	var b strings.Builder
	b.Grow(len(c))
	for _, bit := range c {
		if bit {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (c Chromosome) Clone() Chromosome {
	if c == nil {
		return nil
	}
	out := make(Chromosome, len(c))
	copy(out, c)
	return out
}

// Decode returns the inclusion mask in catalog order.
func (c Chromosome) Decode() []bool {
	out := make([]bool, len(c))
	copy(out, c)
	return out
}

func (c Chromosome) Ones() int {
	n := 0
	for _, bit := range c {
		if bit {
			n++
		}
	}
	return n
}

func (c Chromosome) equal(other Chromosome) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}
