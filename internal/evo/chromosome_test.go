package evo

import "testing"

func TestChromosomeParseAndString(t *testing.T) {
	c, err := parseChromosome("1010")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(c) != 4 || !c[0] || c[1] || !c[2] || c[3] {
		t.Fatalf("unexpected bits: %v", c)
	}
	if got := c.String(); got != "1010" {
		t.Fatalf("unexpected string: %s", got)
	}
	if c.Ones() != 2 {
		t.Fatalf("expected 2 ones, got %d", c.Ones())
	}
}

func TestParseChromosomeRejectsOtherRunes(t *testing.T) {
	if _, err := parseChromosome("10x1"); err == nil {
		t.Fatal("expected error for invalid bit")
	}
}

func TestChromosomeDecodeMatchesBits(t *testing.T) {
	for _, s := range []string{"", "0", "1", "0110", "11111111", "100000001"} {
		c := mustChromosome(t, s)
		decoded := c.Decode()
		if len(decoded) != len(s) {
			t.Fatalf("decode %q: length %d", s, len(decoded))
		}
		for i := range s {
			if decoded[i] != (s[i] == '1') {
				t.Fatalf("decode %q: mismatch at %d", s, i)
			}
		}
	}
}

func TestChromosomeCloneAndDecodeDoNotAlias(t *testing.T) {
	c := mustChromosome(t, "0101")
	clone := c.Clone()
	decoded := c.Decode()
	clone[0] = true
	decoded[1] = false

	if c[0] || !c[1] {
		t.Fatalf("source mutated through copy: %s", c)
	}
	if !c.equal(mustChromosome(t, "0101")) {
		t.Fatal("expected equal chromosomes")
	}
	if c.equal(clone) {
		t.Fatal("expected clone to differ after edit")
	}
}
