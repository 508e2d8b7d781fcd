package core

import (
	"slices"
	"testing"
)

func TestShuffleDeterministic(t *testing.T) {
	base := make([]int, 64)
	for i := range base {
		base[i] = i
	}
	a := slices.Clone(base)
	b := slices.Clone(base)
	Shuffle(NewRNG(7).Source(), a)
	Shuffle(NewRNG(7).Source(), b)
	if !slices.Equal(a, b) {
		t.Fatal("same seed produced different permutations")
	}
	if slices.Equal(a, base) {
		t.Fatal("shuffle left the slice untouched")
	}
	slices.Sort(a)
	if !slices.Equal(a, base) {
		t.Fatal("shuffle is not a permutation")
	}
}
