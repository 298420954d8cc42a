package evo

import (
	"sort"

	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
)

// Origin records how a layout entered the population.
type Origin string

const (
	OriginRandom   Origin = "random"
	OriginSeed     Origin = "seed"
	OriginMutation Origin = "mutation"
)

// ScoredLayout is an evaluated layout. It is never modified after the pool
// produces it.
type ScoredLayout struct {
	ID            string          `json:"id"`
	ParentID      string          `json:"parent_id,omitempty"`
	Generation    int             `json:"generation"`
	Origin        Origin          `json:"origin"`
	Swaps         int             `json:"swaps,omitempty"`
	Layout        keyboard.Layout `json:"-"`
	Fitness       float64         `json:"fitness"`
	TotalDistance uint64          `json:"total_distance"`
	Result        fitness.Result  `json:"result"`
}

// Population is ranked best first once sorted.
type Population []ScoredLayout

// Sort orders the population by descending fitness. Equal fitness keeps the
// existing order, so a population assembled in dispatch order sorts the same
// way on every run.
func (p Population) Sort() {
	sort.SliceStable(p, func(i, j int) bool {
		return p[i].Fitness > p[j].Fitness
	})
}

// Truncate keeps at most n members.
func (p Population) Truncate(n int) Population {
	if n < 0 {
		n = 0
	}
	if n >= len(p) {
		return p
	}
	return p[:n]
}

func (p Population) Best() (ScoredLayout, bool) {
	if len(p) == 0 {
		return ScoredLayout{}, false
	}
	return p[0], true
}

// Distinct counts members with different layouts.
func (p Population) Distinct() int {
	seen := make(map[keyboard.Layout]struct{}, len(p))
	for _, item := range p {
		seen[item.Layout] = struct{}{}
	}
	return len(seen)
}
