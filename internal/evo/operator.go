package evo

import (
	"math/rand"

	"keyevolve/internal/keyboard"
)

// DefaultSwapDecay is the factor the swap probability shrinks by after
// every swap.
const DefaultSwapDecay = 0.75

// Operator perturbs a layout. Implementations must return a permutation and
// must only draw randomness from rng.
type Operator interface {
	Name() string
	Mutate(layout keyboard.Layout, rng *rand.Rand) (keyboard.Layout, int)
}

// SwapMutation applies a geometrically distributed number of transpositions.
// The first swap always happens; each further swap happens with probability
// Decay times the previous one.
type SwapMutation struct {
	Decay float64
}

func (SwapMutation) Name() string {
	return "swap"
}

func (m SwapMutation) Mutate(layout keyboard.Layout, rng *rand.Rand) (keyboard.Layout, int) {
	decay := m.Decay
	if decay <= 0 || decay >= 1 {
		decay = DefaultSwapDecay
	}

	out := layout
	swaps := 0
	for p := 1.0; rng.Float64() < p; p *= decay {
		i := rng.Intn(keyboard.NumKeys)
		j := rng.Intn(keyboard.NumKeys - 1)
		if j >= i {
			j++
		}
		out.Swap(i, j)
		swaps++
	}
	return out, swaps
}
