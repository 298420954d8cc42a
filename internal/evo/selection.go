package evo

import (
	"fmt"
)

// Selector chooses the ranked members that survive into the breeding pool.
type Selector interface {
	Name() string
	Select(ranked Population, eliteCount int) (Population, error)
}

// TruncationSelector keeps the top eliteCount members of a ranked population.
type TruncationSelector struct{}

func (TruncationSelector) Name() string {
	return "truncation"
}

func (TruncationSelector) Select(ranked Population, eliteCount int) (Population, error) {
	if eliteCount <= 0 {
		return nil, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("cannot select from an empty population")
	}
	elites := make(Population, len(ranked.Truncate(eliteCount)))
	copy(elites, ranked)
	return elites, nil
}
