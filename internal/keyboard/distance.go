package keyboard

import "math"

// Cost is a travel cost in thousandths of a key pitch.
type Cost int32

// NoPath marks position pairs that no single finger travels between.
const NoPath Cost = -1

// UnitCost is the cost of one straight step between adjacent keys.
const UnitCost = 1000

// DistanceMatrix holds the symmetric travel cost between every pair of
// positions. It is built once and only read afterwards.
type DistanceMatrix [NumKeys][NumKeys]Cost

// BuildDistanceMatrix derives travel costs from the key grid. Only pairs
// typed by the same finger get a cost; straight steps cost 1000, diagonals
// 1414, two-row reaches 2000 and knight-step reaches 2236.
func BuildDistanceMatrix() DistanceMatrix {
	var m DistanceMatrix
	for i := 0; i < NumKeys; i++ {
		for j := 0; j < NumKeys; j++ {
			m[i][j] = NoPath
		}
	}

	for i := 0; i < NumKeys; i++ {
		m[i][i] = 0
		for j := i + 1; j < NumKeys; j++ {
			if FingerOf[i] != FingerOf[j] {
				continue
			}
			c := euclidCost(Position(i), Position(j))
			m[i][j] = c
			m[j][i] = c
		}
	}
	return m
}

// Cost returns the travel cost from one position to another and whether a
// path is modelled between them.
func (m *DistanceMatrix) Cost(from, to Position) (Cost, bool) {
	c := m[from][to]
	if c == NoPath {
		return 0, false
	}
	return c, true
}

func euclidCost(a, b Position) Cost {
	ac, ar := a.Coord()
	bc, br := b.Coord()
	dx := float64(ac - bc)
	dy := float64(ar - br)
	return Cost(math.Round(math.Hypot(dx, dy) * UnitCost))
}
