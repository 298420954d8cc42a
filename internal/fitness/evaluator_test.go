package fitness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyevolve/internal/keyboard"
)

func alphabetical(t *testing.T) keyboard.Layout {
	t.Helper()
	layout, err := keyboard.ReferenceLayout("alphabetical")
	require.NoError(t, err)
	return layout
}

// sameFingerLayout puts a, b and c on positions 2, 3 and 11, all typed by
// the left index finger.
func sameFingerLayout(t *testing.T) keyboard.Layout {
	layout := alphabetical(t)
	layout.Swap(0, 2)
	layout.Swap(1, 3)
	layout.Swap(2, 11)
	require.NoError(t, layout.Validate())
	require.Equal(t, keyboard.Position(2), layout.PositionOf('a'))
	require.Equal(t, keyboard.Position(3), layout.PositionOf('b'))
	require.Equal(t, keyboard.Position(11), layout.PositionOf('c'))
	return layout
}

// spreadLayout puts a, b and c on the home keys of three different fingers.
func spreadLayout(t *testing.T) keyboard.Layout {
	layout := alphabetical(t)
	layout.Swap(0, 8)
	layout.Swap(1, 9)
	layout.Swap(2, 10)
	require.NoError(t, layout.Validate())
	return layout
}

func TestEvaluateSameFingerRepeats(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}

	same, err := eval.Evaluate(sameFingerLayout(t), "abcabc\n", &matrix)
	require.NoError(t, err)
	spread, err := eval.Evaluate(spreadLayout(t), "abcabc\n", &matrix)
	require.NoError(t, err)

	assert.Equal(t, 6, same.Keystrokes)
	assert.Equal(t, 5, same.FingerRepeats)
	assert.Equal(t, 0, spread.FingerRepeats)
	// every finger already rests on its key, so nothing moves
	assert.Equal(t, 0, spread.HandRepeats)
	assert.Greater(t, same.FingerRepeats, spread.FingerRepeats)
	assert.Less(t, same.Fitness, spread.Fitness)
	assert.Equal(t, uint64(0), spread.TotalDistance)
}

func TestEvaluateKnownScore(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}

	res, err := eval.Evaluate(alphabetical(t), "ab", &matrix)
	require.NoError(t, err)

	assert.Equal(t, uint64(2000), res.TotalDistance)
	assert.Equal(t, 0, res.FingerRepeats)
	assert.Equal(t, 1, res.HandRepeats)
	assert.InDelta(t, 50.0, res.Terms.Distance, 1e-9)
	assert.InDelta(t, 2.0, res.Terms.FingerRepeat, 1e-9)
	assert.InDelta(t, 2.0, res.Terms.HandRepeat, 1e-9)
	assert.InDelta(t, 4.35, res.Terms.Deviation, 1e-9)
	assert.InDelta(t, 58.35, res.Fitness, 1e-9)
}

func TestEvaluateNewlineReturnsFingersHome(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}
	layout := alphabetical(t)

	joined, err := eval.Evaluate(layout, "aa", &matrix)
	require.NoError(t, err)
	split, err := eval.Evaluate(layout, "a\na", &matrix)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), joined.TotalDistance)
	assert.Equal(t, uint64(2000), split.TotalDistance)
	assert.Equal(t, joined.Keystrokes, split.Keystrokes)
}

func TestEvaluateHeldKeyIsNotARepeat(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}
	layout := alphabetical(t)

	cases := []struct {
		corpus        string
		fingerRepeats int
		handRepeats   int
		distance      uint64
	}{
		{corpus: "aaaa", fingerRepeats: 0, handRepeats: 0, distance: 1000},
		// a and b are adjacent left-hand fingers; the final a finds its
		// finger still resting on the key.
		{corpus: "aba", fingerRepeats: 0, handRepeats: 1, distance: 2000},
		// j sends the finger that typed a back down to the home row.
		{corpus: "abj", fingerRepeats: 0, handRepeats: 2, distance: 3000},
		{corpus: "aj", fingerRepeats: 1, handRepeats: 1, distance: 2000},
	}
	for _, tc := range cases {
		t.Run(tc.corpus, func(t *testing.T) {
			res, err := eval.Evaluate(layout, tc.corpus, &matrix)
			require.NoError(t, err)
			assert.Equal(t, tc.fingerRepeats, res.FingerRepeats)
			assert.Equal(t, tc.handRepeats, res.HandRepeats)
			assert.Equal(t, tc.distance, res.TotalDistance)
		})
	}
}

func TestEvaluateDegenerateCorpus(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}

	for _, corpus := range []string{"", "\n", "\n\n\n"} {
		res, err := eval.Evaluate(alphabetical(t), corpus, &matrix)
		assert.ErrorIs(t, err, ErrDegenerate, "corpus %q", corpus)
		assert.False(t, math.IsNaN(res.Fitness))
	}
}

func TestEvaluateZeroRepeatsStaysFinite(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}

	res, err := eval.Evaluate(alphabetical(t), "i", &matrix)
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.Fitness, 0))
	assert.False(t, math.IsNaN(res.Fitness))
	assert.InDelta(t, 50.0, res.Terms.Distance, 1e-9)
}

func TestEvaluateRejectsInvalidCharacter(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	eval := Evaluator{Weights: DefaultWeights()}

	for _, corpus := range []string{"abC", "a b", "ab\r\n", "é"} {
		_, err := eval.Evaluate(alphabetical(t), corpus, &matrix)
		assert.ErrorIs(t, err, ErrInvalidCharacter, "corpus %q", corpus)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	matrix := keyboard.BuildDistanceMatrix()
	colemak, err := keyboard.ReferenceLayout("colemak")
	require.NoError(t, err)
	corpus := "the quick brown fox jumps over the lazy dog\nand keeps on running\n"
	corpus = stripSpaces(corpus)

	first, err := Evaluator{Weights: DefaultWeights()}.Evaluate(colemak, corpus, &matrix)
	require.NoError(t, err)
	otherMatrix := keyboard.BuildDistanceMatrix()
	second, err := Evaluator{Weights: DefaultWeights()}.Evaluate(colemak, corpus, &otherMatrix)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(first.Fitness), math.Float64bits(second.Fitness))
	assert.Equal(t, first.TotalDistance, second.TotalDistance)
	assert.Equal(t, first, second)
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
	w.Distance = -1
	assert.Error(t, w.Validate())
	_, err := NewEvaluator(w)
	assert.Error(t, err)
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
