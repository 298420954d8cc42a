// Package fitness scores keyboard layouts by simulating a typing pass over a
// corpus.
package fitness

import (
	"errors"
	"fmt"
	"math"

	"keyevolve/internal/keyboard"
)

var (
	// ErrDegenerate is returned when the corpus has no countable keystrokes.
	ErrDegenerate = errors.New("degenerate evaluation: corpus has no keystrokes")
	// ErrInvalidCharacter is returned for bytes outside a-z and newline.
	ErrInvalidCharacter = errors.New("invalid corpus character")
)

// TargetUsage is the preferred share of keystrokes per finger. It favours
// the middle fingers over the pinkies and sums to 1.
var TargetUsage = [keyboard.NumFingers]float64{0.09, 0.13, 0.14, 0.14, 0.14, 0.14, 0.13, 0.09}

type Weights struct {
	Distance     float64 `json:"distance"`
	FingerRepeat float64 `json:"finger_repeat"`
	HandRepeat   float64 `json:"hand_repeat"`
	Deviation    float64 `json:"deviation"`
	MaxDeviation float64 `json:"max_deviation"`
}

func DefaultWeights() Weights {
	return Weights{
		Distance:     50,
		FingerRepeat: 1,
		HandRepeat:   1,
		Deviation:    15,
		MaxDeviation: 1.75,
	}
}

func (w Weights) Validate() error {
	if w.Distance < 0 || w.FingerRepeat < 0 || w.HandRepeat < 0 || w.Deviation < 0 {
		return fmt.Errorf("fitness weights must be >= 0: %+v", w)
	}
	if w.MaxDeviation < 0 {
		return fmt.Errorf("max deviation must be >= 0: %f", w.MaxDeviation)
	}
	return nil
}

type Result struct {
	Fitness       float64                  `json:"fitness"`
	TotalDistance uint64                   `json:"total_distance"`
	Keystrokes    int                      `json:"keystrokes"`
	FingerRepeats int                      `json:"finger_repeats"`
	HandRepeats   int                      `json:"hand_repeats"`
	Usage         [keyboard.NumFingers]int `json:"usage"`
	Terms         Terms                    `json:"terms"`
}

type Terms struct {
	Distance     float64 `json:"distance"`
	FingerRepeat float64 `json:"finger_repeat"`
	HandRepeat   float64 `json:"hand_repeat"`
	Deviation    float64 `json:"deviation"`
}

// UsageShare returns the fraction of keystrokes typed by each finger.
func (r Result) UsageShare() [keyboard.NumFingers]float64 {
	var share [keyboard.NumFingers]float64
	if r.Keystrokes == 0 {
		return share
	}
	for f, n := range r.Usage {
		share[f] = float64(n) / float64(r.Keystrokes)
	}
	return share
}

// Evaluator is stateless apart from its weights and safe for concurrent use.
type Evaluator struct {
	Weights Weights
}

func NewEvaluator(w Weights) (Evaluator, error) {
	if err := w.Validate(); err != nil {
		return Evaluator{}, err
	}
	return Evaluator{Weights: w}, nil
}

// typingState is the transient per-call finger state.
type typingState struct {
	fingers    [keyboard.NumFingers]keyboard.Position
	prevFinger keyboard.Finger
	prevSeen   bool
}

func (s *typingState) reset() {
	s.fingers = keyboard.HomePositions
	s.prevSeen = false
}

// Evaluate types corpus on layout and scores it. A newline returns every
// finger to its home position. Higher fitness is better.
//
// Zero distance or zero repeats are counted as one unit so the matching
// term stays finite; a corpus without keystrokes yields ErrDegenerate.
func (e Evaluator) Evaluate(layout keyboard.Layout, corpus string, matrix *keyboard.DistanceMatrix) (Result, error) {
	var (
		res   Result
		state typingState
	)
	state.reset()

	for i := 0; i < len(corpus); i++ {
		ch := corpus[i]
		if ch == '\n' {
			state.reset()
			continue
		}
		if ch < 'a' || ch > 'z' {
			return Result{}, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, ch, i)
		}

		target := layout.PositionOf(ch)
		finger := keyboard.FingerOf[target]
		source := state.fingers[finger]
		cost, ok := matrix.Cost(source, target)
		if !ok {
			return Result{}, fmt.Errorf("no path from position %d to %d for finger %d", source, target, finger)
		}
		res.TotalDistance += uint64(cost)
		state.fingers[finger] = target
		res.Usage[finger]++
		res.Keystrokes++

		// A finger already resting on its key does not move, so it never
		// counts as a repeat.
		if state.prevSeen && source != target {
			if state.prevFinger == finger {
				res.FingerRepeats++
			}
			if state.prevFinger.Hand() == finger.Hand() {
				res.HandRepeats++
			}
		}
		state.prevFinger = finger
		state.prevSeen = true
	}

	if res.Keystrokes == 0 {
		return Result{}, ErrDegenerate
	}

	keys := float64(res.Keystrokes)
	distanceUnits := float64(res.TotalDistance) / keyboard.UnitCost
	if res.TotalDistance == 0 {
		distanceUnits = 1
	}
	res.Terms.Distance = keys / distanceUnits * e.Weights.Distance
	res.Terms.FingerRepeat = keys / float64(max(res.FingerRepeats, 1)) * e.Weights.FingerRepeat
	res.Terms.HandRepeat = keys / float64(max(res.HandRepeats, 1)) * e.Weights.HandRepeat

	deviation := 0.0
	for f, share := range res.UsageShare() {
		deviation += math.Abs(TargetUsage[f] - share)
	}
	res.Terms.Deviation = (e.Weights.MaxDeviation - deviation) * e.Weights.Deviation

	res.Fitness = res.Terms.Distance + res.Terms.FingerRepeat + res.Terms.HandRepeat + res.Terms.Deviation
	return res, nil
}
