package keyboard

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode"
)

var ErrNotBijection = errors.New("layout is not a bijection over a-z")

// ConfigurationError reports a malformed fixed layout.
type ConfigurationError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid layout %q: %s: %v", e.Input, e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Layout maps every letter ('a' = 0) to the position it is typed on.
type Layout [NumKeys]Position

// RandomLayout returns a uniformly shuffled layout.
func RandomLayout(rng *rand.Rand) Layout {
	var l Layout
	for i := range l {
		l[i] = Position(i)
	}
	rng.Shuffle(len(l), func(i, j int) {
		l[i], l[j] = l[j], l[i]
	})
	return l
}

// FromFixedMapping builds a layout from the letters listed in position
// order, top row first. Whitespace is ignored and letters are case
// insensitive.
func FromFixedMapping(keys string) (Layout, error) {
	letters := make([]byte, 0, NumKeys)
	for _, r := range keys {
		if unicode.IsSpace(r) {
			continue
		}
		r = unicode.ToLower(r)
		if r < 'a' || r > 'z' {
			return Layout{}, &ConfigurationError{Input: keys, Reason: fmt.Sprintf("unexpected character %q", r), Err: ErrNotBijection}
		}
		letters = append(letters, byte(r))
	}
	if len(letters) != NumKeys {
		return Layout{}, &ConfigurationError{Input: keys, Reason: fmt.Sprintf("got %d letters, want %d", len(letters), NumKeys), Err: ErrNotBijection}
	}

	var seen [NumKeys]bool
	var l Layout
	for pos, ch := range letters {
		idx := ch - 'a'
		if seen[idx] {
			return Layout{}, &ConfigurationError{Input: keys, Reason: fmt.Sprintf("letter %q repeated", ch), Err: ErrNotBijection}
		}
		seen[idx] = true
		l[idx] = Position(pos)
	}
	return l, nil
}

// Validate checks that the layout is a permutation of all positions.
func (l Layout) Validate() error {
	var seen [NumKeys]bool
	for letter, pos := range l {
		if int(pos) >= NumKeys {
			return fmt.Errorf("letter %c mapped to position %d: %w", 'a'+letter, pos, ErrNotBijection)
		}
		if seen[pos] {
			return fmt.Errorf("position %d assigned twice: %w", pos, ErrNotBijection)
		}
		seen[pos] = true
	}
	return nil
}

// Swap exchanges the positions of two letters.
func (l *Layout) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
}

// PositionOf returns the position a lowercase letter is typed on.
func (l *Layout) PositionOf(letter byte) Position {
	return l[letter-'a']
}

// Keys lists the letters in position order. FromFixedMapping(l.Keys())
// reproduces l.
func (l Layout) Keys() string {
	var out [NumKeys]byte
	for letter, pos := range l {
		out[pos] = byte('a' + letter)
	}
	return string(out[:])
}

// Rows returns the three physical rows as uppercase strings, indented so
// the columns line up.
func (l Layout) Rows() [3]string {
	keys := strings.ToUpper(l.Keys())
	top := keys[0:8]
	home := keys[8:18]
	bottom := keys[18:26]
	return [3]string{
		" " + top[:4] + "  " + top[4:],
		home[:5] + "  " + home[5:],
		bottom[:4] + "    " + bottom[4:],
	}
}

func (l Layout) String() string {
	rows := l.Rows()
	return strings.Join(rows[:], "\n")
}
