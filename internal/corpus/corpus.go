// Package corpus loads the text that layouts are scored against and enforces
// the a-z plus newline alphabet the evaluator accepts.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInvalidCharacter = errors.New("character outside a-z and newline")
	ErrEmpty            = errors.New("corpus has no letters")
)

// Policy decides what happens to bytes outside the corpus alphabet.
type Policy string

const (
	// PolicyStrict rejects any byte outside a-z and newline.
	PolicyStrict Policy = "strict"
	// PolicyFilter lowercases ASCII letters and drops every other byte.
	PolicyFilter Policy = "filter"
)

func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyFilter:
		return PolicyFilter, nil
	default:
		return "", fmt.Errorf("unsupported corpus policy: %s", name)
	}
}

// InputError reports an unreadable or malformed corpus.
type InputError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *InputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corpus %s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("corpus %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

type Options struct {
	Policy Policy
	// Limit truncates the normalised corpus to this many bytes; 0 keeps it all.
	Limit int
}

// Load reads and normalises a corpus file.
func Load(path string, opts Options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &InputError{Path: path, Err: err}
	}
	text, err := Normalize(string(data), opts)
	if err != nil {
		var inErr *InputError
		if errors.As(err, &inErr) {
			inErr.Path = path
			return "", inErr
		}
		return "", &InputError{Path: path, Err: err}
	}
	return text, nil
}

// Normalize converts CRLF line endings, applies the policy and the limit,
// and checks that at least one letter remains.
func Normalize(text string, opts Options) (string, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyStrict
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(text))
	line, col := 1, 0
	letters := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		col++
		switch {
		case ch == '\n':
			b.WriteByte(ch)
			line++
			col = 0
		case ch >= 'a' && ch <= 'z':
			b.WriteByte(ch)
			letters++
		case policy == PolicyFilter && ch >= 'A' && ch <= 'Z':
			b.WriteByte(ch + ('a' - 'A'))
			letters++
		case policy == PolicyFilter:
			// dropped
		default:
			return "", &InputError{Line: line, Column: col, Err: fmt.Errorf("%w: %q", ErrInvalidCharacter, ch)}
		}
	}

	out := b.String()
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if letters == 0 || strings.Trim(out, "\n") == "" {
		return "", &InputError{Err: ErrEmpty}
	}
	return out, nil
}

// Stats summarises a normalised corpus.
type Stats struct {
	Bytes   int
	Letters int
	Lines   int
}

func Describe(text string) Stats {
	s := Stats{Bytes: len(text)}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			s.Lines++
		} else {
			s.Letters++
		}
	}
	if len(text) > 0 && text[len(text)-1] != '\n' {
		s.Lines++
	}
	return s
}
