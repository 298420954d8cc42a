package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrSelectorExists   = errors.New("selector already registered")
	ErrSelectorNotFound = errors.New("selector not found")
)

// OperatorParams carries the tunables an operator factory may read.
type OperatorParams struct {
	SwapDecay float64
}

type OperatorFactory func(params OperatorParams) Operator

var registry = struct {
	mu        sync.RWMutex
	operators map[string]OperatorFactory
	selectors map[string]Selector
}{
	operators: make(map[string]OperatorFactory),
	selectors: make(map[string]Selector),
}

func init() {
	registerBuiltins()
}

func registerBuiltins() {
	_ = RegisterOperator("swap", func(p OperatorParams) Operator {
		return SwapMutation{Decay: p.SwapDecay}
	})
	_ = RegisterSelector(TruncationSelector{})
}

func RegisterOperator(name string, factory OperatorFactory) error {
	if name == "" {
		return errors.New("operator name is required")
	}
	if factory == nil {
		return errors.New("operator factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.operators[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	registry.operators[name] = factory
	return nil
}

func RegisterSelector(selector Selector) error {
	if selector == nil {
		return errors.New("selector is required")
	}
	name := selector.Name()
	if name == "" {
		return errors.New("selector name is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.selectors[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectorExists, name)
	}
	registry.selectors[name] = selector
	return nil
}

// ResolveOperator builds the named operator. An empty name resolves to swap.
func ResolveOperator(name string, params OperatorParams) (Operator, error) {
	if name == "" {
		name = "swap"
	}
	registry.mu.RLock()
	factory, ok := registry.operators[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", ErrOperatorNotFound, name, ListOperators())
	}
	return factory(params), nil
}

// ResolveSelector returns the named selector. An empty name resolves to
// truncation.
func ResolveSelector(name string) (Selector, error) {
	if name == "" {
		name = "truncation"
	}
	registry.mu.RLock()
	selector, ok := registry.selectors[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", ErrSelectorNotFound, name, ListSelectors())
	}
	return selector, nil
}

func ListOperators() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.operators))
	for name := range registry.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListSelectors() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.selectors))
	for name := range registry.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.mu.Lock()
	registry.operators = make(map[string]OperatorFactory)
	registry.selectors = make(map[string]Selector)
	registry.mu.Unlock()
	registerBuiltins()
}
