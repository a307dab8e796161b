package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cppnevo/internal/genotype"
)

var (
	ErrOperatorExists       = errors.New("operator already registered")
	ErrOperatorNotFound     = errors.New("operator not found")
	ErrOperatorIncompatible = errors.New("operator incompatible with genome")
)

type CompatibilityFn func(genome *genotype.Genome) error

type OperatorSpec struct {
	Name       string
	Operator   Operator
	Compatible CompatibilityFn
}

type registeredOperator struct {
	operator   Operator
	compatible CompatibilityFn
}

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredOperator
}{
	m: builtinOperators(),
}

func builtinOperators() map[string]registeredOperator {
	m := make(map[string]registeredOperator)
	for _, op := range []Operator{
		WeightMutation{},
		ActivationMutation{},
		AddConnectionMutation{},
		AddNodeMutation{},
		ToggleConnectionMutation{},
	} {
		m[op.Name()] = registeredOperator{operator: op}
	}
	return m
}

func RegisterOperator(name string, op Operator) error {
	return RegisterOperatorWithSpec(OperatorSpec{Name: name, Operator: op})
}

// RegisterOperatorWithSpec registers an operator with an optional
// compatibility check run at resolve time.
func RegisterOperatorWithSpec(spec OperatorSpec) error {
	if spec.Name == "" {
		return errors.New("operator name is required")
	}
	if spec.Operator == nil {
		return errors.New("operator is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}
	operatorRegistry.m[spec.Name] = registeredOperator{
		operator:   spec.Operator,
		compatible: spec.Compatible,
	}
	return nil
}

// ResolveOperator looks an operator up by name. When genome is non-nil the
// operator's compatibility check must accept it.
func ResolveOperator(name string, genome *genotype.Genome) (Operator, error) {
	operatorRegistry.mu.RLock()
	entry, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if genome != nil && entry.compatible != nil {
		if err := entry.compatible(genome); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperatorIncompatible, name, err)
		}
	}
	return entry.operator, nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = builtinOperators()
}
