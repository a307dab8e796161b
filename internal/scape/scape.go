package scape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cppnevo/internal/genotype"
	"cppnevo/internal/nn"
)

var ErrUnknownScape = errors.New("unknown scape")

type Fitness float64

type Trace map[string]any

// Agent maps one input vector to the network's outputs.
type Agent interface {
	ID() string
	RunStep(ctx context.Context, input []float64) ([]float64, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error)
}

// GenomeAgent runs a genome as an Agent. Noise feeds gaussian activations;
// nil uses the process-global source.
type GenomeAgent struct {
	Genome *genotype.Genome
	Noise  nn.NoiseSource
}

func (a GenomeAgent) ID() string {
	return a.Genome.ID
}

func (a GenomeAgent) RunStep(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.Genome.EvaluateWithNoise(input, a.Noise)
}

// FitnessFunc adapts s to the population evaluator's signature.
func FitnessFunc(s Scape) func(context.Context, *genotype.Genome) (float64, error) {
	return func(ctx context.Context, g *genotype.Genome) (float64, error) {
		fitness, _, err := s.Evaluate(ctx, GenomeAgent{Genome: g})
		if err != nil {
			return 0, err
		}
		return float64(fitness), nil
	}
}

// Lookup resolves a scape by name. Classification scapes draw their points
// from seed so repeated lookups score genomes on the same data.
func Lookup(name string, seed int64) (Scape, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "xor":
		return XORScape{}, nil
	}
	if shape, ok := parseShape(key); ok {
		return NewClassificationScape(shape, DefaultPointCount, seed), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScape, name)
}

// Names lists every name Lookup accepts.
func Names() []string {
	names := []string{"xor"}
	for _, shape := range []Shape{Gaussian, Circular, XORQuadrants} {
		names = append(names, shape.String())
	}
	sort.Strings(names)
	return names
}
