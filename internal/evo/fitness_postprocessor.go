package evo

import (
	"math"

	"cppnevo/internal/genotype"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts raw fitness after evaluation and before any
// selection the caller performs. It returns adjusted values in population
// order and leaves the genomes untouched.
type FitnessPostprocessor interface {
	Name() string
	Process(pop []*genotype.Genome) ([]float64, error)
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(pop []*genotype.Genome) ([]float64, error) {
	return rawFitness(pop), nil
}

// NicheSharingPostprocessor divides fitness by niche count.
type NicheSharingPostprocessor struct {
	Threshold    float64
	Alpha        float64
	Coefficients Coefficients
	Workers      int
}

func (NicheSharingPostprocessor) Name() string {
	return "niche_sharing"
}

func (p NicheSharingPostprocessor) Process(pop []*genotype.Genome) ([]float64, error) {
	matrix, err := SharingMatrix(pop, p.Threshold, p.Alpha, p.Coefficients, p.Workers)
	if err != nil {
		return nil, err
	}
	return ShareFitness(pop, NicheCounts(matrix))
}

// SizeProportionalPostprocessor penalizes larger genomes by complexity.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Process(pop []*genotype.Genome) ([]float64, error) {
	out := rawFitness(pop)
	for i, g := range pop {
		complexity := float64(g.NodeCount() + g.ConnectionCount())
		if complexity < 1 {
			complexity = 1
		}
		out[i] = out[i] / math.Pow(complexity, sizeProportionalEfficiency)
	}
	return out, nil
}

func rawFitness(pop []*genotype.Genome) []float64 {
	out := make([]float64, len(pop))
	for i, g := range pop {
		out[i] = g.Fitness
	}
	return out
}
