package evo

import (
	"math/rand"

	"cppnevo/internal/genotype"
)

// Operator mutates one genome in place and reports whether it changed.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, genome *genotype.Genome, tracker *genotype.InnovationTracker) bool
}

type WeightMutation struct{}

func (WeightMutation) Name() string { return "weights" }

func (WeightMutation) Apply(rng *rand.Rand, genome *genotype.Genome, _ *genotype.InnovationTracker) bool {
	genome.MutateWeights(rng)
	return true
}

type ActivationMutation struct{}

func (ActivationMutation) Name() string { return "activation" }

func (ActivationMutation) Apply(rng *rand.Rand, genome *genotype.Genome, _ *genotype.InnovationTracker) bool {
	return genome.MutateActivation(rng) >= 0
}

type AddConnectionMutation struct{}

func (AddConnectionMutation) Name() string { return "add_connection" }

func (AddConnectionMutation) Apply(rng *rand.Rand, genome *genotype.Genome, tracker *genotype.InnovationTracker) bool {
	return genome.AddConnection(rng, tracker)
}

type AddNodeMutation struct{}

func (AddNodeMutation) Name() string { return "add_node" }

func (AddNodeMutation) Apply(rng *rand.Rand, genome *genotype.Genome, tracker *genotype.InnovationTracker) bool {
	return genome.AddNode(rng, tracker)
}

type ToggleConnectionMutation struct{}

func (ToggleConnectionMutation) Name() string { return "toggle_connection" }

func (ToggleConnectionMutation) Apply(rng *rand.Rand, genome *genotype.Genome, _ *genotype.InnovationTracker) bool {
	return genome.ToggleConnection(rng)
}

// MutationStats counts how often an operator was tried and how often it
// changed a genome.
type MutationStats struct {
	Operator string
	Tried    int
	Applied  int
}

// MutatePopulation applies op to each genome with the given probability.
// Only genomes for which keep returns true are considered; a nil keep
// considers every genome. A genome the operator changes loses its species
// assignment so that continuing speciation measures it again. The tracker is
// not cleared here.
func MutatePopulation(rng *rand.Rand, pop []*genotype.Genome, tracker *genotype.InnovationTracker, op Operator, probability float64, keep func(*genotype.Genome) bool) MutationStats {
	stats := MutationStats{Operator: op.Name()}
	for _, g := range pop {
		if keep != nil && !keep(g) {
			continue
		}
		if rng.Float64() >= probability {
			continue
		}
		stats.Tried++
		if op.Apply(rng, g, tracker) {
			stats.Applied++
			g.SpeciesID = genotype.Unassigned
		}
	}
	return stats
}
