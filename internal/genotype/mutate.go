package genotype

import (
	"math"
	"math/rand"

	"cppnevo/internal/nn"
)

const (
	// MaxConnectionAttempts bounds the random endpoint draws of AddConnection.
	MaxConnectionAttempts = 20
	// PerturbProbability is the chance a weight is nudged rather than replaced.
	PerturbProbability = 0.9
	// SplitInWeight is the weight of the leg entering a freshly split node.
	SplitInWeight = 1.0
)

// MutateWeights perturbs every enabled connection weight by N(0,1) or, with
// probability 1-PerturbProbability, replaces it with U(-1,1).
func (g *Genome) MutateWeights(rng *rand.Rand) {
	rng = ensureRNG(rng)
	for i := range g.connections {
		c := &g.connections[i]
		if !c.Enabled {
			continue
		}
		if rng.Float64() < PerturbProbability {
			c.Weight += rng.NormFloat64()
		} else {
			c.Weight = rng.Float64()*2 - 1
		}
	}
}

// MutateActivation assigns a random activation to one random non-output
// node. It returns the index of the node that changed.
func (g *Genome) MutateActivation(rng *rand.Rand) int {
	rng = ensureRNG(rng)
	candidates := make([]int, 0, len(g.nodes))
	for i, n := range g.nodes {
		if n.Role != RoleOutput {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	idx := candidates[rng.Intn(len(candidates))]
	g.nodes[idx].Activation = nn.RandomActivation(rng)
	return idx
}

// AddConnection tries up to MaxConnectionAttempts random node pairs and adds
// the first that runs forward in layer order and is not already an enabled
// gene. It reports whether a connection was added.
func (g *Genome) AddConnection(rng *rand.Rand, tracker *InnovationTracker) bool {
	rng = ensureRNG(rng)
	for attempt := 0; attempt < MaxConnectionAttempts; attempt++ {
		source := rng.Intn(len(g.nodes))
		target := rng.Intn(len(g.nodes))
		if !(g.nodes[source].Layer < g.nodes[target].Layer) {
			continue
		}
		if g.hasEnabledGene(source, target) {
			continue
		}
		g.connections = append(g.connections, Connection{
			Source:     source,
			Target:     target,
			Weight:     rng.Float64() - 0.5,
			Enabled:    true,
			Innovation: tracker.NextID(),
		})
		g.markDirty()
		return true
	}
	return false
}

// AddNode splits a random enabled connection with a new hidden node. The
// split connection is disabled; source->new carries SplitInWeight and
// new->target keeps the original weight. Leg innovations come from the
// tracker so that the same split made elsewhere this generation yields the
// same genes. It reports whether a node was added.
func (g *Genome) AddNode(rng *rand.Rand, tracker *InnovationTracker) bool {
	rng = ensureRNG(rng)
	n := len(g.connections)
	if n == 0 {
		return false
	}
	start := rng.Intn(n)
	idx := -1
	for k := 0; k < n; k++ {
		if i := (start + k) % n; g.connections[i].Enabled {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	split := g.connections[idx]
	layer, ok := midpointLayer(g.nodes[split.Source].Layer, g.nodes[split.Target].Layer)
	if !ok {
		return false
	}

	ids := tracker.SplitIDs(split.Innovation)
	if g.hasInnovation(ids.In) || g.hasInnovation(ids.Out) {
		// this genome already holds the shared split, keep its own copy distinct
		ids = SplitPair{In: tracker.NextID(), Out: tracker.NextID()}
	}

	newIdx := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		ID:         newIdx,
		Role:       RoleHidden,
		Activation: nn.RandomActivation(rng),
		Layer:      layer,
	})
	g.connections[idx].Enabled = false
	g.connections = append(g.connections,
		Connection{Source: split.Source, Target: newIdx, Weight: SplitInWeight, Enabled: true, Innovation: ids.In},
		Connection{Source: newIdx, Target: split.Target, Weight: split.Weight, Enabled: true, Innovation: ids.Out},
	)
	g.markDirty()
	return true
}

// ToggleConnection flips the enabled flag of one random connection. Enabling
// is refused when an enabled gene with the same endpoints already exists.
func (g *Genome) ToggleConnection(rng *rand.Rand) bool {
	rng = ensureRNG(rng)
	if len(g.connections) == 0 {
		return false
	}
	idx := rng.Intn(len(g.connections))
	return g.SetEnabled(idx, !g.connections[idx].Enabled) == nil
}

func midpointLayer(lo, hi float64) (float64, bool) {
	if math.IsInf(hi, 1) {
		hi = LayerCeiling
	}
	mid := lo + (hi-lo)/2
	if !(mid > lo && mid < hi) {
		return 0, false
	}
	return mid, true
}
