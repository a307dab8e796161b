package genotype

import (
	"fmt"
	"sort"

	"cppnevo/internal/nn"
)

// Evaluate runs one forward pass. inputs must have InputWidth values; the
// bias node is driven with 1. Outputs are returned in output-node order.
func (g *Genome) Evaluate(inputs []float64) ([]float64, error) {
	return g.EvaluateWithNoise(inputs, nil)
}

// EvaluateWithNoise is Evaluate with an explicit source for Gaussian
// activations. A nil noise source uses the process-global one.
func (g *Genome) EvaluateWithNoise(inputs []float64, noise nn.NoiseSource) ([]float64, error) {
	if len(inputs) != g.InputWidth() {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrShapeMismatch, len(inputs), g.InputWidth())
	}
	out, err := nn.Forward(g.Network(), inputs, nil, noise)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return out, nil
}

// Network flattens the genome into evaluation order, sorting the connections
// by source layer when the connection set changed since the last call.
func (g *Genome) Network() nn.Network {
	g.ensureOrder()

	net := nn.Network{
		Activations: make([]nn.Activation, len(g.nodes)),
		Inputs:      make([]int, 0, g.numInputs-1),
		Bias:        g.BiasIndex(),
		Outputs:     make([]int, 0, g.numOutputs),
		Edges:       make([]nn.Edge, 0, len(g.connections)),
	}
	for i, n := range g.nodes {
		net.Activations[i] = n.Activation
		switch n.Role {
		case RoleInput:
			net.Inputs = append(net.Inputs, i)
		case RoleOutput:
			net.Outputs = append(net.Outputs, i)
		}
	}
	for _, idx := range g.order {
		c := g.connections[idx]
		if !c.Enabled {
			continue
		}
		net.Edges = append(net.Edges, nn.Edge{
			Source:         c.Source,
			Target:         c.Target,
			Weight:         c.Weight,
			ActivateSource: g.nodes[c.Source].Layer > 0,
		})
	}
	return net
}

func (g *Genome) ensureOrder() {
	if g.sorted && len(g.order) == len(g.connections) {
		return
	}
	g.order = g.order[:0]
	for i := range g.connections {
		g.order = append(g.order, i)
	}
	sort.SliceStable(g.order, func(i, j int) bool {
		return g.nodes[g.connections[g.order[i]].Source].Layer < g.nodes[g.connections[g.order[j]].Source].Layer
	})
	g.sorted = true
}

func (g *Genome) markDirty() {
	g.sorted = false
}
