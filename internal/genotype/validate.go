package genotype

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Validate checks the structural invariants of g: node ids match arena
// indexes, input/bias/output nodes sit where New put them, every connection
// references existing nodes and runs forward in layer order, innovation
// numbers are unique, and the enabled graph is acyclic.
func (g *Genome) Validate() error {
	if g.numInputs < 1 || g.numOutputs < 1 {
		return fmt.Errorf("%w: inputs=%d outputs=%d", ErrInvalidGenome, g.numInputs, g.numOutputs)
	}
	if len(g.nodes) < g.numInputs+g.numOutputs {
		return fmt.Errorf("%w: %d nodes for %d inputs and %d outputs", ErrInvalidGenome, len(g.nodes), g.numInputs, g.numOutputs)
	}
	for i, n := range g.nodes {
		if n.ID != i {
			return fmt.Errorf("%w: node at index %d has id %d", ErrInvalidGenome, i, n.ID)
		}
		if !n.Activation.Valid() {
			return fmt.Errorf("%w: node %d has activation %d", ErrInvalidGenome, i, n.Activation)
		}
		if want := g.roleAt(i); n.Role != want {
			return fmt.Errorf("%w: node %d role got=%s want=%s", ErrInvalidGenome, i, n.Role, want)
		}
		switch n.Role {
		case RoleInput, RoleBias:
			if n.Layer != 0 {
				return fmt.Errorf("%w: input node %d on layer %v", ErrInvalidGenome, i, n.Layer)
			}
		case RoleOutput:
			if !math.IsInf(n.Layer, 1) {
				return fmt.Errorf("%w: output node %d on layer %v", ErrInvalidGenome, i, n.Layer)
			}
		case RoleHidden:
			if !(n.Layer > 0) || n.Layer >= LayerCeiling {
				return fmt.Errorf("%w: hidden node %d on layer %v", ErrInvalidGenome, i, n.Layer)
			}
		}
	}

	graph := simple.NewDirectedGraph()
	for i := range g.nodes {
		graph.AddNode(simple.Node(i))
	}
	seen := make(map[uint64]int, len(g.connections))
	for i, c := range g.connections {
		if c.Source < 0 || c.Source >= len(g.nodes) || c.Target < 0 || c.Target >= len(g.nodes) {
			return fmt.Errorf("%w: connection %d references %d->%d", ErrInvalidGenome, i, c.Source, c.Target)
		}
		if prev, dup := seen[c.Innovation]; dup {
			return fmt.Errorf("%w: innovation %d used by connections %d and %d", ErrInvalidGenome, c.Innovation, prev, i)
		}
		seen[c.Innovation] = i
		if c.Source == c.Target {
			return fmt.Errorf("%w: self loop on node %d", ErrCycle, c.Source)
		}
		if !(g.nodes[c.Source].Layer < g.nodes[c.Target].Layer) {
			return fmt.Errorf("%w: connection %d runs %v->%v", ErrInvalidGenome, i, g.nodes[c.Source].Layer, g.nodes[c.Target].Layer)
		}
		if c.Enabled {
			graph.SetEdge(simple.Edge{F: simple.Node(c.Source), T: simple.Node(c.Target)})
		}
	}
	if _, err := topo.Sort(graph); err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	return nil
}

func (g *Genome) roleAt(i int) Role {
	switch {
	case i < g.numInputs-1:
		return RoleInput
	case i == g.numInputs-1:
		return RoleBias
	case i < g.numInputs+g.numOutputs:
		return RoleOutput
	default:
		return RoleHidden
	}
}
