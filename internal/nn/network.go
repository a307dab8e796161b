package nn

import "fmt"

// Edge is one enabled connection in evaluation order. Endpoints are node
// indexes. ActivateSource is false for input and bias sources, which pass
// their raw value through.
type Edge struct {
	Source         int
	Target         int
	Weight         float64
	ActivateSource bool
}

// Network is a flattened, evaluation-ready view of a genome.
//
// Edges must be ordered so that every edge into a node precedes every edge
// out of it; sorting by source layer over a layered DAG satisfies this.
type Network struct {
	Activations []Activation
	Inputs      []int
	Bias        int
	Outputs     []int
	Edges       []Edge
}

// Forward runs a single accumulate-then-activate pass. values is scratch
// space of len(Activations); it is reset here and may be nil.
func Forward(net Network, inputs []float64, values []float64, noise NoiseSource) ([]float64, error) {
	if len(inputs) != len(net.Inputs) {
		return nil, fmt.Errorf("input width mismatch: got=%d want=%d", len(inputs), len(net.Inputs))
	}
	if len(values) != len(net.Activations) {
		values = make([]float64, len(net.Activations))
	} else {
		for i := range values {
			values[i] = 0
		}
	}

	for i, nodeIdx := range net.Inputs {
		values[nodeIdx] = inputs[i]
	}
	values[net.Bias] = 1

	for _, edge := range net.Edges {
		source := values[edge.Source]
		if edge.ActivateSource {
			source = Apply(net.Activations[edge.Source], source, noise)
		}
		values[edge.Target] += source * edge.Weight
	}

	out := make([]float64, len(net.Outputs))
	for i, nodeIdx := range net.Outputs {
		out[i] = Apply(net.Activations[nodeIdx], values[nodeIdx], noise)
	}
	return out, nil
}
