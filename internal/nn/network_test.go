package nn

import (
	"math"
	"testing"
)

func TestForwardSimpleFeedForward(t *testing.T) {
	// nodes: 0,1 inputs, 2 bias, 3 hidden (relu), 4 output (tanh)
	net := Network{
		Activations: []Activation{Step, Step, Step, ReLU, Tanh},
		Inputs:      []int{0, 1},
		Bias:        2,
		Outputs:     []int{4},
		Edges: []Edge{
			{Source: 0, Target: 3, Weight: 2},
			{Source: 1, Target: 3, Weight: -1},
			{Source: 2, Target: 4, Weight: 0.5},
			{Source: 3, Target: 4, Weight: 1, ActivateSource: true},
		},
	}

	out, err := Forward(net, []float64{1, 0.25}, nil, nil)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	want := math.Tanh(0.5 + 1.75)
	if len(out) != 1 || math.Abs(out[0]-want) > 1e-12 {
		t.Fatalf("unexpected output: got=%v want=%f", out, want)
	}
}

func TestForwardInputsPassThroughUnactivated(t *testing.T) {
	net := Network{
		Activations: []Activation{Square, Step, Abs},
		Inputs:      []int{0},
		Bias:        1,
		Outputs:     []int{2},
		Edges: []Edge{
			{Source: 0, Target: 2, Weight: 1},
		},
	}

	out, err := Forward(net, []float64{-3}, nil, nil)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if out[0] != 3 {
		t.Fatalf("expected abs(-3) with raw input, got=%f", out[0])
	}
}

func TestForwardResetsScratchValues(t *testing.T) {
	net := Network{
		Activations: []Activation{Step, Step, ReLU},
		Inputs:      []int{0},
		Bias:        1,
		Outputs:     []int{2},
		Edges:       []Edge{{Source: 0, Target: 2, Weight: 1}},
	}
	scratch := []float64{9, 9, 9}

	first, err := Forward(net, []float64{2}, scratch, nil)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	second, err := Forward(net, []float64{2}, scratch, nil)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if first[0] != 2 || second[0] != 2 {
		t.Fatalf("expected stable outputs with reused scratch, got=%f and %f", first[0], second[0])
	}
}

func TestForwardInputWidthMismatch(t *testing.T) {
	net := Network{
		Activations: []Activation{Step, Step, Step},
		Inputs:      []int{0},
		Bias:        1,
		Outputs:     []int{2},
	}
	if _, err := Forward(net, []float64{1, 2}, nil, nil); err == nil {
		t.Fatal("expected input width mismatch error")
	}
}
