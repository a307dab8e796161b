package scape

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"cppnevo/internal/genotype"
)

type funcAgent struct {
	id string
	fn func([]float64) []float64
}

func (a funcAgent) ID() string { return a.id }

func (a funcAgent) RunStep(_ context.Context, in []float64) ([]float64, error) {
	return a.fn(in), nil
}

func exactXOR(in []float64) []float64 {
	if (in[0] > 0.5) != (in[1] > 0.5) {
		return []float64{1}
	}
	return []float64{0}
}

func TestXORScapePerfectAgentScoresSixteen(t *testing.T) {
	fitness, trace, err := XORScape{}.Evaluate(context.Background(), funcAgent{id: "exact", fn: exactXOR})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 16 {
		t.Fatalf("unexpected fitness got=%v want=16", fitness)
	}
	if sse, _ := trace["sse"].(float64); sse != 0 {
		t.Fatalf("unexpected sse got=%v want=0", sse)
	}
	if cases, _ := trace["cases"].(int); cases != 4 {
		t.Fatalf("unexpected case count got=%v want=4", trace["cases"])
	}
}

func TestXORScapeConstantHalfOutput(t *testing.T) {
	half := funcAgent{id: "half", fn: func([]float64) []float64 { return []float64{0.5} }}
	fitness, _, err := XORScape{}.Evaluate(context.Background(), half)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// four cases at 0.75 each
	if math.Abs(float64(fitness)-9) > 1e-12 {
		t.Fatalf("unexpected fitness got=%v want=9", fitness)
	}
}

func TestXORScapeModes(t *testing.T) {
	cases := []struct {
		mode  string
		cases int
		err   bool
	}{
		{mode: "", cases: 4},
		{mode: "gt", cases: 4},
		{mode: "Validation", cases: 4},
		{mode: "test", cases: 4},
		{mode: "bogus", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			fitness, trace, err := XORScape{}.EvaluateMode(context.Background(), funcAgent{id: "exact", fn: exactXOR}, tc.mode)
			if tc.err {
				if err == nil {
					t.Fatal("expected unsupported mode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got, _ := trace["cases"].(int); got != tc.cases {
				t.Fatalf("unexpected case count got=%d want=%d", got, tc.cases)
			}
			if fitness != 16 {
				t.Fatalf("unexpected fitness got=%v want=16", fitness)
			}
		})
	}
}

func TestXORScapeRejectsWideOutput(t *testing.T) {
	wide := funcAgent{id: "wide", fn: func([]float64) []float64 { return []float64{0, 1} }}
	if _, _, err := (XORScape{}).Evaluate(context.Background(), wide); err == nil {
		t.Fatal("expected error for two outputs")
	}
}

func TestXORScapeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := (XORScape{}).Evaluate(ctx, funcAgent{id: "exact", fn: exactXOR}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFitnessFuncScoresGenome(t *testing.T) {
	g, err := genotype.New(2, 1, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	fitness, err := FitnessFunc(XORScape{})(context.Background(), g)
	if err != nil {
		t.Fatalf("fitness: %v", err)
	}
	if fitness < 0 || fitness > 16 {
		t.Fatalf("sigmoid output fitness out of range got=%v", fitness)
	}
}

func TestFitnessFuncReportsShapeMismatch(t *testing.T) {
	g, err := genotype.New(3, 1, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	_, err = FitnessFunc(XORScape{})(context.Background(), g)
	if !errors.Is(err, genotype.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		s, err := Lookup(name, 1)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("unexpected scape name got=%s want=%s", s.Name(), name)
		}
	}
	if _, err := Lookup("cart-pole", 1); !errors.Is(err, ErrUnknownScape) {
		t.Fatalf("expected ErrUnknownScape, got %v", err)
	}
}
