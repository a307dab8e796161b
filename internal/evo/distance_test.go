package evo

import (
	"math"
	"math/rand"
	"testing"

	"cppnevo/internal/genotype"
	"cppnevo/internal/model"
)

func newGenome(t *testing.T, inputs, outputs int, seed int64) *genotype.Genome {
	t.Helper()

	g, err := genotype.New(inputs, outputs, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	return g
}

func TestDistanceIdenticalGenomesIsZero(t *testing.T) {
	a := newGenome(t, 2, 1, 1)
	b := a.Clone()
	if d := Distance(a, b, DefaultCoefficients()); d != 0 {
		t.Fatalf("distance got=%f want=0", d)
	}
}

func TestDistanceIsAsymmetricForExcessGenes(t *testing.T) {
	a := newGenome(t, 2, 1, 1)
	b := a.Clone()
	tracker := genotype.NewInnovationTracker(2, 1)
	if !b.AddNode(rand.New(rand.NewSource(2)), tracker) {
		t.Fatal("expected split")
	}
	c := Coefficients{Excess: 1, Disjoint: 1, Weight: 0.4}

	if d := Distance(a, b, c); d != 0 {
		t.Fatalf("a inside b's range should match fully, got=%f", d)
	}
	// b's two split legs lie beyond a's range: 2 excess over N=5
	if d := Distance(b, a, c); math.Abs(d-0.4) > 1e-12 {
		t.Fatalf("distance(b,a) got=%f want=0.4", d)
	}
}

func TestDistanceTerms(t *testing.T) {
	a := newGenome(t, 2, 1, 1)
	b := a.Clone()
	tracker := genotype.NewInnovationTracker(2, 1)
	rng := rand.New(rand.NewSource(3))
	// give a genes inside b's later range that b lacks
	if !a.AddNode(rng, tracker) {
		t.Fatal("split a")
	}
	tracker.Clear()
	if !b.AddNode(rng, tracker) || !b.AddNode(rng, tracker) {
		t.Fatal("split b")
	}
	if err := b.SetWeight(0, b.Connections()[0].Weight+1); err != nil {
		t.Fatal(err)
	}

	// a: 0,1,2 + legs 3,4. b: 0,1,2 + legs 5,6 + 7,8. a's 3,4 are inside
	// b's range [0,8] and unmatched, so disjoint.
	c := Coefficients{Excess: 10, Disjoint: 1, Weight: 3}
	n := float64(b.ConnectionCount())
	want := 1*2/n + 3*(1.0/3.0)
	if d := Distance(a, b, c); math.Abs(d-want) > 1e-12 {
		t.Fatalf("distance got=%f want=%f", d, want)
	}
}

func TestDistanceWithoutMatchesHasNoWeightTerm(t *testing.T) {
	a := newGenome(t, 0, 1, 1)
	b, err := genotype.FromRecord(model.GenomeRecord{
		ID:      "b",
		Inputs:  0,
		Outputs: 1,
		Nodes: []model.NodeRecord{
			{ID: 0, Role: model.RoleBias, Activation: "step"},
			{ID: 1, Role: model.RoleOutput, Activation: "sigmoid"},
		},
		Connections: []model.ConnectionRecord{
			{Source: 0, Target: 1, Weight: 50, Enabled: true, Innovation: 7},
		},
	})
	if err != nil {
		t.Fatalf("from record: %v", err)
	}

	c := Coefficients{Excess: 2, Disjoint: 0, Weight: 100}
	if d := Distance(a, b, c); d != 2 {
		t.Fatalf("distance got=%f want=2", d)
	}
}

func TestAverageDistance(t *testing.T) {
	a := newGenome(t, 2, 1, 1)
	if got := AverageDistance(a, nil, DefaultCoefficients()); got != 0 {
		t.Fatalf("empty average got=%f want=0", got)
	}
	b := a.Clone()
	_ = b.SetWeight(0, b.Connections()[0].Weight+3)
	c := Coefficients{Weight: 1}
	// distances 0 and 1 (3/3 matched genes)
	if got := AverageDistance(a, []*genotype.Genome{a.Clone(), b}, c); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("average got=%f want=0.5", got)
	}
}
