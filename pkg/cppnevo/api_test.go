package cppnevo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cppnevo/internal/genotype"
	"cppnevo/internal/stats"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory", Workers: 2})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func seedPopulation(t *testing.T, client *Client, size int) PopulationSummary {
	t.Helper()
	summary, err := client.Seed(context.Background(), SeedRequest{PopulationID: "pop", Size: size, Inputs: 2, Outputs: 1, Seed: 7})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return summary
}

func TestClientSeedAndShow(t *testing.T) {
	client := newTestClient(t)
	seeded := seedPopulation(t, client, 6)
	if seeded.Genomes != 6 || seeded.Inputs != 2 || seeded.Outputs != 1 {
		t.Fatalf("unexpected seed summary: %+v", seeded)
	}
	if seeded.NextInnovation != 3 {
		t.Fatalf("unexpected next innovation got=%d want=3", seeded.NextInnovation)
	}

	shown, err := client.Show(context.Background(), "pop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.Genomes != 6 || shown.Generation != 0 {
		t.Fatalf("unexpected show summary: %+v", shown)
	}

	pops, err := client.Populations(context.Background())
	if err != nil {
		t.Fatalf("populations: %v", err)
	}
	if len(pops) != 1 || pops[0].ID != "pop" {
		t.Fatalf("unexpected populations: %+v", pops)
	}
}

func TestClientSeedRejectsUnknownActivation(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Seed(context.Background(), SeedRequest{Size: 2, OutputActivation: "softmax"}); err == nil {
		t.Fatal("expected unknown activation error")
	}
}

func TestClientEvaluateRecordsHistory(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 8)

	for i := 0; i < 2; i++ {
		summary, err := client.Evaluate(context.Background(), EvaluateRequest{PopulationID: "pop", Scape: "xor"})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if summary.Report.Evaluated != 8 || summary.BestGenomeID == "" {
			t.Fatalf("unexpected evaluate summary: %+v", summary)
		}
	}
	history, err := client.FitnessHistory(context.Background(), "pop")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("unexpected history length got=%d want=2", len(history))
	}

	shown, err := client.Show(context.Background(), "pop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.BestFitness <= 0 {
		t.Fatalf("expected stored fitness, got %+v", shown)
	}
}

func TestClientEvaluateWithNicheSharing(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 5)

	summary, err := client.Evaluate(context.Background(), EvaluateRequest{PopulationID: "pop", Scape: "gaussian", DataSeed: 3, Postprocessor: "niche_sharing"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if summary.Postprocessor != "niche_sharing" {
		t.Fatalf("unexpected postprocessor got=%s", summary.Postprocessor)
	}
	snap, err := client.Load(context.Background(), "pop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, g := range snap.Genomes {
		if g.Fitness > summary.Report.BestFitness {
			t.Fatalf("shared fitness %f exceeds raw best %f", g.Fitness, summary.Report.BestFitness)
		}
	}

	if _, err := client.Evaluate(context.Background(), EvaluateRequest{PopulationID: "pop", Postprocessor: "rank"}); err == nil {
		t.Fatal("expected unsupported postprocessor error")
	}
}

func TestClientSpeciateFirstThenContinue(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 10)
	if _, err := client.Evaluate(context.Background(), EvaluateRequest{PopulationID: "pop"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	first, err := client.Speciate(context.Background(), SpeciateRequest{PopulationID: "pop", Threshold: 100})
	if err != nil {
		t.Fatalf("speciate: %v", err)
	}
	if len(first.Snapshot.Species) != 1 || first.Snapshot.Species[0].Size != 10 {
		t.Fatalf("expected a single species of 10, got %+v", first.Snapshot.Species)
	}

	if _, err := client.Mutate(context.Background(), MutateRequest{PopulationID: "pop", Steps: []MutationStep{{Operator: "add_node", Probability: 1}}, Seed: 2}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	next, err := client.Speciate(context.Background(), SpeciateRequest{PopulationID: "pop", Threshold: 100, Continue: true})
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if next.Snapshot.Generation != 1 {
		t.Fatalf("unexpected generation got=%d want=1", next.Snapshot.Generation)
	}
	if len(next.Snapshot.Species) != 1 || next.Snapshot.Species[0].ID != first.Snapshot.Species[0].ID {
		t.Fatalf("expected species to carry over, got %+v", next.Snapshot.Species)
	}

	history, err := client.SpeciesHistory(context.Background(), "pop")
	if err != nil {
		t.Fatalf("species history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("unexpected snapshot count got=%d want=2", len(history))
	}
}

func TestClientMutateAdvancesInnovations(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 4)

	summary, err := client.Mutate(context.Background(), MutateRequest{PopulationID: "pop", Steps: []MutationStep{{Operator: "add_node", Probability: 1}}, Seed: 5})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(summary.Stats) != 1 || summary.Stats[0].Applied != 4 {
		t.Fatalf("unexpected stats: %+v", summary.Stats)
	}
	// three initial genes, each split allocates two ids at most once
	if summary.NextInnovation <= 3 || summary.NextInnovation > 9 {
		t.Fatalf("unexpected next innovation got=%d", summary.NextInnovation)
	}

	snap, err := client.Load(context.Background(), "pop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := snap.Tracker.Peek(); got != summary.NextInnovation {
		t.Fatalf("tracker not restored got=%d want=%d", got, summary.NextInnovation)
	}
	if snap.Tracker.PendingSplits() != 0 {
		t.Fatal("expected split table to be cleared")
	}
	for _, g := range snap.Genomes {
		if g.HiddenCount() != 1 {
			t.Fatalf("expected one hidden node in %s, got %d", g.ID, g.HiddenCount())
		}
	}

	if _, err := client.Mutate(context.Background(), MutateRequest{PopulationID: "pop", Steps: []MutationStep{{Operator: "remove_neuron", Probability: 1}}}); err == nil {
		t.Fatal("expected unknown operator error")
	}
	if _, err := client.Mutate(context.Background(), MutateRequest{PopulationID: "pop"}); err == nil {
		t.Fatal("expected missing steps error")
	}
}

func TestClientMutateRunsStepsAsOneGeneration(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 6)

	summary, err := client.Mutate(context.Background(), MutateRequest{
		PopulationID: "pop",
		Steps: []MutationStep{
			{Operator: "weights", Probability: 1},
			{Operator: "add_node", Probability: 1},
			{Operator: "add_connection", Probability: 0},
			{Operator: "activation", Probability: 1},
		},
		Seed: 3,
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if summary.Generation != 1 {
		t.Fatalf("generation got=%d want=1", summary.Generation)
	}
	wantOps := []string{"weights", "add_node", "add_connection", "activation"}
	if len(summary.Stats) != len(wantOps) {
		t.Fatalf("stats length got=%d want=%d", len(summary.Stats), len(wantOps))
	}
	for i, op := range wantOps {
		if summary.Stats[i].Operator != op {
			t.Fatalf("step %d operator got=%s want=%s", i, summary.Stats[i].Operator, op)
		}
	}
	if summary.Stats[2].Tried != 0 {
		t.Fatalf("zero-probability step tried=%d", summary.Stats[2].Tried)
	}

	show, err := client.Show(context.Background(), "pop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if show.Generation != 1 {
		t.Fatalf("stored generation got=%d want=1", show.Generation)
	}

	// repeated split steps still make one generation
	client = newTestClient(t)
	seedPopulation(t, client, 4)
	summary, err = client.Mutate(context.Background(), MutateRequest{
		PopulationID: "pop",
		Steps:        []MutationStep{{Operator: "add_node", Probability: 1}, {Operator: "add_node", Probability: 1}},
		Seed:         9,
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if summary.Generation != 1 {
		t.Fatalf("generation got=%d want=1", summary.Generation)
	}
	if summary.Stats[1].Applied == 0 {
		t.Fatalf("second split step applied nothing: %+v", summary.Stats)
	}
}

func TestClientMutateUnassignsChangedGenomes(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 4)
	if _, err := client.Speciate(context.Background(), SpeciateRequest{PopulationID: "pop", Threshold: 3}); err != nil {
		t.Fatalf("speciate: %v", err)
	}
	summary, err := client.Mutate(context.Background(), MutateRequest{
		PopulationID: "pop",
		Steps:        []MutationStep{{Operator: "weights", Probability: 1}},
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	snap, err := client.Load(context.Background(), "pop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	unassigned := 0
	for _, g := range snap.Genomes {
		if g.SpeciesID == Unassigned {
			unassigned++
		}
	}
	if unassigned != summary.Stats[0].Applied {
		t.Fatalf("unassigned genomes got=%d want=%d", unassigned, summary.Stats[0].Applied)
	}
}

func TestClientCrossoverAppendsOffspring(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 2)
	snap, err := client.Load(context.Background(), "pop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, b := snap.Genomes[0].ID, snap.Genomes[1].ID

	out, err := client.Crossover(context.Background(), CrossoverRequest{PopulationID: "pop", ParentA: a, ParentB: b, Variant: "exchange", Seed: 1})
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	if out.ChildID == "" || out.MateID == "" {
		t.Fatalf("expected child and mate ids, got %+v", out)
	}
	shown, err := client.Show(context.Background(), "pop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.Genomes != 4 {
		t.Fatalf("unexpected population size got=%d want=4", shown.Genomes)
	}
	child, err := client.Genome(context.Background(), "pop", out.ChildID)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if child.SpeciesID != genotype.Unassigned {
		t.Fatalf("unexpected child species got=%d", child.SpeciesID)
	}

	if _, err := client.Crossover(context.Background(), CrossoverRequest{PopulationID: "pop", ParentA: a, ParentB: "missing", Variant: "average"}); !errors.Is(err, ErrGenomeNotFound) {
		t.Fatalf("expected ErrGenomeNotFound, got %v", err)
	}
}

func TestClientDistance(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 2)
	snap, err := client.Load(context.Background(), "pop")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := snap.Genomes[0].ID
	d, err := client.Distance(context.Background(), "pop", a, a, Coefficients{})
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d != 0 {
		t.Fatalf("self distance got=%f want=0", d)
	}
}

func TestClientSQLitePersistsAcrossClients(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cppnevo.db")
	first, err := New(Options{StoreKind: "sqlite", DBPath: dbPath})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := first.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	seeded := seedPopulation(t, first, 3)
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := New(Options{StoreKind: "sqlite", DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	if err := second.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	shown, err := second.Show(context.Background(), "pop")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.Genomes != seeded.Genomes || shown.NextInnovation != seeded.NextInnovation {
		t.Fatalf("unexpected reloaded summary got=%+v want=%+v", shown, seeded)
	}
}

func TestClientExport(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 6)
	if _, err := client.Evaluate(context.Background(), EvaluateRequest{PopulationID: "pop"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := client.Speciate(context.Background(), SpeciateRequest{PopulationID: "pop"}); err != nil {
		t.Fatalf("speciate: %v", err)
	}

	dir, err := client.Export(context.Background(), ExportRequest{PopulationID: "pop", OutDir: t.TempDir(), Top: 2})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	artifacts, err := stats.ReadPopulationArtifacts(dir)
	if err != nil {
		t.Fatalf("read artifacts: %v", err)
	}
	if artifacts.Population.ID != "pop" || len(artifacts.TopGenomes) != 2 {
		t.Fatalf("unexpected artifacts: %+v", artifacts)
	}
	if artifacts.TopGenomes[0].Fitness < artifacts.TopGenomes[1].Fitness {
		t.Fatalf("top genomes not ranked: %+v", artifacts.TopGenomes)
	}
	if len(artifacts.FitnessHistory) != 1 || len(artifacts.SpeciesHistory) != 1 {
		t.Fatalf("unexpected histories: fitness=%v species=%d", artifacts.FitnessHistory, len(artifacts.SpeciesHistory))
	}
}

func TestClientDelete(t *testing.T) {
	client := newTestClient(t)
	seedPopulation(t, client, 2)
	if err := client.Delete(context.Background(), "pop"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Show(context.Background(), "pop"); !errors.Is(err, genotype.ErrPopulationNotFound) {
		t.Fatalf("expected ErrPopulationNotFound, got %v", err)
	}
}
