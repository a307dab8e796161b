package cppnevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"cppnevo/internal/evo"
	"cppnevo/internal/genotype"
	"cppnevo/internal/model"
	"cppnevo/internal/nn"
	"cppnevo/internal/scape"
	"cppnevo/internal/stats"
	"cppnevo/internal/storage"
)

const (
	defaultDBPath     = "cppnevo.db"
	defaultExportsDir = "exports"
	defaultWorkers    = 4
	defaultPopulation = 150
	defaultThreshold  = 3.0
	defaultAlpha      = 1.0
)

// Unassigned is the species id of a genome not yet placed in a species.
const Unassigned = genotype.Unassigned

var ErrGenomeNotFound = errors.New("genome not found")

type (
	Genome            = genotype.Genome
	InnovationTracker = genotype.InnovationTracker
	Coefficients      = evo.Coefficients
	Species           = evo.Species
	EvaluationReport  = evo.EvaluationReport
	MutationStats     = evo.MutationStats
	Activation        = nn.Activation
)

// NewGenome builds a fully connected genome; see genotype.New.
func NewGenome(inputs, outputs int, rng *rand.Rand, opts ...genotype.Option) (*Genome, error) {
	return genotype.New(inputs, outputs, rng, opts...)
}

func NewInnovationTracker(inputs, outputs int) *InnovationTracker {
	return genotype.NewInnovationTracker(inputs, outputs)
}

func DefaultCoefficients() Coefficients {
	return evo.DefaultCoefficients()
}

// GenomeRecord is the persisted, JSON-friendly form of g.
func GenomeRecord(g *Genome) model.GenomeRecord {
	return genotype.ToRecord(g)
}

type Options struct {
	StoreKind string
	DBPath    string
	Workers   int
	Logger    *slog.Logger
}

// Client runs single evolutionary operations against stored populations.
// Scheduling generations is left to the caller.
type Client struct {
	store   storage.Store
	workers int
	logger  *slog.Logger
}

type SeedRequest struct {
	PopulationID     string
	Size             int
	Inputs           int
	Outputs          int
	Seed             int64
	OutputActivation string
}

type PopulationSummary struct {
	PopulationID   string
	Generation     int
	Genomes        int
	Inputs         int
	Outputs        int
	NextInnovation uint64
	BestFitness    float64
	BestGenomeID   string
}

type EvaluateRequest struct {
	PopulationID string
	Scape        string
	DataSeed     int64
	// Postprocessor is one of none, niche_sharing, size_proportional.
	Postprocessor string
	Threshold     float64
	Alpha         float64
	Coefficients  Coefficients
}

type EvaluateSummary struct {
	Report        EvaluationReport
	Postprocessor string
	BestGenomeID  string
}

type SpeciateRequest struct {
	PopulationID string
	Threshold    float64
	Coefficients Coefficients
	// Continue keeps existing species assignments and places only
	// unassigned genomes against the last stored representatives.
	Continue bool
	// AdaptThreshold replays stored snapshots through a threshold
	// controller and uses its proposal instead of Threshold.
	AdaptThreshold bool
	TargetSpecies  int
	// PenalizeStagnant divides the fitness of long-stagnant species.
	PenalizeStagnant bool
}

type SpeciateSummary struct {
	Snapshot  model.SpeciesSnapshot
	Penalized []int
}

// MutationStep is one operator pass within a generation.
type MutationStep struct {
	Operator    string
	Probability float64
}

// MutateRequest describes one generation's structural and weight mutation.
// Steps run in order over the same tracker, so splits of the same gene share
// innovation ids across steps.
type MutateRequest struct {
	PopulationID   string
	Steps          []MutationStep
	Seed           int64
	OnlyUnassigned bool
}

type MutateSummary struct {
	Stats          []MutationStats
	Generation     int
	NextInnovation uint64
}

type CrossoverRequest struct {
	PopulationID string
	ParentA      string
	ParentB      string
	Variant      string
	Seed         int64
}

type CrossoverSummary struct {
	ChildID string
	MateID  string
}

type ExportRequest struct {
	PopulationID string
	OutDir       string
	// Top limits the exported genomes to the fittest N; <= 0 exports all.
	Top int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, workers: workers, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Seed creates a population of fresh genomes sharing one innovation
// numbering for the initial connections.
func (c *Client) Seed(ctx context.Context, req SeedRequest) (PopulationSummary, error) {
	if req.Size <= 0 {
		req.Size = defaultPopulation
	}
	if req.Inputs <= 0 {
		req.Inputs = 2
	}
	if req.Outputs <= 0 {
		req.Outputs = 1
	}
	if req.PopulationID == "" {
		req.PopulationID = uuid.NewString()
	}
	var opts []genotype.Option
	if req.OutputActivation != "" {
		activation, err := nn.ParseActivation(req.OutputActivation)
		if err != nil {
			return PopulationSummary{}, err
		}
		opts = append(opts, genotype.WithOutputActivation(activation))
	}

	rng := rand.New(rand.NewSource(req.Seed))
	pop := make([]*Genome, 0, req.Size)
	for i := 0; i < req.Size; i++ {
		g, err := genotype.New(req.Inputs, req.Outputs, rng, opts...)
		if err != nil {
			return PopulationSummary{}, err
		}
		pop = append(pop, g)
	}
	tracker := genotype.NewInnovationTracker(req.Inputs, req.Outputs)
	if err := genotype.SavePopulationSnapshot(ctx, c.store, req.PopulationID, 0, pop, tracker); err != nil {
		return PopulationSummary{}, err
	}
	c.logger.Info("seeded population",
		"population", req.PopulationID,
		"size", req.Size,
		"inputs", req.Inputs,
		"outputs", req.Outputs,
		"seed", req.Seed,
	)
	return summarize(req.PopulationID, 0, pop, tracker), nil
}

func (c *Client) Load(ctx context.Context, populationID string) (genotype.Snapshot, error) {
	return genotype.LoadPopulationSnapshot(ctx, c.store, populationID)
}

func (c *Client) Show(ctx context.Context, populationID string) (PopulationSummary, error) {
	snap, err := c.Load(ctx, populationID)
	if err != nil {
		return PopulationSummary{}, err
	}
	return summarize(populationID, snap.Population.Generation, snap.Genomes, snap.Tracker), nil
}

func (c *Client) Populations(ctx context.Context) ([]model.PopulationRecord, error) {
	return c.store.ListPopulations(ctx)
}

func (c *Client) Delete(ctx context.Context, populationID string) error {
	return genotype.DeletePopulationSnapshot(ctx, c.store, populationID)
}

// Genome loads one member of a population.
func (c *Client) Genome(ctx context.Context, populationID, genomeID string) (*Genome, error) {
	snap, err := c.Load(ctx, populationID)
	if err != nil {
		return nil, err
	}
	return findGenome(snap.Genomes, genomeID)
}

// Evaluate scores every genome with the named scape, optionally adjusts
// the scores with a fitness postprocessor, stores the new fitness values and
// appends the best raw fitness to the population's history.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.Scape == "" {
		req.Scape = "xor"
	}
	s, err := scape.Lookup(req.Scape, req.DataSeed)
	if err != nil {
		return EvaluateSummary{}, err
	}
	post, err := c.postprocessorFromName(req)
	if err != nil {
		return EvaluateSummary{}, err
	}
	snap, err := c.Load(ctx, req.PopulationID)
	if err != nil {
		return EvaluateSummary{}, err
	}

	report, err := evo.EvaluatePopulation(ctx, snap.Genomes, scape.FitnessFunc(s), evo.EvaluateOptions{
		Workers: c.workers,
		Logger:  c.logger,
	})
	if err != nil {
		return EvaluateSummary{}, err
	}
	bestID := ""
	if report.BestIndex >= 0 {
		bestID = snap.Genomes[report.BestIndex].ID
	}

	adjusted, err := post.Process(snap.Genomes)
	if err != nil {
		return EvaluateSummary{}, err
	}
	for i, g := range snap.Genomes {
		g.Fitness = adjusted[i]
	}

	if err := genotype.SavePopulationSnapshot(ctx, c.store, req.PopulationID, snap.Population.Generation, snap.Genomes, snap.Tracker); err != nil {
		return EvaluateSummary{}, err
	}
	if err := c.appendHistory(ctx, req.PopulationID, report.BestFitness); err != nil {
		return EvaluateSummary{}, err
	}
	return EvaluateSummary{Report: report, Postprocessor: post.Name(), BestGenomeID: bestID}, nil
}

func (c *Client) postprocessorFromName(req EvaluateRequest) (evo.FitnessPostprocessor, error) {
	switch strings.ToLower(strings.TrimSpace(req.Postprocessor)) {
	case "", "none":
		return evo.NoopFitnessPostprocessor{}, nil
	case "niche_sharing", "sharing":
		threshold := req.Threshold
		if threshold == 0 {
			threshold = defaultThreshold
		}
		alpha := req.Alpha
		if alpha == 0 {
			alpha = defaultAlpha
		}
		return evo.NicheSharingPostprocessor{
			Threshold:    threshold,
			Alpha:        alpha,
			Coefficients: coefficientsOrDefault(req.Coefficients),
			Workers:      c.workers,
		}, nil
	case "size_proportional":
		return evo.SizeProportionalPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", req.Postprocessor)
	}
}

func (c *Client) appendHistory(ctx context.Context, populationID string, best float64) error {
	history, _, err := c.store.GetFitnessHistory(ctx, populationID)
	if err != nil {
		return err
	}
	return c.store.SaveFitnessHistory(ctx, populationID, append(history, best))
}

// Speciate partitions the population and stores the resulting snapshot for
// the current generation. Representatives are stored as separate genome
// records so later mutation of the members does not move them.
func (c *Client) Speciate(ctx context.Context, req SpeciateRequest) (SpeciateSummary, error) {
	snap, err := c.Load(ctx, req.PopulationID)
	if err != nil {
		return SpeciateSummary{}, err
	}
	history, _, err := c.store.GetSpeciesSnapshots(ctx, req.PopulationID)
	if err != nil {
		return SpeciateSummary{}, err
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	if req.AdaptThreshold && len(history) > 0 {
		controller := evo.NewThresholdController()
		if req.TargetSpecies > 0 {
			controller.TargetSpecies = req.TargetSpecies
		}
		for _, past := range history {
			threshold = controller.Adjust(past.Generation, len(past.Species), past.Threshold)
		}
	}

	speciator, err := evo.NewSpeciator(threshold, coefficientsOrDefault(req.Coefficients))
	if err != nil {
		return SpeciateSummary{}, err
	}
	speciator.Logger = c.logger

	var species []*Species
	if req.Continue && len(history) > 0 {
		reps, err := c.loadRepresentatives(ctx, history[len(history)-1])
		if err != nil {
			return SpeciateSummary{}, err
		}
		speciator.Resume(reps)
		species, err = speciator.Continue(snap.Genomes)
		if err != nil {
			return SpeciateSummary{}, err
		}
	} else {
		species, err = speciator.First(snap.Genomes)
		if err != nil {
			return SpeciateSummary{}, err
		}
	}

	summary := speciator.Summaries(snap.Population.Generation)
	var penalized []int
	if req.PenalizeStagnant {
		stagnation := evo.NewStagnationTracker()
		for _, past := range history {
			if past.Generation >= snap.Population.Generation {
				continue
			}
			means := make(map[int]float64, len(past.Species))
			for _, sp := range past.Species {
				means[sp.ID] = sp.MeanFitness
			}
			stagnation.ObserveMeans(means)
		}
		stagnation.Observe(species)
		penalized = stagnation.Penalize(species)
	}

	for i, sp := range species {
		rec := genotype.ToRecord(sp.Representative)
		rec.ID = representativeID(req.PopulationID, snap.Population.Generation, sp.ID)
		if err := c.store.SaveGenome(ctx, rec); err != nil {
			return SpeciateSummary{}, err
		}
		summary.Species[i].RepresentativeID = rec.ID
	}
	if err := c.store.SaveSpeciesSnapshot(ctx, req.PopulationID, summary); err != nil {
		return SpeciateSummary{}, err
	}
	if err := genotype.SavePopulationSnapshot(ctx, c.store, req.PopulationID, snap.Population.Generation, snap.Genomes, snap.Tracker); err != nil {
		return SpeciateSummary{}, err
	}
	c.logger.Info("speciated population",
		"population", req.PopulationID,
		"generation", snap.Population.Generation,
		"species", len(species),
		"threshold", threshold,
		"penalized", len(penalized),
	)
	return SpeciateSummary{Snapshot: summary, Penalized: penalized}, nil
}

func (c *Client) loadRepresentatives(ctx context.Context, snapshot model.SpeciesSnapshot) (map[int]*Genome, error) {
	reps := make(map[int]*Genome, len(snapshot.Species))
	for _, sp := range snapshot.Species {
		rec, ok, err := c.store.GetGenome(ctx, sp.RepresentativeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: representative %s of species %d", ErrGenomeNotFound, sp.RepresentativeID, sp.ID)
		}
		g, err := genotype.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		reps[sp.ID] = g
	}
	return reps, nil
}

func representativeID(populationID string, generation, speciesID int) string {
	return fmt.Sprintf("%s/rep/%d/%d", populationID, generation, speciesID)
}

// Mutate runs the requested operator steps across the population, then
// clears the tracker's split table and advances the generation counter once.
// The advanced next innovation number is persisted with the population.
func (c *Client) Mutate(ctx context.Context, req MutateRequest) (MutateSummary, error) {
	if len(req.Steps) == 0 {
		return MutateSummary{}, errors.New("mutate requires at least one operator step")
	}
	snap, err := c.Load(ctx, req.PopulationID)
	if err != nil {
		return MutateSummary{}, err
	}
	if len(snap.Genomes) == 0 {
		return MutateSummary{}, evo.ErrNoGenomes
	}
	ops := make([]evo.Operator, 0, len(req.Steps))
	for _, step := range req.Steps {
		if step.Probability < 0 || step.Probability > 1 {
			return MutateSummary{}, fmt.Errorf("probability for %s must be in [0,1], got %v", step.Operator, step.Probability)
		}
		op, err := evo.ResolveOperator(step.Operator, snap.Genomes[0])
		if err != nil {
			return MutateSummary{}, err
		}
		ops = append(ops, op)
	}

	// eligibility is fixed before the first step; mutation clears species ids
	var keep func(*Genome) bool
	if req.OnlyUnassigned {
		eligible := make(map[*Genome]bool, len(snap.Genomes))
		for _, g := range snap.Genomes {
			if g.SpeciesID == Unassigned {
				eligible[g] = true
			}
		}
		keep = func(g *Genome) bool { return eligible[g] }
	}
	rng := rand.New(rand.NewSource(req.Seed))
	stats := make([]MutationStats, 0, len(ops))
	for i, op := range ops {
		stats = append(stats, evo.MutatePopulation(rng, snap.Genomes, snap.Tracker, op, req.Steps[i].Probability, keep))
	}
	snap.Tracker.Clear()

	generation := snap.Population.Generation + 1
	if err := genotype.SavePopulationSnapshot(ctx, c.store, req.PopulationID, generation, snap.Genomes, snap.Tracker); err != nil {
		return MutateSummary{}, err
	}
	for _, st := range stats {
		c.logger.Info("mutated population",
			"population", req.PopulationID,
			"operator", st.Operator,
			"tried", st.Tried,
			"applied", st.Applied,
		)
	}
	c.logger.Info("generation mutated",
		"population", req.PopulationID,
		"generation", generation,
		"next_innovation", snap.Tracker.Peek(),
	)
	return MutateSummary{Stats: stats, Generation: generation, NextInnovation: snap.Tracker.Peek()}, nil
}

// Crossover breeds two members and appends the offspring to the population.
func (c *Client) Crossover(ctx context.Context, req CrossoverRequest) (CrossoverSummary, error) {
	variant, err := genotype.ParseVariant(req.Variant)
	if err != nil {
		return CrossoverSummary{}, err
	}
	snap, err := c.Load(ctx, req.PopulationID)
	if err != nil {
		return CrossoverSummary{}, err
	}
	a, err := findGenome(snap.Genomes, req.ParentA)
	if err != nil {
		return CrossoverSummary{}, err
	}
	b, err := findGenome(snap.Genomes, req.ParentB)
	if err != nil {
		return CrossoverSummary{}, err
	}

	offspring := genotype.Crossover(a, b, rand.New(rand.NewSource(req.Seed)), variant)
	pop := append(snap.Genomes, offspring.Child)
	out := CrossoverSummary{ChildID: offspring.Child.ID}
	if offspring.Mate != nil {
		pop = append(pop, offspring.Mate)
		out.MateID = offspring.Mate.ID
	}
	if err := genotype.SavePopulationSnapshot(ctx, c.store, req.PopulationID, snap.Population.Generation, pop, snap.Tracker); err != nil {
		return CrossoverSummary{}, err
	}
	return out, nil
}

// Distance measures two members of a population.
func (c *Client) Distance(ctx context.Context, populationID, a, b string, coefficients Coefficients) (float64, error) {
	snap, err := c.Load(ctx, populationID)
	if err != nil {
		return 0, err
	}
	ga, err := findGenome(snap.Genomes, a)
	if err != nil {
		return 0, err
	}
	gb, err := findGenome(snap.Genomes, b)
	if err != nil {
		return 0, err
	}
	return evo.Distance(ga, gb, coefficientsOrDefault(coefficients)), nil
}

func (c *Client) SpeciesHistory(ctx context.Context, populationID string) ([]model.SpeciesSnapshot, error) {
	history, _, err := c.store.GetSpeciesSnapshots(ctx, populationID)
	return history, err
}

func (c *Client) FitnessHistory(ctx context.Context, populationID string) ([]float64, error) {
	history, _, err := c.store.GetFitnessHistory(ctx, populationID)
	return history, err
}

// Export writes the population, its ranked genomes and both histories as
// JSON files and returns the directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (string, error) {
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}
	snap, err := c.Load(ctx, req.PopulationID)
	if err != nil {
		return "", err
	}
	species, _, err := c.store.GetSpeciesSnapshots(ctx, req.PopulationID)
	if err != nil {
		return "", err
	}
	history, _, err := c.store.GetFitnessHistory(ctx, req.PopulationID)
	if err != nil {
		return "", err
	}
	records := make([]model.GenomeRecord, 0, len(snap.Genomes))
	for _, g := range snap.Genomes {
		records = append(records, genotype.ToRecord(g))
	}
	return stats.WritePopulationArtifacts(req.OutDir, stats.PopulationArtifacts{
		Population:     snap.Population,
		TopGenomes:     stats.RankGenomes(records, req.Top),
		SpeciesHistory: species,
		FitnessHistory: history,
	})
}

func findGenome(pop []*Genome, id string) (*Genome, error) {
	for _, g := range pop {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrGenomeNotFound, id)
}

func coefficientsOrDefault(c Coefficients) Coefficients {
	if c == (Coefficients{}) {
		return evo.DefaultCoefficients()
	}
	return c
}

func summarize(populationID string, generation int, pop []*Genome, tracker *InnovationTracker) PopulationSummary {
	out := PopulationSummary{
		PopulationID:   populationID,
		Generation:     generation,
		Genomes:        len(pop),
		NextInnovation: tracker.Peek(),
	}
	for i, g := range pop {
		if i == 0 {
			out.Inputs, out.Outputs = g.InputWidth(), g.NumOutputs()
		}
		if out.BestGenomeID == "" || g.Fitness > out.BestFitness {
			out.BestFitness = g.Fitness
			out.BestGenomeID = g.ID
		}
	}
	return out
}
