package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"cppnevo/internal/evo"
	"cppnevo/internal/scape"
	cppnapi "cppnevo/pkg/cppnevo"
)

const timestampLayout = "%Y-%m-%d %H:%M:%S"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "speciate":
		return runSpeciate(ctx, args[1:])
	case "mutate":
		return runMutate(ctx, args[1:])
	case "crossover":
		return runCrossover(ctx, args[1:])
	case "distance":
		return runDistance(ctx, args[1:])
	case "species":
		return runSpecies(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cppnctl <init|seed|show|evaluate|speciate|mutate|crossover|distance|species|history|export> [flags]", msg)
}

// command is one parsed subcommand: its flag set with config-backed
// defaults already applied.
type command struct {
	fs  *flag.FlagSet
	cfg *Config
}

func newCommand(name string, args []string) (*command, error) {
	cfg, path, err := loadOrDefaultConfig(args)
	if err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", path, "experiment config file (yaml or json)")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "store backend: memory|sqlite")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker goroutines for evaluation and sharing")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	return &command{fs: fs, cfg: &cfg}, nil
}

func (c *command) parse(args []string) error {
	return c.fs.Parse(args)
}

func (c *command) client() (*cppnapi.Client, error) {
	logger, err := newLogger(os.Stderr, c.cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return cppnapi.New(cppnapi.Options{
		StoreKind: c.cfg.Store,
		DBPath:    c.cfg.DBPath,
		Workers:   c.cfg.Workers,
		Logger:    logger,
	})
}

func (c *command) coefficients() evo.Coefficients {
	return c.cfg.Coefficients
}

// newLogger picks a text handler for terminals and JSON otherwise.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func withClient(ctx context.Context, cmd *command, fn func(*cppnapi.Client) error) error {
	client, err := cmd.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	return fn(client)
}

func requirePopulation(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("--population-id is required")
	}
	return nil
}

func runInit(ctx context.Context, args []string) error {
	cmd, err := newCommand("init", args)
	if err != nil {
		return err
	}
	if err := cmd.parse(args); err != nil {
		return err
	}
	return withClient(ctx, cmd, func(*cppnapi.Client) error {
		fmt.Printf("initialized store=%s\n", cmd.cfg.Store)
		return nil
	})
}

func runSeed(ctx context.Context, args []string) error {
	cmd, err := newCommand("seed", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id (generated when empty)")
	cmd.fs.IntVar(&cmd.cfg.Population, "size", cmd.cfg.Population, "population size")
	cmd.fs.IntVar(&cmd.cfg.Inputs, "inputs", cmd.cfg.Inputs, "network inputs, bias excluded")
	cmd.fs.IntVar(&cmd.cfg.Outputs, "outputs", cmd.cfg.Outputs, "network outputs")
	cmd.fs.Int64Var(&cmd.cfg.Seed, "seed", cmd.cfg.Seed, "random seed")
	cmd.fs.StringVar(&cmd.cfg.OutputActivation, "output-activation", cmd.cfg.OutputActivation, "activation of output nodes")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := cmd.cfg.Validate(); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		summary, err := client.Seed(ctx, cppnapi.SeedRequest{
			PopulationID:     *populationID,
			Size:             cmd.cfg.Population,
			Inputs:           cmd.cfg.Inputs,
			Outputs:          cmd.cfg.Outputs,
			Seed:             cmd.cfg.Seed,
			OutputActivation: cmd.cfg.OutputActivation,
		})
		if err != nil {
			return err
		}
		fmt.Printf("seeded population_id=%s genomes=%s next_innovation=%d\n",
			summary.PopulationID,
			humanize.Comma(int64(summary.Genomes)),
			summary.NextInnovation,
		)
		return nil
	})
}

func runShow(ctx context.Context, args []string) error {
	cmd, err := newCommand("show", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id (lists populations when empty)")
	genomeID := cmd.fs.String("genome-id", "", "print one genome as JSON")
	if err := cmd.parse(args); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		if *populationID == "" {
			pops, err := client.Populations(ctx)
			if err != nil {
				return err
			}
			if len(pops) == 0 {
				fmt.Println("no populations")
				return nil
			}
			for _, p := range pops {
				fmt.Printf("population_id=%s generation=%d genomes=%s updated=%s\n",
					p.ID, p.Generation, humanize.Comma(int64(len(p.GenomeIDs))), humanize.Time(p.UpdatedAt))
			}
			return nil
		}
		if *genomeID != "" {
			g, err := client.Genome(ctx, *populationID, *genomeID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cppnapi.GenomeRecord(g))
		}
		summary, err := client.Show(ctx, *populationID)
		if err != nil {
			return err
		}
		fmt.Printf("population_id=%s generation=%d genomes=%s shape=%dx%d next_innovation=%d best=%.6f best_genome=%s\n",
			summary.PopulationID,
			summary.Generation,
			humanize.Comma(int64(summary.Genomes)),
			summary.Inputs,
			summary.Outputs,
			summary.NextInnovation,
			summary.BestFitness,
			summary.BestGenomeID,
		)
		return nil
	})
}

func runEvaluate(ctx context.Context, args []string) error {
	cmd, err := newCommand("evaluate", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	dataSeed := cmd.fs.Int64("data-seed", 0, "seed for generated classification points (defaults to -seed)")
	postprocessor := cmd.fs.String("postprocessor", "none", "fitness postprocessor: none|niche_sharing|size_proportional")
	cmd.fs.StringVar(&cmd.cfg.Scape, "scape", cmd.cfg.Scape, "fitness scape: "+strings.Join(scape.Names(), "|"))
	cmd.fs.Int64Var(&cmd.cfg.Seed, "seed", cmd.cfg.Seed, "random seed")
	cmd.fs.Float64Var(&cmd.cfg.Threshold, "threshold", cmd.cfg.Threshold, "sharing distance threshold")
	cmd.fs.Float64Var(&cmd.cfg.Alpha, "alpha", cmd.cfg.Alpha, "sharing exponent")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}
	seed := *dataSeed
	if seed == 0 {
		seed = cmd.cfg.Seed
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		summary, err := client.Evaluate(ctx, cppnapi.EvaluateRequest{
			PopulationID:  *populationID,
			Scape:         cmd.cfg.Scape,
			DataSeed:      seed,
			Postprocessor: *postprocessor,
			Threshold:     cmd.cfg.Threshold,
			Alpha:         cmd.cfg.Alpha,
			Coefficients:  cmd.coefficients(),
		})
		if err != nil {
			return err
		}
		fmt.Printf("evaluated=%s failed=%d best=%.6f mean=%.6f best_genome=%s postprocessor=%s\n",
			humanize.Comma(int64(summary.Report.Evaluated)),
			len(summary.Report.Failures),
			summary.Report.BestFitness,
			summary.Report.MeanFitness,
			summary.BestGenomeID,
			summary.Postprocessor,
		)
		return nil
	})
}

func runSpeciate(ctx context.Context, args []string) error {
	cmd, err := newCommand("speciate", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	continuing := cmd.fs.Bool("continue", false, "keep existing species and place only unassigned genomes")
	adapt := cmd.fs.Bool("adapt-threshold", false, "adjust the threshold toward -target-species from stored history")
	penalize := cmd.fs.Bool("penalize-stagnant", false, "divide fitness of long-stagnant species")
	cmd.fs.Float64Var(&cmd.cfg.Threshold, "threshold", cmd.cfg.Threshold, "speciation distance threshold")
	cmd.fs.IntVar(&cmd.cfg.TargetSpecies, "target-species", cmd.cfg.TargetSpecies, "species count the adaptive threshold aims for")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		summary, err := client.Speciate(ctx, cppnapi.SpeciateRequest{
			PopulationID:     *populationID,
			Threshold:        cmd.cfg.Threshold,
			Coefficients:     cmd.coefficients(),
			Continue:         *continuing,
			AdaptThreshold:   *adapt,
			TargetSpecies:    cmd.cfg.TargetSpecies,
			PenalizeStagnant: *penalize,
		})
		if err != nil {
			return err
		}
		fmt.Printf("generation=%d species=%d threshold=%.3f penalized=%d\n",
			summary.Snapshot.Generation,
			len(summary.Snapshot.Species),
			summary.Snapshot.Threshold,
			len(summary.Penalized),
		)
		for _, sp := range summary.Snapshot.Species {
			fmt.Printf("species_id=%d size=%d mean=%.6f best=%.6f\n", sp.ID, sp.Size, sp.MeanFitness, sp.BestFitness)
		}
		return nil
	})
}

// defaultMutationOrder is one generation's mutation sequence.
const defaultMutationOrder = "weights,add_node,add_connection,activation"

func runMutate(ctx context.Context, args []string) error {
	cmd, err := newCommand("mutate", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	operators := cmd.fs.String("operator", defaultMutationOrder, "comma-separated mutation operators run in order: "+strings.Join(evo.ListOperators(), "|"))
	probability := cmd.fs.Float64("probability", -1, "per-genome probability for every step (defaults to the configured value per operator)")
	onlyUnassigned := cmd.fs.Bool("only-unassigned", false, "mutate only genomes without a species")
	cmd.fs.Int64Var(&cmd.cfg.Seed, "seed", cmd.cfg.Seed, "random seed")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}
	steps, err := mutationSteps(*cmd.cfg, *operators, *probability)
	if err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		summary, err := client.Mutate(ctx, cppnapi.MutateRequest{
			PopulationID:   *populationID,
			Steps:          steps,
			Seed:           cmd.cfg.Seed,
			OnlyUnassigned: *onlyUnassigned,
		})
		if err != nil {
			return err
		}
		for _, st := range summary.Stats {
			fmt.Printf("operator=%s tried=%d applied=%d\n", st.Operator, st.Tried, st.Applied)
		}
		fmt.Printf("generation=%d next_innovation=%d\n", summary.Generation, summary.NextInnovation)
		return nil
	})
}

func mutationSteps(cfg Config, operators string, probability float64) ([]cppnapi.MutationStep, error) {
	if probability > 1 {
		return nil, fmt.Errorf("probability must be in [0,1], got %v", probability)
	}
	var steps []cppnapi.MutationStep
	for _, name := range strings.Split(operators, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p := probability
		if p < 0 {
			configured, ok := cfg.ProbabilityFor(name)
			if !ok {
				return nil, fmt.Errorf("no configured probability for operator %s; pass --probability", name)
			}
			p = configured
		}
		steps = append(steps, cppnapi.MutationStep{Operator: name, Probability: p})
	}
	if len(steps) == 0 {
		return nil, errors.New("--operator names no mutation operators")
	}
	return steps, nil
}

func runCrossover(ctx context.Context, args []string) error {
	cmd, err := newCommand("crossover", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	parentA := cmd.fs.String("a", "", "first parent genome id")
	parentB := cmd.fs.String("b", "", "second parent genome id")
	variant := cmd.fs.String("variant", "substitute", "crossover variant: substitute|exchange|average")
	cmd.fs.Int64Var(&cmd.cfg.Seed, "seed", cmd.cfg.Seed, "random seed")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}
	if *parentA == "" || *parentB == "" {
		return errors.New("crossover requires --a and --b")
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		out, err := client.Crossover(ctx, cppnapi.CrossoverRequest{
			PopulationID: *populationID,
			ParentA:      *parentA,
			ParentB:      *parentB,
			Variant:      *variant,
			Seed:         cmd.cfg.Seed,
		})
		if err != nil {
			return err
		}
		if out.MateID != "" {
			fmt.Printf("child=%s mate=%s\n", out.ChildID, out.MateID)
			return nil
		}
		fmt.Printf("child=%s\n", out.ChildID)
		return nil
	})
}

func runDistance(ctx context.Context, args []string) error {
	cmd, err := newCommand("distance", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	a := cmd.fs.String("a", "", "first genome id")
	b := cmd.fs.String("b", "", "second genome id")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}
	if *a == "" || *b == "" {
		return errors.New("distance requires --a and --b")
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		d, err := client.Distance(ctx, *populationID, *a, *b, cmd.coefficients())
		if err != nil {
			return err
		}
		fmt.Printf("distance=%.6f\n", d)
		return nil
	})
}

func runSpecies(ctx context.Context, args []string) error {
	cmd, err := newCommand("species", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	limit := cmd.fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := cmd.fs.Bool("json", false, "emit species history as JSON")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		history, err := client.SpeciesHistory(ctx, *populationID)
		if err != nil {
			return err
		}
		if *limit > 0 && len(history) > *limit {
			history = history[len(history)-*limit:]
		}
		if len(history) == 0 {
			fmt.Println("no species history")
			return nil
		}
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(history)
		}
		for _, generation := range history {
			fmt.Printf("generation=%d species=%d threshold=%.3f at=%s\n",
				generation.Generation,
				len(generation.Species),
				generation.Threshold,
				formatTimestamp(generation.CreatedAt),
			)
			for _, item := range generation.Species {
				fmt.Printf("species_id=%d size=%d mean=%.6f best=%.6f\n", item.ID, item.Size, item.MeanFitness, item.BestFitness)
			}
		}
		return nil
	})
}

func runHistory(ctx context.Context, args []string) error {
	cmd, err := newCommand("history", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	jsonOut := cmd.fs.Bool("json", false, "emit fitness history as JSON")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		history, err := client.FitnessHistory(ctx, *populationID)
		if err != nil {
			return err
		}
		if *jsonOut {
			return json.NewEncoder(os.Stdout).Encode(history)
		}
		if len(history) == 0 {
			fmt.Println("no fitness history")
			return nil
		}
		for i, best := range history {
			fmt.Printf("evaluation=%d best=%.6f\n", i, best)
		}
		return nil
	})
}

func runExport(ctx context.Context, args []string) error {
	cmd, err := newCommand("export", args)
	if err != nil {
		return err
	}
	populationID := cmd.fs.String("population-id", "", "population id")
	outDir := cmd.fs.String("out", "exports", "output directory")
	top := cmd.fs.Int("top", 10, "genomes to export, fittest first (<=0 for all)")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if err := requirePopulation(*populationID); err != nil {
		return err
	}

	return withClient(ctx, cmd, func(client *cppnapi.Client) error {
		dir, err := client.Export(ctx, cppnapi.ExportRequest{PopulationID: *populationID, OutDir: *outDir, Top: *top})
		if err != nil {
			return err
		}
		fmt.Printf("exported population_id=%s dir=%s\n", *populationID, dir)
		return nil
	})
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strftime.Format(timestampLayout, t.UTC())
}
