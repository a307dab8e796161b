package evo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"cppnevo/internal/genotype"
)

// FitnessFunc scores one genome. It must not touch other genomes.
type FitnessFunc func(ctx context.Context, g *genotype.Genome) (float64, error)

type EvaluateOptions struct {
	Workers int
	Logger  *slog.Logger
}

type GenomeFailure struct {
	Index    int
	GenomeID string
	Err      error
}

type EvaluationReport struct {
	Evaluated   int
	Failures    []GenomeFailure
	BestIndex   int
	BestFitness float64
	MeanFitness float64
}

// EvaluatePopulation scores every genome on a bounded worker pool and stores
// the result in its Fitness field. A genome whose evaluation fails gets
// fitness 0 and is reported in Failures; only context cancellation aborts the
// batch.
func EvaluatePopulation(ctx context.Context, pop []*genotype.Genome, fitness FitnessFunc, opts EvaluateOptions) (EvaluationReport, error) {
	if len(pop) == 0 {
		return EvaluationReport{}, ErrNoGenomes
	}
	if fitness == nil {
		return EvaluationReport{}, fmt.Errorf("fitness function is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pop) {
		workers = len(pop)
	}

	var (
		mu       sync.Mutex
		failures []GenomeFailure
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers)
	for i, g := range pop {
		i, g := i, g
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := fitness(ctx, g)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.Fitness = 0
				logger.Warn("genome evaluation failed", "genome", g.ID, "index", i, "error", err)
				mu.Lock()
				failures = append(failures, GenomeFailure{Index: i, GenomeID: g.ID, Err: err})
				mu.Unlock()
				return nil
			}
			g.Fitness = score
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return EvaluationReport{}, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	report := EvaluationReport{
		Evaluated: len(pop) - len(failures),
		Failures:  failures,
		BestIndex: -1,
	}
	scores := make([]float64, 0, len(pop))
	failed := make(map[int]struct{}, len(failures))
	for _, f := range failures {
		failed[f.Index] = struct{}{}
	}
	for i, g := range pop {
		if _, ok := failed[i]; ok {
			continue
		}
		scores = append(scores, g.Fitness)
		if report.BestIndex < 0 || g.Fitness > report.BestFitness {
			report.BestIndex = i
			report.BestFitness = g.Fitness
		}
	}
	report.MeanFitness = Mean(scores)

	logger.Info("evaluated population",
		"genomes", len(pop),
		"failures", len(failures),
		"best_fitness", report.BestFitness,
		"mean_fitness", report.MeanFitness,
	)
	return report, nil
}
