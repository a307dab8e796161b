package storage

import (
	"context"

	"cppnevo/internal/model"
)

// Store defines the persistence operations for genomes, populations and the
// per-generation records kept alongside them.
type Store interface {
	Init(ctx context.Context) error
	SaveGenome(ctx context.Context, genome model.GenomeRecord) error
	GetGenome(ctx context.Context, id string) (model.GenomeRecord, bool, error)
	SavePopulation(ctx context.Context, population model.PopulationRecord) error
	GetPopulation(ctx context.Context, id string) (model.PopulationRecord, bool, error)
	ListPopulations(ctx context.Context) ([]model.PopulationRecord, error)
	DeletePopulation(ctx context.Context, id string) error
	SaveSpeciesSnapshot(ctx context.Context, populationID string, snapshot model.SpeciesSnapshot) error
	GetSpeciesSnapshots(ctx context.Context, populationID string) ([]model.SpeciesSnapshot, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
