package genotype

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cppnevo/internal/model"
	"cppnevo/internal/storage"
)

var ErrPopulationNotFound = errors.New("population not found")

// Snapshot is a population loaded back from a store, with a tracker resumed
// at the persisted next innovation number.
type Snapshot struct {
	Population model.PopulationRecord
	Genomes    []*Genome
	Tracker    *InnovationTracker
}

// SavePopulationSnapshot writes every genome and the population record that
// lists them, along with the tracker's next innovation number. Genomes
// without an id are left out of the membership list.
func SavePopulationSnapshot(ctx context.Context, store storage.Store, populationID string, generation int, genomes []*Genome, tracker *InnovationTracker) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	if populationID == "" {
		return fmt.Errorf("population id is required")
	}
	if tracker == nil {
		return fmt.Errorf("innovation tracker is required")
	}

	inputs, outputs := 0, 0
	ids := make([]string, 0, len(genomes))
	seen := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		if g == nil {
			continue
		}
		if len(ids) == 0 {
			inputs, outputs = g.InputWidth(), g.NumOutputs()
		} else if g.InputWidth() != inputs || g.NumOutputs() != outputs {
			return fmt.Errorf("%w: genome %s is %dx%d, population is %dx%d", ErrShapeMismatch, g.ID, g.InputWidth(), g.NumOutputs(), inputs, outputs)
		}
		if err := store.SaveGenome(ctx, ToRecord(g)); err != nil {
			return fmt.Errorf("save genome %s: %w", g.ID, err)
		}
		if g.ID == "" {
			continue
		}
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		ids = append(ids, g.ID)
	}

	return store.SavePopulation(ctx, model.PopulationRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:             populationID,
		GenomeIDs:      ids,
		Generation:     generation,
		Inputs:         inputs,
		Outputs:        outputs,
		NextInnovation: tracker.Peek(),
		UpdatedAt:      time.Now().UTC(),
	})
}

func LoadPopulationSnapshot(ctx context.Context, store storage.Store, populationID string) (Snapshot, error) {
	if store == nil {
		return Snapshot{}, fmt.Errorf("store is required")
	}
	if populationID == "" {
		return Snapshot{}, fmt.Errorf("population id is required")
	}

	pop, ok, err := store.GetPopulation(ctx, populationID)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrPopulationNotFound, populationID)
	}

	genomes := make([]*Genome, 0, len(pop.GenomeIDs))
	for _, id := range pop.GenomeIDs {
		rec, ok, err := store.GetGenome(ctx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if !ok {
			return Snapshot{}, fmt.Errorf("genome not found for population %s: %s", populationID, id)
		}
		g, err := FromRecord(rec)
		if err != nil {
			return Snapshot{}, err
		}
		genomes = append(genomes, g)
	}

	tracker := NewInnovationTracker(pop.Inputs, pop.Outputs)
	tracker.Restore(pop.NextInnovation)
	return Snapshot{Population: pop, Genomes: genomes, Tracker: tracker}, nil
}

func DeletePopulationSnapshot(ctx context.Context, store storage.Store, populationID string) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	if populationID == "" {
		return fmt.Errorf("population id is required")
	}
	_, ok, err := store.GetPopulation(ctx, populationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPopulationNotFound, populationID)
	}
	return store.DeletePopulation(ctx, populationID)
}
