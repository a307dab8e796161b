package storage

import (
	"context"
	"sort"
	"sync"

	"cppnevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	genomes     map[string]model.GenomeRecord
	populations map[string]model.PopulationRecord
	species     map[string][]model.SpeciesSnapshot
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.genomes = make(map[string]model.GenomeRecord)
	s.populations = make(map[string]model.PopulationRecord)
	s.species = make(map[string][]model.SpeciesSnapshot)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.GenomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	s.genomes[genome.ID] = cloneGenomeRecord(genome)
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.GenomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.GenomeRecord{}, false, ErrNotInitialized
	}

	genome, ok := s.genomes[id]
	if !ok {
		return model.GenomeRecord{}, false, nil
	}
	return cloneGenomeRecord(genome), true, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.PopulationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	population.GenomeIDs = append([]string(nil), population.GenomeIDs...)
	s.populations[population.ID] = population
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.PopulationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.PopulationRecord{}, false, ErrNotInitialized
	}

	population, ok := s.populations[id]
	if !ok {
		return model.PopulationRecord{}, false, nil
	}
	population.GenomeIDs = append([]string(nil), population.GenomeIDs...)
	return population, true, nil
}

func (s *MemoryStore) ListPopulations(_ context.Context) ([]model.PopulationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	out := make([]model.PopulationRecord, 0, len(s.populations))
	for _, population := range s.populations {
		population.GenomeIDs = append([]string(nil), population.GenomeIDs...)
		out = append(out, population)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeletePopulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	delete(s.populations, id)
	delete(s.species, id)
	return nil
}

// SaveSpeciesSnapshot replaces the snapshot of the same generation or adds a
// new one, keeping snapshots ordered by generation.
func (s *MemoryStore) SaveSpeciesSnapshot(_ context.Context, populationID string, snapshot model.SpeciesSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	snapshot = cloneSpeciesSnapshot(snapshot)
	existing := s.species[populationID]
	for i := range existing {
		if existing[i].Generation == snapshot.Generation {
			existing[i] = snapshot
			return nil
		}
	}
	existing = append(existing, snapshot)
	sort.SliceStable(existing, func(i, j int) bool { return existing[i].Generation < existing[j].Generation })
	s.species[populationID] = existing
	return nil
}

func (s *MemoryStore) GetSpeciesSnapshots(_ context.Context, populationID string) ([]model.SpeciesSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, false, ErrNotInitialized
	}

	snapshots, ok := s.species[populationID]
	if !ok {
		return nil, false, nil
	}
	out := make([]model.SpeciesSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, cloneSpeciesSnapshot(snapshot))
	}
	return out, true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}

	copied := append([]float64(nil), history...)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, false, ErrNotInitialized
	}

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}

func cloneGenomeRecord(g model.GenomeRecord) model.GenomeRecord {
	g.Nodes = append([]model.NodeRecord(nil), g.Nodes...)
	g.Connections = append([]model.ConnectionRecord(nil), g.Connections...)
	return g
}

func cloneSpeciesSnapshot(s model.SpeciesSnapshot) model.SpeciesSnapshot {
	species := make([]model.SpeciesSummary, len(s.Species))
	for i, summary := range s.Species {
		summary.MemberIDs = append([]string(nil), summary.MemberIDs...)
		species[i] = summary
	}
	s.Species = species
	return s
}
