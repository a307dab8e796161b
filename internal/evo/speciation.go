package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"cppnevo/internal/genotype"
	"cppnevo/internal/model"
)

var (
	ErrNoGenomes        = errors.New("no genomes")
	ErrInvalidThreshold = errors.New("invalid speciation threshold")
)

// Species is one cluster of the population. Representative is a private copy
// taken when the species was formed or last refreshed; Members alias genomes
// of the population.
type Species struct {
	ID             int
	Representative *genotype.Genome
	Members        []*genotype.Genome
}

func (s *Species) Size() int { return len(s.Members) }

// MeanFitness panics on an empty species; Speciator never returns one.
func (s *Species) MeanFitness() float64 {
	if len(s.Members) == 0 {
		panic(fmt.Sprintf("species %d has no members", s.ID))
	}
	return Mean(s.fitnesses())
}

func (s *Species) BestFitness() float64 {
	best, ok := Max(s.fitnesses())
	if !ok {
		panic(fmt.Sprintf("species %d has no members", s.ID))
	}
	return best
}

func (s *Species) fitnesses() []float64 {
	out := make([]float64, 0, len(s.Members))
	for _, m := range s.Members {
		out = append(out, m.Fitness)
	}
	return out
}

// Speciator partitions populations across generations. It keeps each
// species' representative between calls and never reuses a species id.
type Speciator struct {
	Threshold    float64
	Coefficients Coefficients
	Logger       *slog.Logger

	nextID  int
	species []*Species
}

func NewSpeciator(threshold float64, c Coefficients) (*Speciator, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	return &Speciator{Threshold: threshold, Coefficients: c}, nil
}

// Resume seeds the speciator with representatives from an earlier
// generation, keyed by species id.
func (s *Speciator) Resume(representatives map[int]*genotype.Genome) {
	ids := make([]int, 0, len(representatives))
	for id := range representatives {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	s.species = s.species[:0]
	for _, id := range ids {
		s.species = append(s.species, &Species{ID: id, Representative: representatives[id].Clone()})
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
}

// Species returns the partition produced by the last First or Continue call.
func (s *Speciator) Species() []*Species {
	return append([]*Species(nil), s.species...)
}

// First clusters pop from scratch. Genomes are visited in order and join the
// first species whose representative is within Threshold; otherwise they
// found a new species. Every genome's SpeciesID is overwritten.
func (s *Speciator) First(pop []*genotype.Genome) ([]*Species, error) {
	if err := s.check(pop); err != nil {
		return nil, err
	}
	s.species = nil
	for _, g := range pop {
		s.place(g)
	}
	s.refresh()
	s.log("first", len(pop))
	return s.Species(), nil
}

// Continue groups genomes that already carry a species id without measuring
// distance, and places only unassigned genomes against the stored
// representatives. Species left without members are dropped.
func (s *Speciator) Continue(pop []*genotype.Genome) ([]*Species, error) {
	if err := s.check(pop); err != nil {
		return nil, err
	}

	byID := make(map[int]*Species, len(s.species))
	for _, sp := range s.species {
		sp.Members = nil
		byID[sp.ID] = sp
	}

	var unassigned []*genotype.Genome
	for _, g := range pop {
		if g.SpeciesID == genotype.Unassigned {
			unassigned = append(unassigned, g)
			continue
		}
		sp, ok := byID[g.SpeciesID]
		if !ok {
			sp = &Species{ID: g.SpeciesID, Representative: g.Clone()}
			byID[sp.ID] = sp
			s.species = append(s.species, sp)
			if sp.ID >= s.nextID {
				s.nextID = sp.ID + 1
			}
		}
		sp.Members = append(sp.Members, g)
	}
	sort.SliceStable(s.species, func(i, j int) bool { return s.species[i].ID < s.species[j].ID })

	for _, g := range unassigned {
		s.place(g)
	}
	s.refresh()
	s.log("continue", len(pop))
	return s.Species(), nil
}

// Summaries converts the current partition into storable records.
func (s *Speciator) Summaries(generation int) model.SpeciesSnapshot {
	snapshot := model.SpeciesSnapshot{
		Generation: generation,
		Threshold:  s.Threshold,
		Species:    make([]model.SpeciesSummary, 0, len(s.species)),
		CreatedAt:  time.Now().UTC(),
	}
	for _, sp := range s.species {
		ids := make([]string, 0, len(sp.Members))
		for _, m := range sp.Members {
			ids = append(ids, m.ID)
		}
		snapshot.Species = append(snapshot.Species, model.SpeciesSummary{
			ID:               sp.ID,
			Size:             sp.Size(),
			MeanFitness:      sp.MeanFitness(),
			BestFitness:      sp.BestFitness(),
			RepresentativeID: sp.Representative.ID,
			MemberIDs:        ids,
		})
	}
	return snapshot
}

func (s *Speciator) place(g *genotype.Genome) {
	for _, sp := range s.species {
		if Distance(g, sp.Representative, s.Coefficients) <= s.Threshold {
			sp.Members = append(sp.Members, g)
			g.SpeciesID = sp.ID
			return
		}
	}
	sp := &Species{ID: s.nextID, Representative: g.Clone(), Members: []*genotype.Genome{g}}
	s.nextID++
	g.SpeciesID = sp.ID
	s.species = append(s.species, sp)
}

// refresh drops extinct species and re-anchors each survivor on a copy of its
// first member for the next generation.
func (s *Speciator) refresh() {
	alive := s.species[:0]
	for _, sp := range s.species {
		if len(sp.Members) == 0 {
			continue
		}
		sp.Representative = sp.Members[0].Clone()
		alive = append(alive, sp)
	}
	s.species = alive
}

func (s *Speciator) check(pop []*genotype.Genome) error {
	if len(pop) == 0 {
		return ErrNoGenomes
	}
	return validateThreshold(s.Threshold)
}

func (s *Speciator) log(mode string, population int) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("speciated population",
		"mode", mode,
		"population", population,
		"species", len(s.species),
		"threshold", s.Threshold,
	)
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// SpeciateFirst is a one-shot First with a fresh Speciator.
func SpeciateFirst(pop []*genotype.Genome, threshold float64, c Coefficients) ([]*Species, error) {
	s, err := NewSpeciator(threshold, c)
	if err != nil {
		return nil, err
	}
	return s.First(pop)
}

// SpeciateContinuing runs Continue against the given representatives.
func SpeciateContinuing(pop []*genotype.Genome, representatives map[int]*genotype.Genome, threshold float64, c Coefficients) ([]*Species, error) {
	s, err := NewSpeciator(threshold, c)
	if err != nil {
		return nil, err
	}
	s.Resume(representatives)
	return s.Continue(pop)
}
