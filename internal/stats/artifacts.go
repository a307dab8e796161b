package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cppnevo/internal/model"
)

const (
	populationFile     = "population.json"
	topGenomesFile     = "top_genomes.json"
	speciesHistoryFile = "species_history.json"
	fitnessHistoryFile = "fitness_history.json"
)

type TopGenome struct {
	Rank    int                `json:"rank"`
	Fitness float64            `json:"fitness"`
	Genome  model.GenomeRecord `json:"genome"`
}

// PopulationArtifacts is everything exported for one stored population.
type PopulationArtifacts struct {
	Population     model.PopulationRecord  `json:"population"`
	TopGenomes     []TopGenome             `json:"top_genomes"`
	SpeciesHistory []model.SpeciesSnapshot `json:"species_history"`
	FitnessHistory []float64               `json:"fitness_history"`
}

// RankGenomes orders genomes by descending fitness, ties by id, and keeps
// at most limit of them (all when limit <= 0).
func RankGenomes(genomes []model.GenomeRecord, limit int) []TopGenome {
	sorted := append([]model.GenomeRecord(nil), genomes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Fitness == sorted[j].Fitness {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Fitness > sorted[j].Fitness
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]TopGenome, 0, len(sorted))
	for i, g := range sorted {
		out = append(out, TopGenome{Rank: i + 1, Fitness: g.Fitness, Genome: g})
	}
	return out
}

// WritePopulationArtifacts writes one JSON file per artifact under
// baseDir/<population id> and returns that directory.
func WritePopulationArtifacts(baseDir string, artifacts PopulationArtifacts) (string, error) {
	if artifacts.Population.ID == "" {
		return "", fmt.Errorf("population id is required")
	}

	dir := filepath.Join(baseDir, filepath.Base(artifacts.Population.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(dir, populationFile), artifacts.Population); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, topGenomesFile), artifacts.TopGenomes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, speciesHistoryFile), artifacts.SpeciesHistory); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, fitnessHistoryFile), artifacts.FitnessHistory); err != nil {
		return "", err
	}
	return dir, nil
}

// ReadPopulationArtifacts loads a directory written by
// WritePopulationArtifacts.
func ReadPopulationArtifacts(dir string) (PopulationArtifacts, error) {
	var artifacts PopulationArtifacts
	if err := readJSON(filepath.Join(dir, populationFile), &artifacts.Population); err != nil {
		return PopulationArtifacts{}, err
	}
	if err := readJSON(filepath.Join(dir, topGenomesFile), &artifacts.TopGenomes); err != nil {
		return PopulationArtifacts{}, err
	}
	if err := readJSON(filepath.Join(dir, speciesHistoryFile), &artifacts.SpeciesHistory); err != nil {
		return PopulationArtifacts{}, err
	}
	if err := readJSON(filepath.Join(dir, fitnessHistoryFile), &artifacts.FitnessHistory); err != nil {
		return PopulationArtifacts{}, err
	}
	return artifacts, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
