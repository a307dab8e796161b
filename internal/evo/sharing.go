package evo

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"cppnevo/internal/genotype"
)

// SharingMatrix builds the population x population sharing matrix. Cell
// (i,j) is 1-(d/threshold)^alpha when d <= threshold and 0 otherwise, with d
// measured once as Distance(pop[i], pop[j]) for i < j and mirrored. The
// diagonal is 1. Rows are computed on up to workers goroutines.
func SharingMatrix(pop []*genotype.Genome, threshold, alpha float64, c Coefficients, workers int) ([][]float64, error) {
	if len(pop) == 0 {
		return nil, ErrNoGenomes
	}
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if math.IsNaN(alpha) || alpha <= 0 {
		return nil, fmt.Errorf("alpha must be > 0, got %v", alpha)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	n := len(pop)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() {
			for j := i + 1; j < n; j++ {
				matrix[i][j] = sharingValue(Distance(pop[i], pop[j], c), threshold, alpha)
			}
		})
	}
	p.Wait()

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			matrix[j][i] = matrix[i][j]
		}
	}
	return matrix, nil
}

func sharingValue(distance, threshold, alpha float64) float64 {
	if distance > threshold {
		return 0
	}
	return 1 - math.Pow(distance/threshold, alpha)
}

// NicheCounts returns each row sum of a sharing matrix. Every count is at
// least 1 because of the diagonal.
func NicheCounts(matrix [][]float64) []float64 {
	counts := make([]float64, len(matrix))
	for i, row := range matrix {
		counts[i] = Sum(row)
	}
	return counts
}

// ShareFitness divides each raw fitness by its niche count.
func ShareFitness(pop []*genotype.Genome, counts []float64) ([]float64, error) {
	if len(pop) != len(counts) {
		return nil, fmt.Errorf("niche counts length mismatch: got=%d want=%d", len(counts), len(pop))
	}
	shared := make([]float64, len(pop))
	for i, g := range pop {
		if counts[i] <= 0 {
			return nil, fmt.Errorf("niche count for genome %s must be > 0, got %v", g.ID, counts[i])
		}
		shared[i] = g.Fitness / counts[i]
	}
	return shared, nil
}

// ApplySharedFitness overwrites each genome's fitness with its shared value.
func ApplySharedFitness(pop []*genotype.Genome, counts []float64) error {
	shared, err := ShareFitness(pop, counts)
	if err != nil {
		return err
	}
	for i, g := range pop {
		g.Fitness = shared[i]
	}
	return nil
}
