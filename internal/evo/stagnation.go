package evo

const (
	DefaultStagnationRatio       = 1.05
	DefaultMinStagnantGeneration = 35
)

// StagnationTracker counts, per species id, how many consecutive generations
// a species' mean fitness has failed to beat its baseline by Ratio. The
// baseline moves to the new mean whenever the species improves.
type StagnationTracker struct {
	Ratio          float64
	MinGenerations int

	baseline map[int]float64
	stagnant map[int]int
}

func NewStagnationTracker() *StagnationTracker {
	return &StagnationTracker{
		Ratio:          DefaultStagnationRatio,
		MinGenerations: DefaultMinStagnantGeneration,
		baseline:       make(map[int]float64),
		stagnant:       make(map[int]int),
	}
}

// Observe records this generation's mean fitness per species and forgets
// species that are no longer present.
func (t *StagnationTracker) Observe(species []*Species) {
	means := make(map[int]float64, len(species))
	for _, sp := range species {
		means[sp.ID] = sp.MeanFitness()
	}
	t.ObserveMeans(means)
}

// ObserveMeans is Observe over precomputed means keyed by species id, used
// when replaying stored species snapshots.
func (t *StagnationTracker) ObserveMeans(means map[int]float64) {
	for id, mean := range means {
		base, ok := t.baseline[id]
		if !ok || improved(mean, base, t.Ratio) {
			t.baseline[id] = mean
			t.stagnant[id] = 0
			continue
		}
		t.stagnant[id]++
	}
	for id := range t.baseline {
		if _, ok := means[id]; !ok {
			delete(t.baseline, id)
			delete(t.stagnant, id)
		}
	}
}

func (t *StagnationTracker) Generations(speciesID int) int {
	return t.stagnant[speciesID]
}

// Penalty is the divisor for a species' fitness: 1 until the species has
// stagnated for MinGenerations, then 2*stagnant/MinGenerations.
func (t *StagnationTracker) Penalty(speciesID int) float64 {
	stagnant := t.stagnant[speciesID]
	if t.MinGenerations <= 0 || stagnant < t.MinGenerations {
		return 1
	}
	return float64(2*stagnant) / float64(t.MinGenerations)
}

// Penalize divides member fitness of every stagnant species by its penalty
// and returns the ids of the species that were penalized.
func (t *StagnationTracker) Penalize(species []*Species) []int {
	var penalized []int
	for _, sp := range species {
		factor := t.Penalty(sp.ID)
		if factor == 1 {
			continue
		}
		for _, m := range sp.Members {
			m.Fitness /= factor
		}
		penalized = append(penalized, sp.ID)
	}
	return penalized
}

func improved(mean, base, ratio float64) bool {
	if base <= 0 {
		return mean > base
	}
	return mean/base > ratio
}
