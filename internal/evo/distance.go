package evo

import (
	"math"

	"cppnevo/internal/genotype"
)

// Coefficients weight the three terms of the compatibility distance.
type Coefficients struct {
	Excess   float64 `json:"excess" yaml:"excess"`
	Disjoint float64 `json:"disjoint" yaml:"disjoint"`
	Weight   float64 `json:"weight" yaml:"weight"`
}

func DefaultCoefficients() Coefficients {
	return Coefficients{Excess: 1.0, Disjoint: 1.0, Weight: 0.4}
}

// Distance measures how far a is from b:
//
//	c.Excess*excess/N + c.Disjoint*disjoint/N + c.Weight*avgWeightDiff
//
// Genes of a outside b's innovation range are excess, unmatched genes inside
// it are disjoint, and N is the larger connection count. Only a's genes are
// classified, so Distance(a, b) and Distance(b, a) may differ.
func Distance(a, b *genotype.Genome, c Coefficients) float64 {
	ac, bc := a.Connections(), b.Connections()
	n := len(ac)
	if len(bc) > n {
		n = len(bc)
	}
	if n == 0 {
		return 0
	}

	weights := make(map[uint64]float64, len(bc))
	for _, conn := range bc {
		weights[conn.Innovation] = conn.Weight
	}
	lo, hi, ok := b.InnovationRange()

	excess, disjoint, matched := 0, 0, 0
	diff := 0.0
	for _, conn := range ac {
		if !ok || conn.Innovation < lo || conn.Innovation > hi {
			excess++
			continue
		}
		w, match := weights[conn.Innovation]
		if !match {
			disjoint++
			continue
		}
		matched++
		diff += math.Abs(conn.Weight - w)
	}

	avgDiff := 0.0
	if matched > 0 {
		avgDiff = diff / float64(matched)
	}
	size := float64(n)
	return c.Excess*float64(excess)/size + c.Disjoint*float64(disjoint)/size + c.Weight*avgDiff
}

// AverageDistance is the mean of Distance(g, o) over others. It is 0 for an
// empty set.
func AverageDistance(g *genotype.Genome, others []*genotype.Genome, c Coefficients) float64 {
	distances := make([]float64, 0, len(others))
	for _, o := range others {
		distances = append(distances, Distance(g, o, c))
	}
	return Mean(distances)
}
