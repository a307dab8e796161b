package evo

import "math"

const (
	DefaultTargetSpecies       = 5
	DefaultThresholdStep       = 0.1
	DefaultThresholdStartAfter = 30
)

// ThresholdController nudges the speciation threshold toward a target
// species count. It only acts from StartGeneration on, raises the threshold
// while the count is above target and still growing, and lowers it while the
// count is below target and not recovering.
type ThresholdController struct {
	TargetSpecies   int
	Step            float64
	StartGeneration int
	MinThreshold    float64
	MaxThreshold    float64

	lastCount int
}

func NewThresholdController() *ThresholdController {
	return &ThresholdController{
		TargetSpecies:   DefaultTargetSpecies,
		Step:            DefaultThresholdStep,
		StartGeneration: DefaultThresholdStartAfter,
		MinThreshold:    0.05,
		MaxThreshold:    math.Inf(1),
		lastCount:       -1,
	}
}

// Adjust returns the threshold to use for the next generation.
func (c *ThresholdController) Adjust(generation, speciesCount int, threshold float64) float64 {
	if generation < c.StartGeneration {
		return threshold
	}
	last := c.lastCount
	c.lastCount = speciesCount

	switch {
	case speciesCount > c.TargetSpecies && (last < 0 || speciesCount > last):
		threshold = math.Min(c.MaxThreshold, threshold+c.Step)
	case speciesCount < c.TargetSpecies && (last < 0 || speciesCount <= last):
		threshold = math.Max(c.MinThreshold, threshold-c.Step)
	}
	return threshold
}
