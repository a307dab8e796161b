package nn

import (
	"math"
	"math/rand"
)

const (
	stepThreshold        = 0.5
	sigmoidSteepness     = 4.9
	gaussianActivationSD = 1.0
)

// NoiseSource supplies standard normal samples for the gaussian activation.
// *rand.Rand satisfies it.
type NoiseSource interface {
	NormFloat64() float64
}

type globalNoise struct{}

func (globalNoise) NormFloat64() float64 { return rand.NormFloat64() }

// DefaultNoise draws from the process-global math/rand source, which is safe
// for concurrent use.
var DefaultNoise NoiseSource = globalNoise{}

func stepActivation(x float64) float64 {
	if x > stepThreshold {
		return 1
	}
	return 0
}

func sigmoidActivation(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigmoidSteepness*x))
}

func reluActivation(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// logActivation is undefined for x <= 0 and maps those inputs to 0.
func logActivation(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	return math.Log(x)
}

func squareActivation(x float64) float64 {
	return x * x
}

func gaussianActivation(x float64, noise NoiseSource) float64 {
	if noise == nil {
		noise = DefaultNoise
	}
	return x + noise.NormFloat64()*gaussianActivationSD
}
