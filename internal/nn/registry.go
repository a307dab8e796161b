package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

var ErrUnknownActivation = errors.New("unknown activation")

// Activation is the closed set of node activation kinds. The numeric values
// are stable and are what persisted genomes encode.
type Activation uint8

const (
	Step Activation = iota
	Sigmoid
	ReLU
	Sin
	Gaussian
	Log
	Tanh
	Square
	Abs

	activationCount
)

// ActivationCount is the number of activation kinds.
const ActivationCount = int(activationCount)

var activationNames = [activationCount]string{
	Step:     "step",
	Sigmoid:  "sigmoid",
	ReLU:     "relu",
	Sin:      "sin",
	Gaussian: "gaussian",
	Log:      "log",
	Tanh:     "tanh",
	Square:   "square",
	Abs:      "abs",
}

// deterministic dispatch; Gaussian is handled separately because it needs a
// noise source.
var activationTable = [activationCount]func(float64) float64{
	Step:     stepActivation,
	Sigmoid:  sigmoidActivation,
	ReLU:     reluActivation,
	Sin:      math.Sin,
	Gaussian: nil,
	Log:      logActivation,
	Tanh:     math.Tanh,
	Square:   squareActivation,
	Abs:      math.Abs,
}

func (a Activation) Valid() bool {
	return a < activationCount
}

func (a Activation) String() string {
	if !a.Valid() {
		return fmt.Sprintf("activation(%d)", uint8(a))
	}
	return activationNames[a]
}

// Deterministic reports whether the activation is a pure function of its input.
func (a Activation) Deterministic() bool {
	return a.Valid() && a != Gaussian
}

// Apply evaluates activation a at x. noise is only consulted for Gaussian;
// nil selects DefaultNoise. Invalid kinds pass x through unchanged.
func Apply(a Activation, x float64, noise NoiseSource) float64 {
	if a == Gaussian {
		return gaussianActivation(x, noise)
	}
	if !a.Valid() {
		return x
	}
	return activationTable[a](x)
}

func ParseActivation(name string) (Activation, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range activationNames {
		if candidate == normalized {
			return Activation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownActivation, name)
}

// All returns every activation kind in encoding order.
func All() []Activation {
	out := make([]Activation, 0, ActivationCount)
	for i := 0; i < ActivationCount; i++ {
		out = append(out, Activation(i))
	}
	return out
}

// ListActivations returns the activation names in encoding order.
func ListActivations() []string {
	names := make([]string, ActivationCount)
	copy(names, activationNames[:])
	return names
}

// RandomActivation draws uniformly over all kinds, including Gaussian.
func RandomActivation(rng *rand.Rand) Activation {
	return Activation(rng.Intn(ActivationCount))
}

func (a Activation) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownActivation, uint8(a))
	}
	return []byte(activationNames[a]), nil
}

func (a *Activation) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
