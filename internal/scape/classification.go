package scape

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

const (
	DefaultPointCount  = 200
	DefaultMaxValue    = 5.0
	DefaultInnerRadius = 2.0

	// A point counts as classified when |label-output| is at most this.
	classificationTolerance = 0.5
)

// Shape names a generated two-class point layout.
type Shape uint8

const (
	// Gaussian puts class 0 in the third quadrant and class 1 in the first.
	Gaussian Shape = iota
	// Circular labels points inside InnerRadius 0 and the rest 1.
	Circular
	// XORQuadrants labels a point 1 when x and y have different signs.
	XORQuadrants
)

func (s Shape) String() string {
	switch s {
	case Gaussian:
		return "gaussian"
	case Circular:
		return "circular"
	case XORQuadrants:
		return "xor-points"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

func parseShape(name string) (Shape, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gaussian":
		return Gaussian, true
	case "circular", "circle":
		return Circular, true
	case "xor-points", "xor_points":
		return XORQuadrants, true
	default:
		return 0, false
	}
}

type Point struct {
	X, Y  float64
	Label float64
}

// GaussianPoints draws size points within [-maxValue, maxValue]^2, each
// class with probability one half.
func GaussianPoints(rng *rand.Rand, size int, maxValue float64) []Point {
	points := make([]Point, 0, size)
	for i := 0; i < size; i++ {
		if rng.Float64() < 0.5 {
			points = append(points, Point{X: -rng.Float64() * maxValue, Y: -rng.Float64() * maxValue, Label: 0})
			continue
		}
		points = append(points, Point{X: rng.Float64() * maxValue, Y: rng.Float64() * maxValue, Label: 1})
	}
	return points
}

func CircularPoints(rng *rand.Rand, size int, innerRadius, maxValue float64) []Point {
	points := make([]Point, 0, size)
	for i := 0; i < size; i++ {
		x, y := signedUniform(rng, maxValue), signedUniform(rng, maxValue)
		label := 0.0
		if math.Hypot(x, y) >= innerRadius {
			label = 1
		}
		points = append(points, Point{X: x, Y: y, Label: label})
	}
	return points
}

func XORPoints(rng *rand.Rand, size int, maxValue float64) []Point {
	points := make([]Point, 0, size)
	for i := 0; i < size; i++ {
		x, y := signedUniform(rng, maxValue), signedUniform(rng, maxValue)
		label := 0.0
		if (x < 0) != (y < 0) {
			label = 1
		}
		points = append(points, Point{X: x, Y: y, Label: label})
	}
	return points
}

// signedUniform picks a half-axis by coin flip, then a magnitude in it.
func signedUniform(rng *rand.Rand, maxValue float64) float64 {
	if rng.Float64() < 0.5 {
		return -rng.Float64() * maxValue
	}
	return rng.Float64() * maxValue
}

// ClassificationScape scores a two-input network by the fraction of points
// whose first output lies within 0.5 of the label.
type ClassificationScape struct {
	Shape  Shape
	Points []Point
}

func NewClassificationScape(shape Shape, size int, seed int64) ClassificationScape {
	rng := rand.New(rand.NewSource(seed))
	var points []Point
	switch shape {
	case Circular:
		points = CircularPoints(rng, size, DefaultInnerRadius, DefaultMaxValue)
	case XORQuadrants:
		points = XORPoints(rng, size, DefaultMaxValue)
	default:
		points = GaussianPoints(rng, size, DefaultMaxValue)
	}
	return ClassificationScape{Shape: shape, Points: points}
}

func (s ClassificationScape) Name() string {
	return s.Shape.String()
}

func (s ClassificationScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	if len(s.Points) == 0 {
		return 0, Trace{"points": 0, "correct": 0, "shape": s.Shape.String()}, nil
	}

	correct := 0
	for _, p := range s.Points {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		out, err := agent.RunStep(ctx, []float64{p.X, p.Y})
		if err != nil {
			return 0, nil, err
		}
		if len(out) == 0 {
			return 0, nil, fmt.Errorf("%s requires at least one output", s.Name())
		}
		if math.Abs(p.Label-out[0]) <= classificationTolerance {
			correct++
		}
	}
	return Fitness(float64(correct) / float64(len(s.Points))), Trace{
		"points":  len(s.Points),
		"correct": correct,
		"shape":   s.Shape.String(),
	}, nil
}
