package evo

import "golang.org/x/exp/constraints"

type number interface {
	constraints.Integer | constraints.Float
}

func Sum[T number](values []T) T {
	var total T
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns 0 for an empty slice.
func Mean[T number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	return float64(Sum(values)) / float64(len(values))
}

func Max[T constraints.Ordered](values []T) (T, bool) {
	var best T
	if len(values) == 0 {
		return best, false
	}
	best = values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best, true
}
