package genotype

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Variant selects how matching genes reconcile their weights.
type Variant uint8

const (
	// Substitute copies the mate's weight into the child.
	Substitute Variant = iota
	// Exchange swaps weights between the child and a copy of the mate.
	Exchange
	// Average sets the child's weight to the mean of both parents.
	Average
)

const (
	SwapProbability    = 0.25
	AverageProbability = 0.5
)

func (v Variant) String() string {
	switch v {
	case Substitute:
		return "substitute"
	case Exchange:
		return "exchange"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "substitute":
		return Substitute, nil
	case "exchange":
		return Exchange, nil
	case "average":
		return Average, nil
	default:
		return 0, fmt.Errorf("unknown crossover variant: %s", name)
	}
}

func (v Variant) probability() float64 {
	if v == Average {
		return AverageProbability
	}
	return SwapProbability
}

// Offspring is the result of one crossover. Child is built on the structure
// of Fitter. Mate is only set for Exchange and carries the other parent's
// structure with the swapped weights.
type Offspring struct {
	Child  *Genome
	Fitter *Genome
	Mate   *Genome
}

// Crossover takes the structure of the fitter parent (b on ties) and, for each
// gene whose innovation also appears in the other parent, reconciles weights
// per variant with the variant's probability. Disjoint and excess genes come
// from the fitter parent only. Parents are not modified.
func Crossover(a, b *Genome, rng *rand.Rand, variant Variant) Offspring {
	rng = ensureRNG(rng)
	fitter, other := b, a
	if a.Fitness > b.Fitness {
		fitter, other = a, b
	}

	child := fitter.Clone()
	mate := other.Clone()
	mateIndex := make(map[uint64]int, len(mate.connections))
	for i, c := range mate.connections {
		mateIndex[c.Innovation] = i
	}

	p := variant.probability()
	for i := range child.connections {
		j, ok := mateIndex[child.connections[i].Innovation]
		if !ok {
			continue
		}
		if rng.Float64() >= p {
			continue
		}
		cw, mw := child.connections[i].Weight, mate.connections[j].Weight
		switch variant {
		case Substitute:
			child.connections[i].Weight = mw
		case Exchange:
			child.connections[i].Weight = mw
			mate.connections[j].Weight = cw
		case Average:
			child.connections[i].Weight = (cw + mw) / 2
		}
	}

	out := Offspring{Child: resetOffspring(child), Fitter: fitter.Clone()}
	if variant == Exchange {
		out.Mate = resetOffspring(mate)
	}
	return out
}

func resetOffspring(g *Genome) *Genome {
	g.ID = uuid.NewString()
	g.Fitness = 0
	g.SpeciesID = Unassigned
	return g
}
