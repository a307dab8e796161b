package genotype

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"cppnevo/internal/nn"
)

// Unassigned is the SpeciesID of a genome that has not been speciated.
const Unassigned = -1

// LayerCeiling stands in for an output node's +Inf layer when a midpoint
// has to be computed.
const LayerCeiling = float64(math.MaxInt64)

var (
	ErrShapeMismatch   = errors.New("input shape mismatch")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateGene   = errors.New("enabled gene already exists")
	ErrInvalidGenome   = errors.New("invalid genome")
	ErrCycle           = errors.New("genome graph contains a cycle")
)

type Role uint8

const (
	RoleInput Role = iota
	RoleBias
	RoleHidden
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleBias:
		return "bias"
	case RoleHidden:
		return "hidden"
	case RoleOutput:
		return "output"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Node is a computational unit. Layer is a dense topological coordinate:
// 0 for inputs and bias, +Inf for outputs, a midpoint for hidden nodes.
type Node struct {
	ID         int
	Role       Role
	Activation nn.Activation
	Layer      float64
}

// Connection is a weighted edge between two nodes of the same genome,
// referenced by arena index.
type Connection struct {
	Source     int
	Target     int
	Weight     float64
	Enabled    bool
	Innovation uint64
}

// SameGene reports gene identity for deduplication: endpoints and enabled
// state, regardless of weight or innovation number.
func (c Connection) SameGene(other Connection) bool {
	return c.Source == other.Source && c.Target == other.Target && c.Enabled == other.Enabled
}

// Genome owns every node and connection of one individual. Nodes are never
// removed, so a node's ID is also its index.
//
// A Genome is not safe for concurrent use; distinct genomes may be evaluated
// in parallel.
type Genome struct {
	ID        string
	Fitness   float64
	SpeciesID int

	numInputs   int
	numOutputs  int
	nodes       []Node
	connections []Connection

	order  []int
	sorted bool
}

type options struct {
	outputActivation nn.Activation
}

type Option func(*options)

// WithOutputActivation fixes the activation of every output node.
func WithOutputActivation(a nn.Activation) Option {
	return func(o *options) {
		o.outputActivation = a
	}
}

// New builds a fully connected genome. inputs excludes the bias node, which
// is added after the regular inputs. Every input (bias included) connects to
// every output with innovation numbers 0..(inputs+1)*outputs-1.
func New(inputs, outputs int, rng *rand.Rand, opts ...Option) (*Genome, error) {
	if inputs < 0 {
		return nil, fmt.Errorf("inputs must be >= 0, got %d", inputs)
	}
	if outputs <= 0 {
		return nil, fmt.Errorf("outputs must be > 0, got %d", outputs)
	}
	rng = ensureRNG(rng)
	cfg := options{outputActivation: nn.Sigmoid}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.outputActivation.Valid() {
		return nil, fmt.Errorf("%w: %d", nn.ErrUnknownActivation, cfg.outputActivation)
	}

	numInputs := inputs + 1
	g := &Genome{
		ID:          uuid.NewString(),
		SpeciesID:   Unassigned,
		numInputs:   numInputs,
		numOutputs:  outputs,
		nodes:       make([]Node, 0, numInputs+outputs),
		connections: make([]Connection, 0, numInputs*outputs),
		sorted:      false,
	}
	for i := 0; i < numInputs; i++ {
		role := RoleInput
		if i == numInputs-1 {
			role = RoleBias
		}
		g.nodes = append(g.nodes, Node{ID: i, Role: role, Activation: nn.RandomActivation(rng), Layer: 0})
	}
	for i := 0; i < outputs; i++ {
		id := numInputs + i
		g.nodes = append(g.nodes, Node{ID: id, Role: RoleOutput, Activation: cfg.outputActivation, Layer: math.Inf(1)})
	}

	spread := 1 / float64(numInputs)
	var innovation uint64
	for x := 0; x < numInputs; x++ {
		for y := 0; y < outputs; y++ {
			g.connections = append(g.connections, Connection{
				Source:     x,
				Target:     numInputs + y,
				Weight:     rng.NormFloat64() * spread,
				Enabled:    true,
				Innovation: innovation,
			})
			innovation++
		}
	}
	return g, nil
}

// Clone returns a deep copy sharing no mutable state with g.
func (g *Genome) Clone() *Genome {
	out := *g
	out.nodes = append([]Node(nil), g.nodes...)
	out.connections = append([]Connection(nil), g.connections...)
	out.order = append([]int(nil), g.order...)
	return &out
}

// NumInputs counts input nodes including the bias node.
func (g *Genome) NumInputs() int { return g.numInputs }

// InputWidth is the number of values Evaluate expects (bias excluded).
func (g *Genome) InputWidth() int { return g.numInputs - 1 }

func (g *Genome) NumOutputs() int { return g.numOutputs }

func (g *Genome) NodeCount() int { return len(g.nodes) }

func (g *Genome) ConnectionCount() int { return len(g.connections) }

// HiddenCount is the number of nodes added by node mutations.
func (g *Genome) HiddenCount() int { return len(g.nodes) - g.numInputs - g.numOutputs }

// BiasIndex is the arena index of the bias node.
func (g *Genome) BiasIndex() int { return g.numInputs - 1 }

func (g *Genome) Node(i int) (Node, error) {
	if i < 0 || i >= len(g.nodes) {
		return Node{}, fmt.Errorf("%w: node %d", ErrIndexOutOfRange, i)
	}
	return g.nodes[i], nil
}

func (g *Genome) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

func (g *Genome) Connection(i int) (Connection, error) {
	if i < 0 || i >= len(g.connections) {
		return Connection{}, fmt.Errorf("%w: connection %d", ErrIndexOutOfRange, i)
	}
	return g.connections[i], nil
}

func (g *Genome) Connections() []Connection {
	return append([]Connection(nil), g.connections...)
}

func (g *Genome) SetWeight(i int, weight float64) error {
	if i < 0 || i >= len(g.connections) {
		return fmt.Errorf("%w: connection %d", ErrIndexOutOfRange, i)
	}
	g.connections[i].Weight = weight
	return nil
}

// SetEnabled toggles a connection. Enabling fails with ErrDuplicateGene when
// an enabled connection between the same endpoints already exists.
func (g *Genome) SetEnabled(i int, enabled bool) error {
	if i < 0 || i >= len(g.connections) {
		return fmt.Errorf("%w: connection %d", ErrIndexOutOfRange, i)
	}
	c := g.connections[i]
	if c.Enabled == enabled {
		return nil
	}
	if enabled && g.hasEnabledGene(c.Source, c.Target) {
		return fmt.Errorf("%w: %d->%d", ErrDuplicateGene, c.Source, c.Target)
	}
	g.connections[i].Enabled = enabled
	return nil
}

// NeedsSort reports whether the connection set changed since the last
// evaluation, so the next Evaluate will re-sort.
func (g *Genome) NeedsSort() bool { return !g.sorted }

// TotalWeight sums the weights of all connections.
func (g *Genome) TotalWeight() float64 {
	total := 0.0
	for _, c := range g.connections {
		total += c.Weight
	}
	return total
}

// InnovationRange returns the smallest and largest innovation numbers. ok is
// false for a genome without connections.
func (g *Genome) InnovationRange() (lo, hi uint64, ok bool) {
	if len(g.connections) == 0 {
		return 0, 0, false
	}
	lo, hi = g.connections[0].Innovation, g.connections[0].Innovation
	for _, c := range g.connections[1:] {
		if c.Innovation < lo {
			lo = c.Innovation
		}
		if c.Innovation > hi {
			hi = c.Innovation
		}
	}
	return lo, hi, true
}

func (g *Genome) hasEnabledGene(source, target int) bool {
	candidate := Connection{Source: source, Target: target, Enabled: true}
	for _, c := range g.connections {
		if c.SameGene(candidate) {
			return true
		}
	}
	return false
}

func (g *Genome) hasInnovation(innovation uint64) bool {
	for _, c := range g.connections {
		if c.Innovation == innovation {
			return true
		}
	}
	return false
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(1))
}
