package genotype

import (
	"fmt"
	"math"

	"cppnevo/internal/model"
	"cppnevo/internal/nn"
	"cppnevo/internal/storage"
)

// ToRecord converts g into its persisted form. Inputs counts regular inputs
// only; the bias node is implied.
func ToRecord(g *Genome) model.GenomeRecord {
	rec := model.GenomeRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:          g.ID,
		Inputs:      g.InputWidth(),
		Outputs:     g.numOutputs,
		Fitness:     g.Fitness,
		SpeciesID:   g.SpeciesID,
		Nodes:       make([]model.NodeRecord, 0, len(g.nodes)),
		Connections: make([]model.ConnectionRecord, 0, len(g.connections)),
	}
	for _, n := range g.nodes {
		layer := n.Layer
		if n.Role == RoleOutput {
			layer = 0
		}
		rec.Nodes = append(rec.Nodes, model.NodeRecord{
			ID:         n.ID,
			Role:       n.Role.String(),
			Activation: n.Activation.String(),
			Layer:      layer,
		})
	}
	for _, c := range g.connections {
		rec.Connections = append(rec.Connections, model.ConnectionRecord{
			Source:     c.Source,
			Target:     c.Target,
			Weight:     c.Weight,
			Enabled:    c.Enabled,
			Innovation: c.Innovation,
		})
	}
	return rec
}

// FromRecord rebuilds a genome and validates it.
func FromRecord(rec model.GenomeRecord) (*Genome, error) {
	if rec.Inputs < 0 || rec.Outputs <= 0 {
		return nil, fmt.Errorf("%w: record %s has inputs=%d outputs=%d", ErrInvalidGenome, rec.ID, rec.Inputs, rec.Outputs)
	}
	g := &Genome{
		ID:          rec.ID,
		Fitness:     rec.Fitness,
		SpeciesID:   rec.SpeciesID,
		numInputs:   rec.Inputs + 1,
		numOutputs:  rec.Outputs,
		nodes:       make([]Node, 0, len(rec.Nodes)),
		connections: make([]Connection, 0, len(rec.Connections)),
	}
	for _, n := range rec.Nodes {
		role, err := parseRole(n.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: record %s node %d: %v", ErrInvalidGenome, rec.ID, n.ID, err)
		}
		activation, err := nn.ParseActivation(n.Activation)
		if err != nil {
			return nil, fmt.Errorf("%w: record %s node %d: %v", ErrInvalidGenome, rec.ID, n.ID, err)
		}
		layer := n.Layer
		if role == RoleOutput {
			layer = math.Inf(1)
		}
		g.nodes = append(g.nodes, Node{ID: n.ID, Role: role, Activation: activation, Layer: layer})
	}
	for _, c := range rec.Connections {
		g.connections = append(g.connections, Connection{
			Source:     c.Source,
			Target:     c.Target,
			Weight:     c.Weight,
			Enabled:    c.Enabled,
			Innovation: c.Innovation,
		})
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return g, nil
}

func parseRole(name string) (Role, error) {
	switch name {
	case model.RoleInput:
		return RoleInput, nil
	case model.RoleBias:
		return RoleBias, nil
	case model.RoleHidden:
		return RoleHidden, nil
	case model.RoleOutput:
		return RoleOutput, nil
	default:
		return 0, fmt.Errorf("unknown role %q", name)
	}
}
