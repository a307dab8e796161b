package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Node roles as persisted.
const (
	RoleInput  = "input"
	RoleBias   = "bias"
	RoleHidden = "hidden"
	RoleOutput = "output"
)

type GenomeRecord struct {
	VersionedRecord
	ID          string             `json:"id"`
	Inputs      int                `json:"inputs"`
	Outputs     int                `json:"outputs"`
	Fitness     float64            `json:"fitness"`
	SpeciesID   int                `json:"species_id"`
	Nodes       []NodeRecord       `json:"nodes"`
	Connections []ConnectionRecord `json:"connections"`
}

// NodeRecord stores one node. Output layers are implied by the role and are
// written as 0 because JSON cannot carry +Inf.
type NodeRecord struct {
	ID         int     `json:"id"`
	Role       string  `json:"role"`
	Activation string  `json:"activation"`
	Layer      float64 `json:"layer"`
}

type ConnectionRecord struct {
	Source     int     `json:"source"`
	Target     int     `json:"target"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
	Innovation uint64  `json:"innovation"`
}

type PopulationRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	GenomeIDs      []string  `json:"genome_ids"`
	Generation     int       `json:"generation"`
	Inputs         int       `json:"inputs"`
	Outputs        int       `json:"outputs"`
	NextInnovation uint64    `json:"next_innovation"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SpeciesSummary struct {
	ID               int      `json:"id"`
	Size             int      `json:"size"`
	MeanFitness      float64  `json:"mean_fitness"`
	BestFitness      float64  `json:"best_fitness"`
	RepresentativeID string   `json:"representative_id"`
	MemberIDs        []string `json:"member_ids"`
}

type SpeciesSnapshot struct {
	Generation int              `json:"generation"`
	Threshold  float64          `json:"threshold"`
	Species    []SpeciesSummary `json:"species"`
	CreatedAt  time.Time        `json:"created_at"`
}
