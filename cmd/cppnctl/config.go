package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cppnevo/internal/evo"
	"cppnevo/internal/storage"
)

// Config holds experiment defaults. Values from a -config file replace the
// built-in defaults and explicit flags replace both.
type Config struct {
	Store            string           `yaml:"store" json:"store"`
	DBPath           string           `yaml:"db_path" json:"db_path"`
	Workers          int              `yaml:"workers" json:"workers"`
	Seed             int64            `yaml:"seed" json:"seed"`
	Population       int              `yaml:"population" json:"population"`
	Inputs           int              `yaml:"inputs" json:"inputs"`
	Outputs          int              `yaml:"outputs" json:"outputs"`
	OutputActivation string           `yaml:"output_activation" json:"output_activation"`
	Scape            string           `yaml:"scape" json:"scape"`
	Threshold        float64          `yaml:"threshold" json:"threshold"`
	Alpha            float64          `yaml:"alpha" json:"alpha"`
	TargetSpecies    int              `yaml:"target_species" json:"target_species"`
	Coefficients     evo.Coefficients `yaml:"coefficients" json:"coefficients"`
	Mutation         MutationConfig   `yaml:"mutation" json:"mutation"`
	LogLevel         string           `yaml:"log_level" json:"log_level"`
}

// MutationConfig holds the per-genome probability of each operator.
type MutationConfig struct {
	Weights    float64 `yaml:"weights" json:"weights"`
	Node       float64 `yaml:"node" json:"node"`
	Connection float64 `yaml:"connection" json:"connection"`
	Activation float64 `yaml:"activation" json:"activation"`
	Toggle     float64 `yaml:"toggle" json:"toggle"`
}

func DefaultConfig() Config {
	return Config{
		Store:            storage.DefaultStoreKind,
		DBPath:           "cppnevo.db",
		Workers:          4,
		Seed:             1,
		Population:       150,
		Inputs:           2,
		Outputs:          1,
		OutputActivation: "sigmoid",
		Scape:            "xor",
		Threshold:        3.0,
		Alpha:            1.0,
		TargetSpecies:    evo.DefaultTargetSpecies,
		Coefficients:     evo.DefaultCoefficients(),
		Mutation: MutationConfig{
			Weights:    0.2,
			Node:       0.02,
			Connection: 0.1,
			Activation: 0.05,
			Toggle:     0.05,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads YAML, or JSON when the file ends in .json, over the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return errors.New("threshold must be > 0")
	}
	if c.Alpha <= 0 {
		return errors.New("alpha must be > 0")
	}
	if c.Population <= 0 {
		return errors.New("population must be > 0")
	}
	if c.Inputs <= 0 || c.Outputs <= 0 {
		return errors.New("inputs and outputs must be > 0")
	}
	for name, p := range map[string]float64{
		"weights":    c.Mutation.Weights,
		"node":       c.Mutation.Node,
		"connection": c.Mutation.Connection,
		"activation": c.Mutation.Activation,
		"toggle":     c.Mutation.Toggle,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("mutation probability %s must be in [0,1], got %v", name, p)
		}
	}
	return nil
}

// ProbabilityFor maps an operator name to its configured probability.
func (c Config) ProbabilityFor(operator string) (float64, bool) {
	switch operator {
	case evo.WeightMutation{}.Name():
		return c.Mutation.Weights, true
	case evo.AddNodeMutation{}.Name():
		return c.Mutation.Node, true
	case evo.AddConnectionMutation{}.Name():
		return c.Mutation.Connection, true
	case evo.ActivationMutation{}.Name():
		return c.Mutation.Activation, true
	case evo.ToggleConnectionMutation{}.Name():
		return c.Mutation.Toggle, true
	default:
		return 0, false
	}
}

// configPathFromArgs finds -config before flag parsing so the file can
// supply the flag defaults.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if value, ok := strings.CutPrefix(name, "config="); ok {
			return value
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func loadOrDefaultConfig(args []string) (Config, string, error) {
	path := configPathFromArgs(args)
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}
