package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrp-lab/reassign/mrp"
)

// ProblemFile is the YAML layout of a problem instance.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ProblemFile struct {
	Name      string         `yaml:"name"`
	Resources []ResourceSpec `yaml:"resources"`
	Machines  []MachineSpec  `yaml:"machines"`
	Processes []ProcessSpec  `yaml:"processes"`
}

type ResourceSpec struct {
	Name           string `yaml:"name"`
	Transient      bool   `yaml:"transient"`
	LoadCostWeight int64  `yaml:"load_cost_weight"`
}

type MachineSpec struct {
	Capacities       []int64 `yaml:"capacities"`
	SafetyCapacities []int64 `yaml:"safety_capacities,omitempty"`
}

type ProcessSpec struct {
	Requirements []int64 `yaml:"requirements"`
	MoveCost     int64   `yaml:"move_cost"`
	Machine      int     `yaml:"machine"` // initial assignment
}

// decodeProblemFile parses YAML with strict field checking (typos must cause errors).
func decodeProblemFile(data []byte) (*ProblemFile, error) {
	var pf ProblemFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parsing problem YAML: %w", err)
	}
	return &pf, nil
}

// Build converts the file into a validated mrp.Problem.
func (pf *ProblemFile) Build() (*mrp.Problem, error) {
	resources := make([]mrp.Resource, len(pf.Resources))
	for i, r := range pf.Resources {
		resources[i] = mrp.Resource{Name: r.Name, Transient: r.Transient, LoadCostWeight: r.LoadCostWeight}
	}
	machines := make([]mrp.Machine, len(pf.Machines))
	for i, m := range pf.Machines {
		machines[i] = mrp.Machine{Capacities: m.Capacities, SafetyCapacities: m.SafetyCapacities}
	}
	processes := make([]mrp.Process, len(pf.Processes))
	initial := make([]int, len(pf.Processes))
	for i, p := range pf.Processes {
		processes[i] = mrp.Process{Requirements: p.Requirements, MoveCost: p.MoveCost}
		initial[i] = p.Machine
	}
	return mrp.NewProblem(resources, machines, processes, initial)
}

// LoadProblem reads and validates a problem instance file.
func LoadProblem(path string) (*mrp.Problem, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading problem file: %w", err)
	}
	pf, err := decodeProblemFile(data)
	if err != nil {
		return nil, "", err
	}
	p, err := pf.Build()
	if err != nil {
		return nil, "", fmt.Errorf("invalid problem %s: %w", path, err)
	}
	return p, pf.Name, nil
}
