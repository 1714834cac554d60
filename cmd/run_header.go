package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunHeader captures metadata for one search run, written as YAML next to the
// CSV logs so offline analysis can tell runs apart.
type RunHeader struct {
	RunID          string `yaml:"run_id"`
	CreatedAt      string `yaml:"created_at"`
	Problem        string `yaml:"problem"`
	ProblemName    string `yaml:"problem_name,omitempty"`
	Machines       int    `yaml:"machines"`
	Resources      int    `yaml:"resources"`
	Processes      int    `yaml:"processes"`
	Seed           int64  `yaml:"seed"`
	Workers        int    `yaml:"workers"`
	Iterations     int    `yaml:"iterations"`
	SnapshotEvery  int    `yaml:"snapshot_every"`
	MachineLogPath string `yaml:"machine_log"`
	MoveLogPath    string `yaml:"move_log,omitempty"`

	Result *RunResult `yaml:"result,omitempty"`
}

// RunResult summarizes the search outcome in the run header.
type RunResult struct {
	InitialCost int64 `yaml:"initial_cost"`
	BestCost    int64 `yaml:"best_cost"`
	Accepted    int64 `yaml:"accepted_moves"`
	Solutions   int64 `yaml:"solutions"`
}

// newRunHeader stamps a fresh run id and creation time.
func newRunHeader(now time.Time) *RunHeader {
	return &RunHeader{
		RunID:     uuid.NewString(),
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

// WriteRunHeader marshals h to path.
func WriteRunHeader(h *RunHeader, path string) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling run header: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run header: %w", err)
	}
	return nil
}

// LoadRunHeader reads a run header written by WriteRunHeader.
func LoadRunHeader(path string) (*RunHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run header: %w", err)
	}
	var h RunHeader
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing run header: %w", err)
	}
	return &h, nil
}
