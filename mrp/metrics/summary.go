package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// LogSummary aggregates a machine metrics log. A log appended to by several
// recorders holds several runs; a run starts wherever snapshot ids restart.
type LogSummary struct {
	Runs                 int
	Snapshots            int
	Rows                 int
	InfeasibleRows       int
	Solutions            int // distinct solution ids, counted per run
	FirstMeanUtilization float64
	LastMeanUtilization  float64
	PeakUtilization      map[int]float64 // machine id → highest utilization seen
}

// LoadMachineLog reads every data row of a machine metrics log.
func LoadMachineLog(path string) ([]MachineRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening machine log: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) != len(machineLogColumns) {
		return nil, fmt.Errorf("CSV header has %d columns, expected %d", len(header), len(machineLogColumns))
	}

	var rows []MachineRow
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		row, err := ParseMachineRow(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Summarize computes aggregate statistics over rows in log order.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(rows []MachineRow) *LogSummary {
	summary := &LogSummary{PeakUtilization: make(map[int]float64)}
	if len(rows) == 0 {
		return summary
	}

	type runSolution struct {
		run int
		id  int64
	}
	type acc struct {
		sum float64
		n   int
	}
	solutions := make(map[runSolution]struct{})
	var first, last acc
	prevSnapshot, prevMachine := int64(0), -1
	for i, r := range rows {
		// Machine ids ascend within a snapshot, so a repeated snapshot id with a
		// lower machine id is a new snapshot of a later run.
		if i == 0 || r.SnapshotID != prevSnapshot || r.MachineID <= prevMachine {
			if i == 0 || r.SnapshotID <= prevSnapshot {
				summary.Runs++
			}
			summary.Snapshots++
			last = acc{}
		}
		prevSnapshot, prevMachine = r.SnapshotID, r.MachineID

		summary.Rows++
		if !r.IsFeasible {
			summary.InfeasibleRows++
		}
		solutions[runSolution{summary.Runs, r.SolutionID}] = struct{}{}
		if peak, ok := summary.PeakUtilization[r.MachineID]; !ok || r.UtilizationPercent > peak {
			summary.PeakUtilization[r.MachineID] = r.UtilizationPercent
		}

		last.sum += r.UtilizationPercent
		last.n++
		if summary.Snapshots == 1 {
			first.sum += r.UtilizationPercent
			first.n++
		}
	}
	summary.Solutions = len(solutions)
	summary.FirstMeanUtilization = first.sum / float64(first.n)
	summary.LastMeanUtilization = last.sum / float64(last.n)
	return summary
}

// MoveSummary aggregates one process reassignment log.
type MoveSummary struct {
	Path        string
	Moves       int
	InitialCost int64 // SolutionCost of the first move
	FinalCost   int64 // SolutionCost of the last move
	Improvement int64 // InitialCost - FinalCost
	Solutions   int   // distinct solution ids
}

// LoadMoveLog reads every data row of a process reassignment log.
func LoadMoveLog(path string) ([]MoveRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening move log: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) != len(moveLogColumns) {
		return nil, fmt.Errorf("CSV header has %d columns, expected %d", len(header), len(moveLogColumns))
	}

	var rows []MoveRow
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		row, err := ParseMoveRow(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SummarizeMoves computes totals over rows in log order. Costs stay zero for an
// empty log.
func SummarizeMoves(rows []MoveRow) *MoveSummary {
	summary := &MoveSummary{Moves: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	solutions := make(map[int64]struct{})
	for _, r := range rows {
		solutions[r.SolutionID] = struct{}{}
	}
	summary.Solutions = len(solutions)
	summary.InitialCost = rows[0].SolutionCost
	summary.FinalCost = rows[len(rows)-1].SolutionCost
	summary.Improvement = summary.InitialCost - summary.FinalCost
	return summary
}

// BestMoveSummary returns the summary with the lowest final cost among those
// with at least one move, or nil if there is none.
func BestMoveSummary(summaries []*MoveSummary) *MoveSummary {
	var best *MoveSummary
	for _, s := range summaries {
		if s == nil || s.Moves == 0 {
			continue
		}
		if best == nil || s.FinalCost < best.FinalCost {
			best = s
		}
	}
	return best
}
