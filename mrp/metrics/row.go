// Package metrics records machine-level state of a machine reassignment run into
// append-only CSV logs for offline analysis.
// This package has no dependencies on mrp/; it consumes the problem and solution
// only through the Problem and Solution interfaces below.
package metrics

import (
	"fmt"
	"strconv"
)

// Problem is the query surface of a problem instance consumed by the recorder.
type Problem interface {
	NumMachines() int
	NumResources() int
	Capacity(machine, resource int) int64
	CheckCapacityConstraint(sol Solution, machine int) bool
	CheckTransientUsageConstraint(sol Solution, machine int) bool
}

// Solution is the query surface of an assignment consumed by the recorder.
type Solution interface {
	Problem() Problem
	ResourceUsage(machine, resource int) int64
	TransientUsage(machine, resource int) int64
	ProcessCount(machine int) int
}

// machineLogColumns is the fixed header of the machine metrics log.
var machineLogColumns = []string{
	"SnapshotId", "Timestamp", "SolutionId", "MachineId",
	"TotalResourceUsage", "TotalCapacity", "TotalTransientUsage",
	"ProcessCount", "LoadCostContribution", "BalanceCostContribution",
	"CapacityUtilizationPercent", "IsFeasible",
}

// MachineLogColumns returns a copy of the machine metrics log header.
func MachineLogColumns() []string {
	return append([]string(nil), machineLogColumns...)
}

// MachineRow is one machine's aggregate state within one snapshot.
type MachineRow struct {
	SnapshotID          int64
	TimestampMs         int64
	SolutionID          int64
	MachineID           int
	TotalResourceUsage  int64
	TotalCapacity       int64
	TotalTransientUsage int64
	ProcessCount        int
	// Cost contributions are placeholders; they are always written as 0.
	LoadCostContribution    int64
	BalanceCostContribution int64
	UtilizationPercent      float64
	IsFeasible              bool
}

// Utilization returns usage/capacity*100, or 0 when capacity is 0.
func Utilization(usage, capacity int64) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(usage) / float64(capacity) * 100.0
}

// BuildMachineRow aggregates machine m of sol across all resource dimensions.
// Snapshot id, timestamp and solution id are stamped by the caller.
func BuildMachineRow(sol Solution, m int) MachineRow {
	p := sol.Problem()
	row := MachineRow{MachineID: m, ProcessCount: sol.ProcessCount(m)}
	for r := 0; r < p.NumResources(); r++ {
		row.TotalResourceUsage += sol.ResourceUsage(m, r)
		row.TotalCapacity += p.Capacity(m, r)
		row.TotalTransientUsage += sol.TransientUsage(m, r)
	}
	row.UtilizationPercent = Utilization(row.TotalResourceUsage, row.TotalCapacity)
	row.IsFeasible = p.CheckCapacityConstraint(sol, m) && p.CheckTransientUsageConstraint(sol, m)
	return row
}

// Fields encodes the row in header order. Utilization uses exactly two decimals.
func (r MachineRow) Fields() []string {
	return []string{
		strconv.FormatInt(r.SnapshotID, 10),
		strconv.FormatInt(r.TimestampMs, 10),
		strconv.FormatInt(r.SolutionID, 10),
		strconv.Itoa(r.MachineID),
		strconv.FormatInt(r.TotalResourceUsage, 10),
		strconv.FormatInt(r.TotalCapacity, 10),
		strconv.FormatInt(r.TotalTransientUsage, 10),
		strconv.Itoa(r.ProcessCount),
		"0",
		"0",
		strconv.FormatFloat(r.UtilizationPercent, 'f', 2, 64),
		strconv.FormatBool(r.IsFeasible),
	}
}

// ParseMachineRow decodes one data line of a machine metrics log.
func ParseMachineRow(fields []string) (MachineRow, error) {
	var row MachineRow
	if len(fields) != len(machineLogColumns) {
		return row, fmt.Errorf("machine row has %d columns, expected %d", len(fields), len(machineLogColumns))
	}
	ints := []*int64{
		&row.SnapshotID, &row.TimestampMs, &row.SolutionID, nil,
		&row.TotalResourceUsage, &row.TotalCapacity, &row.TotalTransientUsage, nil,
		&row.LoadCostContribution, &row.BalanceCostContribution,
	}
	for i, dst := range ints {
		if dst == nil {
			continue
		}
		v, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return row, fmt.Errorf("parsing %s: %w", machineLogColumns[i], err)
		}
		*dst = v
	}
	var err error
	if row.MachineID, err = strconv.Atoi(fields[3]); err != nil {
		return row, fmt.Errorf("parsing MachineId: %w", err)
	}
	if row.ProcessCount, err = strconv.Atoi(fields[7]); err != nil {
		return row, fmt.Errorf("parsing ProcessCount: %w", err)
	}
	if row.UtilizationPercent, err = strconv.ParseFloat(fields[10], 64); err != nil {
		return row, fmt.Errorf("parsing CapacityUtilizationPercent: %w", err)
	}
	if row.IsFeasible, err = strconv.ParseBool(fields[11]); err != nil {
		return row, fmt.Errorf("parsing IsFeasible: %w", err)
	}
	return row, nil
}
