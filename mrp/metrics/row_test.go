package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilization(t *testing.T) {
	tests := []struct {
		name     string
		usage    int64
		capacity int64
		want     string
	}{
		{"zero capacity", 0, 0, "0.00"},
		{"zero capacity with usage", 5, 0, "0.00"},
		{"rounds up", 7, 15, "46.67"},
		{"rounds down", 1, 3, "33.33"},
		{"full", 10, 10, "100.00"},
		{"overcommitted", 15, 10, "150.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := MachineRow{UtilizationPercent: Utilization(tt.usage, tt.capacity)}
			assert.Equal(t, tt.want, row.Fields()[10])
		})
	}
}

func TestBuildMachineRow_SumsAcrossResources(t *testing.T) {
	sol := twoMachineSolution()

	row := BuildMachineRow(sol, 0)

	assert.Equal(t, int64(7), row.TotalResourceUsage)
	assert.Equal(t, int64(15), row.TotalCapacity)
	assert.Equal(t, int64(2), row.TotalTransientUsage)
	assert.Equal(t, 2, row.ProcessCount)
	assert.True(t, row.IsFeasible)
	assert.InDelta(t, 46.6667, row.UtilizationPercent, 1e-3)
}

func TestMachineRow_Fields_CostColumnsAlwaysZero(t *testing.T) {
	row := MachineRow{LoadCostContribution: 99, BalanceCostContribution: 12}
	fields := row.Fields()
	require.Len(t, fields, len(MachineLogColumns()))
	assert.Equal(t, "0", fields[8])
	assert.Equal(t, "0", fields[9])
}

func TestParseMachineRow_ReadsWrittenRow(t *testing.T) {
	line := "3,1700000000000,12,4,70,150,5,9,0,0,46.67,false"

	row, err := ParseMachineRow(strings.Split(line, ","))

	require.NoError(t, err)
	assert.Equal(t, int64(3), row.SnapshotID)
	assert.Equal(t, int64(12), row.SolutionID)
	assert.Equal(t, 4, row.MachineID)
	assert.Equal(t, 9, row.ProcessCount)
	assert.Equal(t, 46.67, row.UtilizationPercent)
	assert.False(t, row.IsFeasible)
	assert.Equal(t, line, strings.Join(row.Fields(), ","))
}

func TestParseMachineRow_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few columns", "1,2,3"},
		{"bad snapshot id", "x,1,1,0,0,0,0,0,0,0,0.00,true"},
		{"bad machine id", "1,1,1,m,0,0,0,0,0,0,0.00,true"},
		{"bad utilization", "1,1,1,0,0,0,0,0,0,0,abc,true"},
		{"bad flag", "1,1,1,0,0,0,0,0,0,0,0.00,yes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMachineRow(strings.Split(tt.line, ","))
			assert.Error(t, err)
		})
	}
}

func TestMachineLogColumns_ReturnsCopy(t *testing.T) {
	cols := MachineLogColumns()
	cols[0] = "changed"
	assert.Equal(t, "SnapshotId", MachineLogColumns()[0])
	assert.Len(t, cols, 12)
}
