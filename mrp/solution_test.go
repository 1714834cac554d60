package mrp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrp-lab/reassign/mrp/metrics"
)

// Solution must satisfy the recorder's query surface.
var _ metrics.Solution = (*Solution)(nil)
var _ metrics.Problem = (*Problem)(nil)

func TestNewSolution_InitialUsage(t *testing.T) {
	p := newTestProblem(t)
	sol := NewSolution(p)

	assert.Equal(t, int64(8), sol.ResourceUsage(0, 0))
	assert.Equal(t, int64(3), sol.ResourceUsage(1, 1))
	assert.Equal(t, int64(0), sol.ResourceUsage(2, 0))
	assert.Equal(t, 2, sol.ProcessCount(0))
	assert.Equal(t, 1, sol.ProcessCount(1))
	assert.Equal(t, 0, sol.ProcessCount(2))
	assert.Equal(t, int64(0), sol.TransientUsage(0, 1))
}

func TestSolution_Move_TracksTransientOnlyForTransientResources(t *testing.T) {
	p := newTestProblem(t)
	sol := NewSolution(p)

	prev := sol.Move(0, 2)

	assert.Equal(t, 0, prev)
	assert.Equal(t, 2, sol.MachineOf(0))
	assert.Equal(t, int64(4), sol.ResourceUsage(0, 0))
	assert.Equal(t, int64(4), sol.ResourceUsage(2, 0))
	assert.Equal(t, int64(0), sol.TransientUsage(0, 0), "cpu is not transient")
	assert.Equal(t, int64(4), sol.TransientUsage(0, 1), "mem stays held on the initial machine")
	assert.Equal(t, 1, sol.ProcessCount(0))
	assert.Equal(t, 1, sol.ProcessCount(2))
}

func TestSolution_Move_SecondHopKeepsTransientOnHome(t *testing.T) {
	p := newTestProblem(t)
	sol := NewSolution(p)

	sol.Move(0, 2)
	sol.Move(0, 1)

	assert.Equal(t, int64(4), sol.TransientUsage(0, 1))
	assert.Equal(t, int64(0), sol.TransientUsage(2, 1))

	// Returning home releases the transient hold.
	sol.Move(0, 0)
	assert.Equal(t, int64(0), sol.TransientUsage(0, 1))
	assert.Equal(t, int64(8), sol.ResourceUsage(0, 1))
}

func TestSolution_Move_SameMachineIsNoOp(t *testing.T) {
	p := newTestProblem(t)
	sol := NewSolution(p)
	before := sol.Assignment()

	assert.Equal(t, 1, sol.Move(2, 1))
	assert.Equal(t, before, sol.Assignment())
	assert.Equal(t, int64(3), sol.ResourceUsage(1, 0))
}

func TestSolution_Move_OutOfRangePanics(t *testing.T) {
	sol := NewSolution(newTestProblem(t))
	assert.PanicsWithValue(t, "Solution.Move: process 9 out of range", func() { sol.Move(9, 0) })
	assert.PanicsWithValue(t, "Solution.Move: machine 5 out of range", func() { sol.Move(0, 5) })
}

func TestSolution_Clone_IsIndependent(t *testing.T) {
	p := newTestProblem(t)
	sol := NewSolution(p)
	clone := sol.Clone()

	clone.Move(0, 2)

	assert.Equal(t, 0, sol.MachineOf(0))
	assert.Equal(t, int64(8), sol.ResourceUsage(0, 0))
	assert.Equal(t, 2, sol.ProcessCount(0))
	assert.Equal(t, 2, clone.MachineOf(0))
	assert.Same(t, sol.Instance(), clone.Instance())
}
