package mrp

import (
	"fmt"

	"github.com/mrp-lab/reassign/mrp/metrics"
)

// Solution is an assignment of processes to machines with usage figures kept
// up to date incrementally.
//
// Thread-safety: NOT thread-safe. Each search worker owns its own Solution.
type Solution struct {
	problem    *Problem
	assignment []int
	usage      [][]int64 // [machine][resource]
	transient  [][]int64 // [machine][resource], transient resources only
	processes  []map[int]struct{}
}

// NewSolution builds a Solution from the problem's initial assignment.
func NewSolution(p *Problem) *Solution {
	s := &Solution{
		problem:    p,
		assignment: append([]int(nil), p.InitialAssignment...),
		usage:      make([][]int64, p.NumMachines()),
		transient:  make([][]int64, p.NumMachines()),
		processes:  make([]map[int]struct{}, p.NumMachines()),
	}
	for m := range p.Machines {
		s.usage[m] = make([]int64, p.NumResources())
		s.transient[m] = make([]int64, p.NumResources())
		s.processes[m] = make(map[int]struct{})
	}
	for pi, m := range s.assignment {
		s.processes[m][pi] = struct{}{}
		for r, req := range p.Processes[pi].Requirements {
			s.usage[m][r] += req
		}
	}
	return s
}

// Problem implements metrics.Solution.
func (s *Solution) Problem() metrics.Problem { return s.problem }

// Instance returns the concrete problem.
func (s *Solution) Instance() *Problem { return s.problem }

// ResourceUsage returns usage of resource r on machine m.
func (s *Solution) ResourceUsage(m, r int) int64 { return s.usage[m][r] }

// TransientUsage returns resource r still held on machine m by processes that
// moved away from it.
func (s *Solution) TransientUsage(m, r int) int64 { return s.transient[m][r] }

// ProcessCount returns the number of processes assigned to machine m.
func (s *Solution) ProcessCount(m int) int { return len(s.processes[m]) }

// MachineOf returns the machine process pi is assigned to.
func (s *Solution) MachineOf(pi int) int { return s.assignment[pi] }

// Assignment returns a copy of the process → machine assignment.
func (s *Solution) Assignment() []int { return append([]int(nil), s.assignment...) }

// Move reassigns process pi to machine dest and returns the previous machine.
// Panics if pi or dest is out of range.
func (s *Solution) Move(pi, dest int) int {
	if pi < 0 || pi >= len(s.assignment) {
		panic(fmt.Sprintf("Solution.Move: process %d out of range", pi))
	}
	if dest < 0 || dest >= len(s.usage) {
		panic(fmt.Sprintf("Solution.Move: machine %d out of range", dest))
	}
	src := s.assignment[pi]
	if src == dest {
		return src
	}
	home := s.problem.InitialAssignment[pi]
	for r, req := range s.problem.Processes[pi].Requirements {
		s.usage[src][r] -= req
		s.usage[dest][r] += req
		if !s.problem.Resources[r].Transient {
			continue
		}
		if src == home {
			s.transient[home][r] += req
		}
		if dest == home {
			s.transient[home][r] -= req
		}
	}
	delete(s.processes[src], pi)
	s.processes[dest][pi] = struct{}{}
	s.assignment[pi] = dest
	return src
}

// Clone returns a deep copy sharing only the immutable Problem.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		problem:    s.problem,
		assignment: append([]int(nil), s.assignment...),
		usage:      make([][]int64, len(s.usage)),
		transient:  make([][]int64, len(s.transient)),
		processes:  make([]map[int]struct{}, len(s.processes)),
	}
	for m := range s.usage {
		c.usage[m] = append([]int64(nil), s.usage[m]...)
		c.transient[m] = append([]int64(nil), s.transient[m]...)
		c.processes[m] = make(map[int]struct{}, len(s.processes[m]))
		for pi := range s.processes[m] {
			c.processes[m][pi] = struct{}{}
		}
	}
	return c
}
