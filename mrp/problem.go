package mrp

import (
	"fmt"

	"github.com/mrp-lab/reassign/mrp/metrics"
)

// Resource is one dimension of machine capacity.
type Resource struct {
	Name string
	// Transient resources stay consumed on a process's initial machine while
	// the process runs elsewhere.
	Transient      bool
	LoadCostWeight int64
}

// Machine is a host with a fixed per-resource capacity.
type Machine struct {
	Capacities       []int64
	SafetyCapacities []int64 // usage above safety capacity contributes to load cost
}

// Process consumes Requirements on whichever machine it is assigned to.
type Process struct {
	Requirements []int64
	MoveCost     int64 // paid when the process is not on its initial machine
}

// Problem is an immutable machine reassignment instance.
type Problem struct {
	Resources         []Resource
	Machines          []Machine
	Processes         []Process
	InitialAssignment []int // process index → machine index
}

// NewProblem validates dimensions and returns a Problem. The caller's machines
// slice is not modified; defaulted safety capacities live in a copy.
func NewProblem(resources []Resource, machines []Machine, processes []Process, initial []int) (*Problem, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("problem needs at least one resource")
	}
	if len(machines) == 0 {
		return nil, fmt.Errorf("problem needs at least one machine")
	}
	nr := len(resources)
	machines = append([]Machine(nil), machines...)
	for m, mc := range machines {
		if len(mc.Capacities) != nr {
			return nil, fmt.Errorf("machine %d: %d capacities, expected %d", m, len(mc.Capacities), nr)
		}
		if mc.SafetyCapacities == nil {
			machines[m].SafetyCapacities = append([]int64(nil), mc.Capacities...)
		} else if len(mc.SafetyCapacities) != nr {
			return nil, fmt.Errorf("machine %d: %d safety capacities, expected %d", m, len(mc.SafetyCapacities), nr)
		}
		for r, c := range mc.Capacities {
			if c < 0 {
				return nil, fmt.Errorf("machine %d: negative capacity %d for resource %q", m, c, resources[r].Name)
			}
		}
	}
	if len(initial) != len(processes) {
		return nil, fmt.Errorf("initial assignment covers %d processes, expected %d", len(initial), len(processes))
	}
	for p, pc := range processes {
		if len(pc.Requirements) != nr {
			return nil, fmt.Errorf("process %d: %d requirements, expected %d", p, len(pc.Requirements), nr)
		}
		for r, req := range pc.Requirements {
			if req < 0 {
				return nil, fmt.Errorf("process %d: negative requirement %d for resource %q", p, req, resources[r].Name)
			}
		}
		if pc.MoveCost < 0 {
			return nil, fmt.Errorf("process %d: negative move cost %d", p, pc.MoveCost)
		}
		if initial[p] < 0 || initial[p] >= len(machines) {
			return nil, fmt.Errorf("process %d: initial machine %d out of range [0,%d)", p, initial[p], len(machines))
		}
	}
	return &Problem{
		Resources:         resources,
		Machines:          machines,
		Processes:         processes,
		InitialAssignment: initial,
	}, nil
}

// NumMachines returns the number of machines.
func (p *Problem) NumMachines() int { return len(p.Machines) }

// NumResources returns the number of resource dimensions.
func (p *Problem) NumResources() int { return len(p.Resources) }

// NumProcesses returns the number of processes.
func (p *Problem) NumProcesses() int { return len(p.Processes) }

// Capacity returns the capacity of machine m for resource r.
func (p *Problem) Capacity(m, r int) int64 { return p.Machines[m].Capacities[r] }

// CheckCapacityConstraint reports whether usage on machine m fits its capacity
// in every resource dimension.
func (p *Problem) CheckCapacityConstraint(sol metrics.Solution, m int) bool {
	for r := range p.Resources {
		if sol.ResourceUsage(m, r) > p.Capacity(m, r) {
			return false
		}
	}
	return true
}

// CheckTransientUsageConstraint reports whether usage plus transient usage on
// machine m fits its capacity for every transient resource.
func (p *Problem) CheckTransientUsageConstraint(sol metrics.Solution, m int) bool {
	for r, res := range p.Resources {
		if !res.Transient {
			continue
		}
		if sol.ResourceUsage(m, r)+sol.TransientUsage(m, r) > p.Capacity(m, r) {
			return false
		}
	}
	return true
}

// MachineFeasible reports whether both constraints hold for machine m.
func (p *Problem) MachineFeasible(sol metrics.Solution, m int) bool {
	return p.CheckCapacityConstraint(sol, m) && p.CheckTransientUsageConstraint(sol, m)
}

// machineLoadCost is the weighted usage above safety capacity on machine m.
func (p *Problem) machineLoadCost(sol *Solution, m int) int64 {
	var cost int64
	for r, res := range p.Resources {
		over := sol.usage[m][r] - p.Machines[m].SafetyCapacities[r]
		if over > 0 {
			cost += over * res.LoadCostWeight
		}
	}
	return cost
}

// processMoveCost is the move cost of process pi under sol's assignment.
func (p *Problem) processMoveCost(sol *Solution, pi int) int64 {
	if sol.assignment[pi] == p.InitialAssignment[pi] {
		return 0
	}
	return p.Processes[pi].MoveCost
}

// LoadCost sums the load cost of every machine.
func (p *Problem) LoadCost(sol *Solution) int64 {
	var cost int64
	for m := range p.Machines {
		cost += p.machineLoadCost(sol, m)
	}
	return cost
}

// Cost is the objective minimized by the search: load cost plus process move cost.
func (p *Problem) Cost(sol *Solution) int64 {
	cost := p.LoadCost(sol)
	for pi := range p.Processes {
		cost += p.processMoveCost(sol, pi)
	}
	return cost
}
