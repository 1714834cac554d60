package mrp

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrp-lab/reassign/mrp/metrics"
)

// capturingObserver records every callback; safe for concurrent workers.
type capturingObserver struct {
	mu          sync.Mutex
	solutionIDs []int64
	feasible    []bool
	moves       []metrics.Move
}

func (c *capturingObserver) RecordSnapshot(sol metrics.Solution, solutionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.solutionIDs = append(c.solutionIDs, solutionID)
	ok := true
	p := sol.Problem()
	for m := 0; m < p.NumMachines(); m++ {
		ok = ok && p.CheckCapacityConstraint(sol, m) && p.CheckTransientUsageConstraint(sol, m)
	}
	c.feasible = append(c.feasible, ok)
}

func (c *capturingObserver) RecordMove(mv metrics.Move) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves = append(c.moves, mv)
}

func TestRunSearch_InvalidConfig(t *testing.T) {
	p := newTestProblem(t)
	tests := []struct {
		name string
		cfg  SearchConfig
	}{
		{"zero workers", SearchConfig{Workers: 0, Iterations: 10}},
		{"negative iterations", SearchConfig{Workers: 1, Iterations: -1}},
		{"negative snapshot interval", SearchConfig{Workers: 1, SnapshotEvery: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunSearch(context.Background(), p, tt.cfg, Observers{})
			assert.Error(t, err)
		})
	}
}

func TestRunSearch_ImprovesAndStaysFeasible(t *testing.T) {
	// GIVEN an initial assignment with load cost 33
	p := newTestProblem(t)
	obs := &capturingObserver{}

	// WHEN three workers search with frequent snapshots
	res, err := RunSearch(context.Background(), p, SearchConfig{Workers: 3, Iterations: 300, SnapshotEvery: 1, Seed: 42},
		Observers{Snapshots: obs, Moves: obs})
	require.NoError(t, err)

	// THEN the best cost never exceeds the initial cost and every snapshot is feasible
	assert.Equal(t, int64(33), res.InitialCost)
	assert.LessOrEqual(t, res.BestCost, res.InitialCost)
	assert.Equal(t, res.BestCost, p.Cost(res.Best))
	for m := 0; m < p.NumMachines(); m++ {
		assert.True(t, p.MachineFeasible(res.Best, m), "machine %d infeasible in best solution", m)
	}
	for i, ok := range obs.feasible {
		assert.True(t, ok, "snapshot %d infeasible", i)
	}

	// AND solution ids are unique and cover 1..Solutions
	seen := make(map[int64]bool)
	for _, id := range obs.solutionIDs {
		assert.False(t, seen[id], "solution id %d reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, int(res.Solutions))
	for id := int64(1); id <= res.Solutions; id++ {
		assert.True(t, seen[id], "solution id %d missing", id)
	}
	assert.Len(t, obs.moves, int(res.Accepted))
}

func TestRunSearch_SnapshotEveryZero_InitialAndFinalOnly(t *testing.T) {
	p := newTestProblem(t)
	obs := &capturingObserver{}

	res, err := RunSearch(context.Background(), p, SearchConfig{Workers: 2, Iterations: 50, Seed: 1},
		Observers{Snapshots: obs})
	require.NoError(t, err)

	// one initial snapshot plus one final snapshot per worker
	assert.Len(t, obs.solutionIDs, 3)
	assert.Equal(t, int64(3), res.Solutions)
}

func TestRunSearch_SameSeed_Deterministic(t *testing.T) {
	p := newTestProblem(t)
	cfg := SearchConfig{Workers: 1, Iterations: 200, SnapshotEvery: 10, Seed: 99}

	a, err := RunSearch(context.Background(), p, cfg, Observers{})
	require.NoError(t, err)
	b, err := RunSearch(context.Background(), p, cfg, Observers{})
	require.NoError(t, err)

	assert.Equal(t, a.BestCost, b.BestCost)
	assert.Equal(t, a.Accepted, b.Accepted)
	assert.Equal(t, a.Best.Assignment(), b.Best.Assignment())
}

func TestRunSearch_CancelledContext_ReturnsError(t *testing.T) {
	p := newTestProblem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunSearch(ctx, p, SearchConfig{Workers: 2, Iterations: 10}, Observers{})

	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRunSearch_WithMachineRecorder_RowsMatchSnapshots(t *testing.T) {
	// GIVEN the real recorder shared by all workers
	path := filepath.Join(t.TempDir(), "machines.csv")
	rec := metrics.NewRecorder(metrics.WithDefaultPath(path))

	res, err := RunSearch(context.Background(), newTestProblem(t),
		SearchConfig{Workers: 4, Iterations: 200, SnapshotEvery: 2, Seed: 5},
		Observers{Snapshots: rec})
	require.NoError(t, err)
	rec.Shutdown()

	// THEN the log has one row per machine per solution id handed out
	rows, err := metrics.LoadMachineLog(path)
	require.NoError(t, err)
	assert.Len(t, rows, 3*int(res.Solutions))
	assert.Equal(t, res.Solutions, rec.LastSnapshotID())
	for _, r := range rows {
		assert.True(t, r.IsFeasible, "snapshot %d machine %d", r.SnapshotID, r.MachineID)
	}
}
