package mrp

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mrp-lab/reassign/mrp/metrics"
)

// SnapshotRecorder receives solutions to snapshot. *metrics.Recorder implements it.
type SnapshotRecorder interface {
	RecordSnapshot(sol metrics.Solution, solutionID int64)
}

// MoveRecorder receives accepted moves. *metrics.MoveRecorder implements it.
type MoveRecorder interface {
	RecordMove(mv metrics.Move)
}

// Observers are the optional sinks notified during a search. Nil fields are skipped.
type Observers struct {
	Snapshots SnapshotRecorder
	Moves     MoveRecorder
}

// SearchConfig controls the multi-worker hill climber.
type SearchConfig struct {
	Workers       int   // independent climbers, each on its own Solution
	Iterations    int   // move proposals per worker
	SnapshotEvery int   // accepted moves between snapshots; 0 snapshots only initial and final states
	Seed          int64 // master seed; worker streams are derived with PartitionedRNG
}

// SearchResult is the best solution found across all workers.
type SearchResult struct {
	Best        *Solution
	BestCost    int64
	InitialCost int64
	Accepted    int64
	Solutions   int64 // solution ids handed out, one per snapshot
}

type workerResult struct {
	best     *Solution
	bestCost int64
	accepted int64
}

// RunSearch runs cfg.Workers hill climbers concurrently. Every worker starts from
// the initial assignment, proposes random single-process moves and keeps a move
// when the destination machine stays feasible and the cost does not increase.
// Snapshots share one solution id sequence across workers.
func RunSearch(ctx context.Context, p *Problem, cfg SearchConfig, obs Observers) (*SearchResult, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", cfg.Workers)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("iterations must be >= 0, got %d", cfg.Iterations)
	}
	if cfg.SnapshotEvery < 0 {
		return nil, fmt.Errorf("snapshot interval must be >= 0, got %d", cfg.SnapshotEvery)
	}

	var solutionIDs atomic.Int64
	initial := NewSolution(p)
	initialCost := p.Cost(initial)
	if obs.Snapshots != nil {
		obs.Snapshots.RecordSnapshot(initial, solutionIDs.Add(1))
	}

	prng := NewPartitionedRNG(NewRunKey(cfg.Seed))
	results := make([]workerResult, cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		w := w
		rng := prng.ForStream(StreamWorker(w))
		g.Go(func() error {
			res, err := climb(gctx, p, initial.Clone(), initialCost, cfg, rng.Intn, &solutionIDs, obs)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			results[w] = res
			logrus.Debugf("worker %d finished: accepted=%d best=%d", w, res.accepted, res.bestCost)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SearchResult{InitialCost: initialCost}
	for _, res := range results {
		out.Accepted += res.accepted
		if out.Best == nil || res.bestCost < out.BestCost {
			out.Best, out.BestCost = res.best, res.bestCost
		}
	}
	out.Solutions = solutionIDs.Load()
	logrus.Infof("search complete: initial=%d best=%d accepted=%d", initialCost, out.BestCost, out.Accepted)
	return out, nil
}

func climb(ctx context.Context, p *Problem, sol *Solution, cost int64, cfg SearchConfig,
	intn func(int) int, ids *atomic.Int64, obs Observers) (workerResult, error) {
	res := workerResult{best: sol.Clone(), bestCost: cost}
	// Moves are attributed to the most recent solution id handed out.
	solutionID := ids.Load()
	if p.NumProcesses() == 0 || p.NumMachines() < 2 {
		return res, nil
	}

	for it := 0; it < cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pi := intn(p.NumProcesses())
		dest := intn(p.NumMachines())
		src := sol.MachineOf(pi)
		if dest == src {
			continue
		}

		before := p.machineLoadCost(sol, src) + p.machineLoadCost(sol, dest) + p.processMoveCost(sol, pi)
		sol.Move(pi, dest)
		after := p.machineLoadCost(sol, src) + p.machineLoadCost(sol, dest) + p.processMoveCost(sol, pi)
		// Leaving a machine never worsens its usage, so only dest is checked.
		if !p.MachineFeasible(sol, dest) || after > before {
			sol.Move(pi, src)
			continue
		}

		prev := cost
		cost += after - before
		res.accepted++
		snapshot := cfg.SnapshotEvery > 0 && res.accepted%int64(cfg.SnapshotEvery) == 0
		if snapshot {
			solutionID = ids.Add(1)
		}
		if obs.Moves != nil {
			obs.Moves.RecordMove(metrics.Move{
				Process:      pi,
				Source:       src,
				Dest:         dest,
				MoveCost:     p.processMoveCost(sol, pi),
				CostBefore:   prev,
				SolutionCost: cost,
				SolutionID:   solutionID,
			})
		}
		if snapshot && obs.Snapshots != nil {
			obs.Snapshots.RecordSnapshot(sol, solutionID)
		}
		if cost < res.bestCost {
			res.best, res.bestCost = sol.Clone(), cost
		}
	}

	if obs.Snapshots != nil {
		obs.Snapshots.RecordSnapshot(sol, ids.Add(1))
	}
	return res, nil
}
