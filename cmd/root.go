package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrp-lab/reassign/mrp"
	"github.com/mrp-lab/reassign/mrp/metrics"
)

var (
	// CLI flags for the search run
	problemPath    string // Problem instance YAML
	seed           int64  // Master seed for worker RNG streams
	workers        int    // Number of concurrent hill climbers
	iterations     int    // Move proposals per worker
	snapshotEvery  int    // Accepted moves between machine snapshots
	logLevel       string // Log verbosity level
	machineLogPath string // Machine metrics CSV
	moveLogPath    string // Process reassignment CSV ("" disables)
	runHeaderPath  string // Run header YAML ("" disables)
	appendLogs     bool   // Append to existing logs instead of truncating

	// CLI flags for analyze
	analyzePath  string
	moveLogPaths []string
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "reassign",
	Short: "Machine reassignment search with per-machine metrics recording",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runOptions carries everything one search run needs.
type runOptions struct {
	ProblemPath    string
	Search         mrp.SearchConfig
	MachineLogPath string
	MoveLogPath    string
	RunHeaderPath  string
	Append         bool
}

// runCmd loads a problem, runs the search and records machine snapshots
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reassignment search and record machine metrics",
	Run: func(cmd *cobra.Command, args []string) {
		if problemPath == "" {
			logrus.Fatalf("Problem file not provided. Exiting.")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opts := runOptions{
			ProblemPath: problemPath,
			Search: mrp.SearchConfig{
				Workers:       workers,
				Iterations:    iterations,
				SnapshotEvery: snapshotEvery,
				Seed:          seed,
			},
			MachineLogPath: machineLogPath,
			MoveLogPath:    moveLogPath,
			RunHeaderPath:  runHeaderPath,
			Append:         appendLogs,
		}
		if _, err := executeRun(ctx, opts); err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		logrus.Info("Run complete.")
	},
}

// executeRun wires the recorders to the search and writes the run header.
// Recorder failures are logged by the recorders themselves and never abort the run.
func executeRun(ctx context.Context, opts runOptions) (*RunHeader, error) {
	problem, name, err := LoadProblem(opts.ProblemPath)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Loaded problem %q: %d machines, %d resources, %d processes",
		name, problem.NumMachines(), problem.NumResources(), problem.NumProcesses())

	recorder := metrics.NewRecorder(metrics.WithDefaultPath(opts.MachineLogPath))
	recorder.Initialize(metrics.SinkConfig{Path: opts.MachineLogPath, Append: opts.Append})
	defer recorder.Shutdown()
	obs := mrp.Observers{Snapshots: recorder}

	if opts.MoveLogPath != "" {
		moves := metrics.NewMoveRecorder(metrics.WithDefaultPath(opts.MoveLogPath))
		moves.Initialize(metrics.SinkConfig{Path: opts.MoveLogPath, Append: opts.Append})
		defer moves.Shutdown()
		obs.Moves = moves
	}

	header := newRunHeader(time.Now())
	header.Problem = opts.ProblemPath
	header.ProblemName = name
	header.Machines = problem.NumMachines()
	header.Resources = problem.NumResources()
	header.Processes = problem.NumProcesses()
	header.Seed = opts.Search.Seed
	header.Workers = opts.Search.Workers
	header.Iterations = opts.Search.Iterations
	header.SnapshotEvery = opts.Search.SnapshotEvery
	header.MachineLogPath = opts.MachineLogPath
	header.MoveLogPath = opts.MoveLogPath

	start := time.Now()
	res, err := mrp.RunSearch(ctx, problem, opts.Search, obs)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Search finished in %s: cost %d -> %d, %d snapshots",
		time.Since(start).Round(time.Millisecond), res.InitialCost, res.BestCost, recorder.LastSnapshotID())

	header.Result = &RunResult{
		InitialCost: res.InitialCost,
		BestCost:    res.BestCost,
		Accepted:    res.Accepted,
		Solutions:   res.Solutions,
	}
	if opts.RunHeaderPath != "" {
		if err := WriteRunHeader(header, opts.RunHeaderPath); err != nil {
			return nil, err
		}
	}
	return header, nil
}

// analyzeCmd summarizes a machine metrics log and any number of move logs.
// The machine log is skipped when only move logs are named.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize machine metrics and process reassignment logs",
	Run: func(cmd *cobra.Command, args []string) {
		if len(moveLogPaths) == 0 || cmd.Flags().Changed("machine-log") {
			if err := analyzeLog(analyzePath, os.Stdout); err != nil {
				logrus.Fatalf("Analyze failed: %v", err)
			}
		}
		if len(moveLogPaths) > 0 {
			if err := analyzeMoveLogs(moveLogPaths, os.Stdout); err != nil {
				logrus.Fatalf("Analyze failed: %v", err)
			}
		}
	},
}

func analyzeLog(path string, w io.Writer) error {
	rows, err := metrics.LoadMachineLog(path)
	if err != nil {
		return err
	}
	s := metrics.Summarize(rows)

	fmt.Fprintf(w, "Machine log: %s\n", filepath.Clean(path))
	fmt.Fprintf(w, "  Runs:             %d\n", s.Runs)
	fmt.Fprintf(w, "  Snapshots:        %d\n", s.Snapshots)
	fmt.Fprintf(w, "  Solutions:        %d\n", s.Solutions)
	fmt.Fprintf(w, "  Machine rows:     %d\n", s.Rows)
	fmt.Fprintf(w, "  Infeasible rows:  %d\n", s.InfeasibleRows)
	fmt.Fprintf(w, "  Mean utilization: %.2f%% (first) -> %.2f%% (last)\n", s.FirstMeanUtilization, s.LastMeanUtilization)

	machines := make([]int, 0, len(s.PeakUtilization))
	for m := range s.PeakUtilization {
		machines = append(machines, m)
	}
	sort.Ints(machines)
	for _, m := range machines {
		fmt.Fprintf(w, "  Machine %d peak:   %.2f%%\n", m, s.PeakUtilization[m])
	}
	return nil
}

func analyzeMoveLogs(paths []string, w io.Writer) error {
	summaries := make([]*metrics.MoveSummary, 0, len(paths))
	var total int
	for _, path := range paths {
		rows, err := metrics.LoadMoveLog(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		s := metrics.SummarizeMoves(rows)
		s.Path = filepath.Clean(path)
		summaries = append(summaries, s)
		total += s.Moves

		fmt.Fprintf(w, "Move log: %s\n", s.Path)
		fmt.Fprintf(w, "  Total moves:  %d\n", s.Moves)
		fmt.Fprintf(w, "  Solutions:    %d\n", s.Solutions)
		fmt.Fprintf(w, "  Initial cost: %d\n", s.InitialCost)
		fmt.Fprintf(w, "  Final cost:   %d\n", s.FinalCost)
		fmt.Fprintf(w, "  Improvement:  %d\n", s.Improvement)
	}
	if len(summaries) > 1 {
		if best := metrics.BestMoveSummary(summaries); best != nil {
			fmt.Fprintf(w, "Best move log: %s (cost %d)\n", best.Path, best.FinalCost)
		}
		fmt.Fprintf(w, "Total moves across logs: %d\n", total)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&problemPath, "problem", "", "Problem instance YAML")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for worker move proposals")
	runCmd.Flags().IntVar(&workers, "workers", 4, "Number of concurrent search workers")
	runCmd.Flags().IntVar(&iterations, "iterations", 10000, "Move proposals per worker")
	runCmd.Flags().IntVar(&snapshotEvery, "snapshot-every", 100, "Accepted moves between machine snapshots (0: initial and final only)")
	runCmd.Flags().StringVar(&machineLogPath, "machine-log", metrics.DefaultMachineLogPath, "Machine metrics CSV output")
	runCmd.Flags().StringVar(&moveLogPath, "move-log", "", "Process reassignment CSV output (empty disables)")
	runCmd.Flags().StringVar(&runHeaderPath, "run-header", "", "Run header YAML output (empty disables)")
	runCmd.Flags().BoolVar(&appendLogs, "append", false, "Append to existing logs instead of truncating")

	analyzeCmd.Flags().StringVar(&analyzePath, "machine-log", metrics.DefaultMachineLogPath, "Machine metrics CSV to summarize")
	analyzeCmd.Flags().StringSliceVar(&moveLogPaths, "move-log", nil, "Process reassignment CSVs to summarize (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
}
