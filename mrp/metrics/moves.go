package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// DefaultMoveLogPath is the destination used when RecordMove runs before any
// explicit Initialize.
const DefaultMoveLogPath = "process_reassignments.csv"

var moveLogColumns = []string{
	"MoveNum", "ProcessId", "SourceMachine", "DestMachine",
	"MoveCost", "Improvement", "Timestamp", "SolutionId", "SolutionCost",
}

// Move is one accepted process reassignment.
type Move struct {
	Process      int
	Source       int
	Dest         int
	MoveCost     int64
	CostBefore   int64
	SolutionCost int64
	SolutionID   int64
}

// MoveRow is one data line of the process reassignment log.
type MoveRow struct {
	MoveNum        int64
	Process        int
	Source         int
	Dest           int
	MoveCost       int64
	Improvement    int64
	ElapsedSeconds float64
	SolutionID     int64
	SolutionCost   int64
}

// ParseMoveRow decodes one data line of a process reassignment log.
func ParseMoveRow(fields []string) (MoveRow, error) {
	var row MoveRow
	if len(fields) != len(moveLogColumns) {
		return row, fmt.Errorf("move row has %d columns, expected %d", len(fields), len(moveLogColumns))
	}
	ints := map[int]*int64{
		0: &row.MoveNum, 4: &row.MoveCost, 5: &row.Improvement,
		7: &row.SolutionID, 8: &row.SolutionCost,
	}
	for i, dst := range ints {
		v, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return row, fmt.Errorf("parsing %s: %w", moveLogColumns[i], err)
		}
		*dst = v
	}
	indexes := map[int]*int{1: &row.Process, 2: &row.Source, 3: &row.Dest}
	for i, dst := range indexes {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return row, fmt.Errorf("parsing %s: %w", moveLogColumns[i], err)
		}
		*dst = v
	}
	var err error
	if row.ElapsedSeconds, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return row, fmt.Errorf("parsing Timestamp: %w", err)
	}
	return row, nil
}

// MoveRecorder appends accepted reassignments to the move log. It follows the
// same lifecycle and error policy as Recorder.
type MoveRecorder struct {
	mu       sync.Mutex
	sink     *csvSink
	failed   bool
	moveNum  int64
	openedAt time.Time
	opts     recorderOptions
}

// NewMoveRecorder creates an uninitialized MoveRecorder.
func NewMoveRecorder(opts ...Option) *MoveRecorder {
	return &MoveRecorder{opts: buildOptions(DefaultMoveLogPath, opts)}
}

// Initialize opens cfg.Path unless a sink is already open, and clears a stop
// caused by an earlier write failure.
func (mr *MoveRecorder) Initialize(cfg SinkConfig) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.failed = false
	mr.openLocked(cfg)
}

func (mr *MoveRecorder) openLocked(cfg SinkConfig) {
	if mr.sink != nil {
		return
	}
	sink, err := openCSVSink(cfg, moveLogColumns)
	if err != nil {
		mr.opts.log.WithError(err).WithField("path", cfg.Path).Error("move log unavailable")
		return
	}
	mr.sink = sink
	mr.openedAt = mr.opts.now()
}

// RecordMove appends mv. Moves that leave the process on its machine are ignored.
func (mr *MoveRecorder) RecordMove(mv Move) {
	if mv.Source == mv.Dest {
		return
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if mr.failed {
		return
	}
	mr.openLocked(SinkConfig{Path: mr.opts.defaultPath})
	if mr.sink == nil {
		return
	}

	mr.moveNum++
	elapsed := mr.opts.now().Sub(mr.openedAt).Seconds()
	fields := []string{
		strconv.FormatInt(mr.moveNum, 10),
		strconv.Itoa(mv.Process),
		strconv.Itoa(mv.Source),
		strconv.Itoa(mv.Dest),
		strconv.FormatInt(mv.MoveCost, 10),
		strconv.FormatInt(mv.CostBefore-mv.SolutionCost, 10),
		strconv.FormatFloat(elapsed, 'f', 2, 64),
		strconv.FormatInt(mv.SolutionID, 10),
		strconv.FormatInt(mv.SolutionCost, 10),
	}
	err := mr.sink.write(fields)
	if err == nil {
		err = mr.sink.flush()
	}
	if err != nil {
		mr.opts.log.WithError(err).Error("move log write failed; recording stopped")
		_ = mr.sink.file.Close()
		mr.sink = nil
		mr.failed = true
	}
}

// Moves returns the number of moves recorded so far.
func (mr *MoveRecorder) Moves() int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.moveNum
}

// Shutdown flushes and closes the sink. Safe to call repeatedly.
func (mr *MoveRecorder) Shutdown() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.sink == nil {
		return
	}
	if err := mr.sink.close(); err != nil {
		mr.opts.log.WithError(err).Error("closing move log")
	}
	mr.sink = nil
	mr.opts.log.Infof("move log finalized, total moves tracked: %d", mr.moveNum)
}
