package metrics

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMachineLogPath is the destination used when RecordSnapshot runs
// before any explicit Initialize.
const DefaultMachineLogPath = "machine_metrics.csv"

// Option configures a Recorder or MoveRecorder.
type Option func(*recorderOptions)

type recorderOptions struct {
	defaultPath string
	now         func() time.Time
	log         logrus.FieldLogger
}

// WithDefaultPath overrides the lazily-opened destination.
func WithDefaultPath(path string) Option {
	return func(o *recorderOptions) { o.defaultPath = path }
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *recorderOptions) { o.now = now }
}

// WithLogger routes sink errors to log instead of the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *recorderOptions) { o.log = log }
}

func buildOptions(defaultPath string, opts []Option) recorderOptions {
	o := recorderOptions{
		defaultPath: defaultPath,
		now:         time.Now,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Recorder appends one row per machine to the machine metrics log each time a
// solution is snapshotted.
//
// A single Recorder is shared by all search workers. One mutex guards the sink
// and the snapshot counter for the full duration of Initialize, RecordSnapshot
// and Shutdown, so rows from different snapshots never interleave.
//
// Sink failures are logged and never returned: a broken log must not stop the
// optimization run. After a write failure recording stays stopped until the
// caller runs Initialize again.
type Recorder struct {
	mu         sync.Mutex
	sink       *csvSink
	failed     bool // set by a write failure; suppresses auto-initialization
	snapshotID int64
	opts       recorderOptions
}

// NewRecorder creates an uninitialized Recorder. Nothing is opened until
// Initialize or the first RecordSnapshot.
func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{opts: buildOptions(DefaultMachineLogPath, opts)}
}

// Initialize opens cfg.Path and writes the header. It is a no-op while a sink
// is already open. On failure the recorder stays uninitialized. Initialize also
// clears a stop caused by an earlier write failure.
func (r *Recorder) Initialize(cfg SinkConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = false
	r.openLocked(cfg)
}

func (r *Recorder) openLocked(cfg SinkConfig) {
	if r.sink != nil {
		return
	}
	sink, err := openCSVSink(cfg, machineLogColumns)
	if err != nil {
		r.opts.log.WithError(err).WithField("path", cfg.Path).Error("machine metrics log unavailable")
		return
	}
	r.sink = sink
	r.opts.log.WithField("path", cfg.Path).Debug("machine metrics log opened")
}

// RecordSnapshot writes one row per machine of sol, all stamped with a fresh
// snapshot id and a single timestamp. If no sink is open it first opens the
// default destination; if that fails the snapshot is skipped. After a write
// failure snapshots are dropped without touching any file.
func (r *Recorder) RecordSnapshot(sol Solution, solutionID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failed {
		return
	}
	r.openLocked(SinkConfig{Path: r.opts.defaultPath})
	if r.sink == nil {
		return
	}

	r.snapshotID++
	snapshotID := r.snapshotID
	timestamp := r.opts.now().UnixMilli()

	if err := r.writeSnapshotLocked(sol, snapshotID, timestamp, solutionID); err != nil {
		r.opts.log.WithError(err).WithField("snapshot", snapshotID).Error("machine metrics log write failed; recording stopped")
		_ = r.sink.file.Close()
		r.sink = nil
		r.failed = true
	}
}

func (r *Recorder) writeSnapshotLocked(sol Solution, snapshotID, timestamp, solutionID int64) error {
	n := sol.Problem().NumMachines()
	for m := 0; m < n; m++ {
		row := BuildMachineRow(sol, m)
		row.SnapshotID = snapshotID
		row.TimestampMs = timestamp
		row.SolutionID = solutionID
		if err := r.sink.write(row.Fields()); err != nil {
			return err
		}
	}
	return r.sink.flush()
}

// Shutdown flushes and closes the sink. Safe to call repeatedly. A later
// Initialize or RecordSnapshot reopens a destination; snapshot ids keep
// increasing across reopen. Shutdown does not clear a write-failure stop.
func (r *Recorder) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sink == nil {
		return
	}
	if err := r.sink.close(); err != nil {
		r.opts.log.WithError(err).Error("closing machine metrics log")
	}
	r.sink = nil
}

// IsOpen reports whether a sink is currently open.
func (r *Recorder) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink != nil
}

// LastSnapshotID returns the id of the most recent snapshot, 0 if none.
func (r *Recorder) LastSnapshotID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotID
}
