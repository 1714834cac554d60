// Package mrp provides the machine reassignment model and search driver whose
// runs are recorded by mrp/metrics.
//
// # Reading Guide
//
// Start with these files:
//   - problem.go: immutable instance (resources, machines, processes), the capacity
//     and transient-usage predicates, and the load/move cost objective
//   - solution.go: assignment with incrementally maintained usage, transient usage
//     and per-machine process sets
//   - search.go: concurrent hill climbers sharing one snapshot recorder
//
// # Architecture
//
// Sub-package mrp/metrics owns the CSV logs and depends only on the Problem and
// Solution interfaces it declares; *Problem and *Solution satisfy them.
// The search reports through two small interfaces:
//   - SnapshotRecorder: one call per solution id, one CSV row per machine
//   - MoveRecorder: one call per accepted process reassignment
//
// Workers never share a Solution. The only state shared across workers is the
// solution id counter (atomic) and the recorders (internally locked).
package mrp
