// Package workflow implements Temporal workflow definitions for batch exports.
//
// A batch export takes a detached snapshot of one annotation session (dataset,
// score ledger and active modes) and runs aggregation and publishing as
// activities, so large exports can be retried and observed outside the
// reviewer's process.
//
// Workflows in this package follow the usual Temporal rules:
//
//   - Deterministic execution
//   - Version gates on every workflow
//   - Non-retryable errors for invalid input
//
// Workflows never read the wall clock. Export timestamps come from
// workflow.Now and all I/O is delegated to activities.
package workflow
