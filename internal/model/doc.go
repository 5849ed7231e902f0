// Package model defines the result data structures shared across the tool.
//
// This package contains the following main types:
//   - StudyReport: The complete outcome of one convergence study run
//   - TaskSummary: One mesh's contribution to the study
//   - EventNote: An engine diagnostic carried into the report
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (scheduler, database, report) need to use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
