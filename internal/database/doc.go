// Package database provides SQLite-based storage for run results and
// study reports.
//
// Every scheduler run appends its task results and engine events here,
// keyed by flow and run ID, so convergence studies stay comparable after
// the flow directory itself has been cleaned up. The history and report
// commands read from this store.
//
// The store lives in the XDG data directory by default; tests point it
// at a temporary directory instead.
package database
