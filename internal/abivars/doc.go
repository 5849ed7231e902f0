// Package abivars is the built-in documentation registry for the engine's
// input variables.
//
// The registry backs the "doc" command (lookup by name, substring search)
// and the input builder's validation of variable names. It is a curated
// subset of the official variable documentation, restricted to the variables
// a ground-state convergence study touches: geometry, plane-wave cutoffs,
// k-point sampling, SCF control and the common I/O switches.
//
// The registry is immutable after package initialization and lookups are
// pure, so the package is safe for concurrent use.
package abivars
