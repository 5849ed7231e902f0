// Package outputs extracts results from the engine's main output stream,
// the run.abo file: the total energy, the echoed run dimensions, the
// completion marker and the overall timings.
package outputs
