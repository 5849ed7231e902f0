// Package main provides the entry point for the abiconv CLI.
//
// abiconv automates k-point convergence studies for ABINIT-style DFT
// engines. It expands a study definition into one input deck per k-mesh,
// drives the engine runs through a polling scheduler, and analyzes the
// total energies for convergence.
//
// Usage:
//
//	abiconv new
//	abiconv build study.hcl
//	abiconv run flow_si_conv
//	abiconv report flow_si_conv
//
// See --help for all available options.
package main

// main is the entry point for abiconv.
func main() {
	Execute()
}
