// Package deck loads convergence-study definitions from HCL files.
//
// A study deck names the crystal structure, the fixed physics variables,
// the list of k-point meshes to sweep and the convergence tolerance:
//
//	study "si_kconv" {
//	  pseudo_dir = "~/pseudos"
//	  pseudos    = ["14si.pspnc"]
//
//	  structure { ... }
//	  variables { ecut = 8.0  toldfe = 1e-8 }
//	  kmesh     { ngkpt = [[2, 2, 2], [4, 4, 4]] }
//
//	  convergence { tolerance_mev_per_atom = 1.0 }
//	}
//
// Load turns a deck into a Study; Study.Inputs expands it into one engine
// input per mesh.
package deck
