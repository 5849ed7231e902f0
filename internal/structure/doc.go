// Package structure models the crystal geometry of a calculation in the
// engine's own variable conventions.
//
// A structure is assembled from the five geometry variables every input deck
// carries: acell (lattice scaling, Bohr), rprim (dimensionless primitive
// translations), znucl (nuclear charge per atom type), typat (type index per
// atom) and xred (reduced atomic coordinates). FromAbivars validates the
// mutual consistency of these arrays, which is also the format the engine
// echoes back in its derivative-database files.
//
// All lengths are in Bohr and all coordinates are fractional; the package
// never converts to Angstrom or cartesian positions because the toolkit only
// passes geometry through to the engine.
package structure
