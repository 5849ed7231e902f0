// Package convergence decides when a parameter sweep has converged.
//
// A study is converged at the first mesh whose total energy, and that of
// every denser mesh, stays within the tolerance of the reference energy.
// The reference is the densest usable mesh. Energies compare in meV per
// atom so tolerances carry between cell sizes.
package convergence
