package deck

import "errors"

// Study validation errors.
//
// Design decision: We use package-level sentinel errors so that callers
// (the CLI `build` command in particular) can distinguish deck problems
// with errors.Is() instead of matching message text. Validation failures
// wrap these sentinels with the offending values via fmt.Errorf.
var (
	// ErrNoStudy is returned when a deck file contains no study block.
	ErrNoStudy = errors.New("no study block found")

	// ErrMultipleStudies is returned when a deck file contains more than
	// one study block. A deck defines exactly one study.
	ErrMultipleStudies = errors.New("more than one study block in deck")

	// ErrTooFewMeshes is returned when the sweep has fewer than two
	// k-meshes. A single point cannot show convergence.
	ErrTooFewMeshes = errors.New("study needs at least two k-meshes")

	// ErrMeshOrder is returned when the mesh list is not strictly
	// increasing in density (product of divisions).
	ErrMeshOrder = errors.New("k-meshes must strictly increase in density")

	// ErrBadMesh is returned when an ngkpt entry does not consist of
	// three positive divisions.
	ErrBadMesh = errors.New("ngkpt entries must be three positive divisions")

	// ErrNoShift is returned when the shift list is empty. Use
	// [[0, 0, 0]] for an unshifted grid.
	ErrNoShift = errors.New("study needs at least one k-shift")

	// ErrBadShift is returned when a shiftk entry does not have three
	// components.
	ErrBadShift = errors.New("shiftk entries must have three components")

	// ErrBadTolerance is returned when the convergence tolerance is not
	// positive.
	ErrBadTolerance = errors.New("convergence tolerance must be positive")

	// ErrNoPseudos is returned when the study lists no pseudopotential
	// files.
	ErrNoPseudos = errors.New("study lists no pseudopotential files")
)
