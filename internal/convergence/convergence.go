package convergence

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Unit conversions. CODATA 2018 value for the Hartree energy in eV.
const (
	HaToEv  = 27.211386245988
	HaToMeV = HaToEv * 1000
)

// Analysis errors.
var (
	// ErrTooFewPoints is returned when fewer than two points exist at all.
	ErrTooFewPoints = errors.New("need at least two points to analyze convergence")

	// ErrNothingUsable is returned when failures leave fewer than two
	// usable points.
	ErrNothingUsable = errors.New("too few usable points after excluding failed tasks")

	// ErrBadNatom is returned when the atom count is not positive.
	ErrBadNatom = errors.New("atom count must be positive")

	// ErrBadTolerance is returned when the tolerance is not positive.
	ErrBadTolerance = errors.New("tolerance must be positive")
)

// Point is one task's contribution to the sweep. Ok is false when the task
// failed or produced no energy; such points are excluded from the analysis
// but kept in the result for reporting.
type Point struct {
	TaskID   string
	Ngkpt    [3]int
	Nkpt     int
	EtotalHa float64
	Ok       bool
}

// Density returns the number of grid points of the mesh.
func (p Point) Density() int {
	return p.Ngkpt[0] * p.Ngkpt[1] * p.Ngkpt[2]
}

// Result is the outcome of a convergence analysis.
type Result struct {
	// Points is the full sweep sorted by mesh density, failed points
	// included.
	Points []Point

	// Converged reports whether any mesh satisfied the tolerance.
	Converged bool

	// ConvergedIndex is the index into Points of the first converged
	// mesh, -1 when not converged.
	ConvergedIndex int

	// ConvergedNgkpt is the mesh at ConvergedIndex.
	ConvergedNgkpt [3]int

	// ToleranceMeVAtom is the tolerance the analysis ran with.
	ToleranceMeVAtom float64

	// DeltasMeVAtom holds |E_i - E_ref| in meV/atom per point, aligned
	// with Points; NaN for unusable points.
	DeltasMeVAtom []float64

	// ReferenceHa is the reference energy, from the densest usable mesh.
	ReferenceHa float64

	// ReferenceID is the task the reference came from.
	ReferenceID string
}

// Analyze runs the convergence analysis over a sweep.
//
// The reference energy is the densest usable mesh's. Each usable point's
// deviation is |E_i - E_ref| * HaToMeV / natom, and the sweep converges at
// the smallest index whose deviation, and that of every denser usable
// point, stays within the tolerance.
func Analyze(points []Point, natom int, tolMeVPerAtom float64) (*Result, error) {
	if natom <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadNatom, natom)
	}
	if tolMeVPerAtom <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrBadTolerance, tolMeVPerAtom)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(points))
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Density() != sorted[j].Density() {
			return sorted[i].Density() < sorted[j].Density()
		}
		if sorted[i].Nkpt != sorted[j].Nkpt {
			return sorted[i].Nkpt < sorted[j].Nkpt
		}
		return sorted[i].TaskID < sorted[j].TaskID
	})

	refIdx := -1
	usable := 0
	for i, p := range sorted {
		if p.Ok {
			usable++
			refIdx = i
		}
	}
	if usable < 2 {
		return nil, fmt.Errorf("%w: %d usable of %d", ErrNothingUsable, usable, len(sorted))
	}

	r := &Result{
		Points:           sorted,
		ConvergedIndex:   -1,
		ToleranceMeVAtom: tolMeVPerAtom,
		ReferenceHa:      sorted[refIdx].EtotalHa,
		ReferenceID:      sorted[refIdx].TaskID,
		DeltasMeVAtom:    make([]float64, len(sorted)),
	}

	for i, p := range sorted {
		if !p.Ok {
			r.DeltasMeVAtom[i] = math.NaN()
			continue
		}
		r.DeltasMeVAtom[i] = math.Abs(p.EtotalHa-r.ReferenceHa) * HaToMeV / float64(natom)
	}

	// Scan from the coarse end: the first usable point from which every
	// denser usable point stays within tolerance. The reference itself is
	// never a candidate; its delta is zero by construction, so counting it
	// would make every sweep "converge" at its densest mesh.
	for i := 0; i < refIdx; i++ {
		if !sorted[i].Ok {
			continue
		}
		if allWithin(r.DeltasMeVAtom[i:], sorted[i:], tolMeVPerAtom) {
			r.Converged = true
			r.ConvergedIndex = i
			r.ConvergedNgkpt = sorted[i].Ngkpt
			break
		}
	}
	return r, nil
}

// allWithin reports whether every usable point's delta is within tol.
func allWithin(deltas []float64, points []Point, tol float64) bool {
	for j := range points {
		if !points[j].Ok {
			continue
		}
		if deltas[j] > tol {
			return false
		}
	}
	return true
}

// Failed returns the excluded points, for reporting.
func (r *Result) Failed() []Point {
	var failed []Point
	for _, p := range r.Points {
		if !p.Ok {
			failed = append(failed, p)
		}
	}
	return failed
}
