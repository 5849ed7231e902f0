package convergence

import (
	"errors"
	"math"
	"testing"
)

// point builds a usable sweep point.
func point(id string, n int, etotal float64) Point {
	return Point{TaskID: id, Ngkpt: [3]int{n, n, n}, Nkpt: n * n * n, EtotalHa: etotal, Ok: true}
}

// TestAnalyzeConverged tests the standard silicon-like sweep: energies
// settle inside the tolerance from the second mesh on.
func TestAnalyzeConverged(t *testing.T) {
	t.Parallel()

	// Deltas vs the 8x8x8 reference, for natom=2 and tol=1 meV/atom:
	// t0: 27.2 meV/atom (out), t1: 0.54 (in), t2: 0.14 (in), t3: 0 (ref).
	points := []Point{
		point("w0/t0", 2, -8.8642),
		point("w0/t1", 4, -8.86616),
		point("w0/t2", 6, -8.86619),
		point("w0/t3", 8, -8.8662),
	}

	r, err := Analyze(points, 2, 1.0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !r.Converged {
		t.Fatal("expected convergence")
	}
	if r.ConvergedIndex != 1 {
		t.Errorf("ConvergedIndex = %d, expected 1", r.ConvergedIndex)
	}
	if r.ConvergedNgkpt != [3]int{4, 4, 4} {
		t.Errorf("ConvergedNgkpt = %v, expected [4 4 4]", r.ConvergedNgkpt)
	}
	if r.ReferenceHa != -8.8662 || r.ReferenceID != "w0/t3" {
		t.Errorf("reference = %v from %s", r.ReferenceHa, r.ReferenceID)
	}
	if r.DeltasMeVAtom[3] != 0 {
		t.Errorf("reference delta = %v, expected 0", r.DeltasMeVAtom[3])
	}
	if r.DeltasMeVAtom[0] < 27 || r.DeltasMeVAtom[0] > 28 {
		t.Errorf("coarse delta = %v, expected about 27.2", r.DeltasMeVAtom[0])
	}
}

// TestAnalyzeNonMonotonic tests that an excursion above tolerance pushes
// the converged index past it: every denser mesh must stay within.
func TestAnalyzeNonMonotonic(t *testing.T) {
	t.Parallel()

	// natom=1, tol=1 meV/atom, 1 mHa = 27.2 meV. The deltas run
	// 272, 0.27, 5.4, 0.03, 0 meV: t1 sits within tolerance but the
	// excursion at t2 does not, so convergence can only start at t3.
	ref := -10.0
	points := []Point{
		point("w0/t0", 2, ref+0.01),
		point("w0/t1", 4, ref+0.00001),
		point("w0/t2", 6, ref+0.0002),
		point("w0/t3", 8, ref+0.000001),
		point("w0/t4", 10, ref),
	}

	r, err := Analyze(points, 1, 1.0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !r.Converged {
		t.Fatal("expected convergence")
	}
	if r.ConvergedIndex != 3 {
		t.Errorf("ConvergedIndex = %d, expected 3 (the excursion at 2 blocks 1)", r.ConvergedIndex)
	}
}

// TestAnalyzeNotConverged tests a sweep that never settles.
func TestAnalyzeNotConverged(t *testing.T) {
	t.Parallel()

	points := []Point{
		point("w0/t0", 2, -8.80),
		point("w0/t1", 4, -8.83),
		point("w0/t2", 6, -8.86),
	}

	r, err := Analyze(points, 2, 1.0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.Converged {
		t.Error("expected no convergence")
	}
	// The reference delta is zero by construction; it must never count
	// as the converged mesh on its own.
	if r.ConvergedIndex != -1 {
		t.Errorf("ConvergedIndex = %d, expected -1", r.ConvergedIndex)
	}
}

// TestAnalyzeFailedPoints tests exclusion of failed tasks and the fallback
// reference when the densest task failed.
func TestAnalyzeFailedPoints(t *testing.T) {
	t.Parallel()

	failed := Point{TaskID: "w0/t3", Ngkpt: [3]int{8, 8, 8}, Ok: false}
	points := []Point{
		point("w0/t0", 2, -8.8642),
		point("w0/t1", 4, -8.86616),
		point("w0/t2", 6, -8.86619),
		failed,
	}

	r, err := Analyze(points, 2, 1.0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Reference falls back to the densest usable mesh.
	if r.ReferenceID != "w0/t2" {
		t.Errorf("ReferenceID = %s, expected w0/t2", r.ReferenceID)
	}
	if !math.IsNaN(r.DeltasMeVAtom[3]) {
		t.Errorf("failed point delta = %v, expected NaN", r.DeltasMeVAtom[3])
	}
	if got := r.Failed(); len(got) != 1 || got[0].TaskID != "w0/t3" {
		t.Errorf("Failed() = %v", got)
	}
	if !r.Converged || r.ConvergedIndex != 1 {
		t.Errorf("Converged = %v at %d, expected true at 1", r.Converged, r.ConvergedIndex)
	}
}

// TestAnalyzeSortsByDensity tests ordering of shuffled input and the
// density tie-breakers.
func TestAnalyzeSortsByDensity(t *testing.T) {
	t.Parallel()

	// 4x4x4 and 8x8x1 tie at density 64; nkpt breaks the tie.
	tieA := Point{TaskID: "w0/t9", Ngkpt: [3]int{8, 8, 1}, Nkpt: 10, EtotalHa: -8.866, Ok: true}
	tieB := Point{TaskID: "w0/t1", Ngkpt: [3]int{4, 4, 4}, Nkpt: 8, EtotalHa: -8.866, Ok: true}
	points := []Point{
		point("w0/t3", 8, -8.8662),
		tieA,
		point("w0/t0", 2, -8.8642),
		tieB,
	}

	r, err := Analyze(points, 2, 1.0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	order := make([]string, len(r.Points))
	for i, p := range r.Points {
		order[i] = p.TaskID
	}
	want := []string{"w0/t0", "w0/t1", "w0/t9", "w0/t3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, expected %v", order, want)
		}
	}
}

// TestAnalyzeErrors tests the argument and usability sentinels.
func TestAnalyzeErrors(t *testing.T) {
	t.Parallel()

	two := []Point{point("w0/t0", 2, -8.86), point("w0/t1", 4, -8.87)}

	testCases := []struct {
		name     string
		points   []Point
		natom    int
		tol      float64
		expected error
	}{
		{"one point", two[:1], 2, 1.0, ErrTooFewPoints},
		{"no points", nil, 2, 1.0, ErrTooFewPoints},
		{"zero natom", two, 0, 1.0, ErrBadNatom},
		{"zero tolerance", two, 2, 0, ErrBadTolerance},
		{
			"all but one failed",
			[]Point{two[0], {TaskID: "w0/t1", Ngkpt: [3]int{4, 4, 4}, Ok: false}},
			2, 1.0, ErrNothingUsable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Analyze(tc.points, tc.natom, tc.tol)
			if !errors.Is(err, tc.expected) {
				t.Errorf("Analyze error = %v, expected %v", err, tc.expected)
			}
		})
	}
}

// TestUnitConstants pins the Hartree conversion factors.
func TestUnitConstants(t *testing.T) {
	t.Parallel()

	if HaToEv != 27.211386245988 {
		t.Errorf("HaToEv = %v", HaToEv)
	}
	if HaToMeV != HaToEv*1000 {
		t.Errorf("HaToMeV = %v", HaToMeV)
	}
}
