package structure

import (
	"errors"
	"math"
	"testing"
)

// siliconArgs returns the geometry of the silicon primitive cell used
// throughout the tests: FCC lattice, two atoms in the basis.
func siliconArgs() ([3]float64, [3][3]float64, []float64, []int, [][3]float64) {
	acell := [3]float64{10.217, 10.217, 10.217}
	rprim := [3][3]float64{
		{0.0, 0.5, 0.5},
		{0.5, 0.0, 0.5},
		{0.5, 0.5, 0.0},
	}
	znucl := []float64{14}
	typat := []int{1, 1}
	xred := [][3]float64{
		{0.0, 0.0, 0.0},
		{0.25, 0.25, 0.25},
	}
	return acell, rprim, znucl, typat, xred
}

// TestFromAbivarsSilicon tests assembly of the silicon reference structure.
func TestFromAbivarsSilicon(t *testing.T) {
	t.Parallel()

	acell, rprim, znucl, typat, xred := siliconArgs()
	s, err := FromAbivars(acell, rprim, znucl, typat, xred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.NumAtoms() != 2 {
		t.Errorf("NumAtoms() = %d, expected 2", s.NumAtoms())
	}
	if s.NumTypes() != 1 {
		t.Errorf("NumTypes() = %d, expected 1", s.NumTypes())
	}
	if s.Formula() != "Si2" {
		t.Errorf("Formula() = %q, expected Si2", s.Formula())
	}

	// FCC primitive cell volume is a^3/4.
	want := math.Pow(10.217, 3) / 4
	if got := s.Volume(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Volume() = %g, expected %g", got, want)
	}

	// Lattice rows are rprim scaled by acell.
	if got := s.Lattice[0][1]; math.Abs(got-10.217/2) > 1e-12 {
		t.Errorf("Lattice[0][1] = %g, expected %g", got, 10.217/2)
	}

	if s.Sites[1].Element != "Si" {
		t.Errorf("Sites[1].Element = %q, expected Si", s.Sites[1].Element)
	}
	if s.Sites[1].Xred != [3]float64{0.25, 0.25, 0.25} {
		t.Errorf("Sites[1].Xred = %v", s.Sites[1].Xred)
	}
}

// TestFromAbivarsValidation tests the consistency checks on the geometry
// variables.
func TestFromAbivarsValidation(t *testing.T) {
	t.Parallel()

	acell, rprim, znucl, typat, xred := siliconArgs()

	testCases := []struct {
		name    string
		mutate  func(*[3]float64, *[3][3]float64, *[]float64, *[]int, *[][3]float64)
		wantErr error
	}{
		{
			name:    "typat out of range",
			mutate:  func(_ *[3]float64, _ *[3][3]float64, _ *[]float64, t *[]int, _ *[][3]float64) { (*t)[1] = 2 },
			wantErr: ErrBadTypat,
		},
		{
			name:    "typat below one",
			mutate:  func(_ *[3]float64, _ *[3][3]float64, _ *[]float64, t *[]int, _ *[][3]float64) { (*t)[0] = 0 },
			wantErr: ErrBadTypat,
		},
		{
			name: "length mismatch",
			mutate: func(_ *[3]float64, _ *[3][3]float64, _ *[]float64, _ *[]int, x *[][3]float64) {
				*x = (*x)[:1]
			},
			wantErr: ErrLengthMismatch,
		},
		{
			name: "singular lattice",
			mutate: func(_ *[3]float64, r *[3][3]float64, _ *[]float64, _ *[]int, _ *[][3]float64) {
				r[1] = r[0]
			},
			wantErr: ErrSingularLattice,
		},
		{
			name: "no atoms",
			mutate: func(_ *[3]float64, _ *[3][3]float64, _ *[]float64, t *[]int, x *[][3]float64) {
				*t = nil
				*x = nil
			},
			wantErr: ErrNoAtoms,
		},
		{
			name: "no types",
			mutate: func(_ *[3]float64, _ *[3][3]float64, z *[]float64, _ *[]int, _ *[][3]float64) {
				*z = nil
			},
			wantErr: ErrNoTypes,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a, r, z, ty, x := acell, rprim, append([]float64(nil), znucl...), append([]int(nil), typat...), append([][3]float64(nil), xred...)
			tc.mutate(&a, &r, &z, &ty, &x)

			_, err := FromAbivars(a, r, z, ty, x)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestFormulaMultipleTypes tests element ordering by first appearance.
func TestFormulaMultipleTypes(t *testing.T) {
	t.Parallel()

	s, err := FromAbivars(
		[3]float64{7.9, 7.9, 7.9},
		[3][3]float64{{0, 0.5, 0.5}, {0.5, 0, 0.5}, {0.5, 0.5, 0}},
		[]float64{12, 8},
		[]int{1, 2},
		[][3]float64{{0, 0, 0}, {0.5, 0.5, 0.5}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Formula() != "Mg1O1" {
		t.Errorf("Formula() = %q, expected Mg1O1", s.Formula())
	}
}

// TestReciprocalLattice tests the 2π reciprocal convention on a simple cube.
func TestReciprocalLattice(t *testing.T) {
	t.Parallel()

	s, err := FromAbivars(
		[3]float64{5, 5, 5},
		[3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]float64{14},
		[]int{1},
		[][3]float64{{0, 0, 0}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := s.ReciprocalLattice()
	want := 2 * math.Pi / 5
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.0
			if i == j {
				expected = want
			}
			if math.Abs(rec[i][j]-expected) > 1e-12 {
				t.Errorf("rec[%d][%d] = %g, expected %g", i, j, rec[i][j], expected)
			}
		}
	}
}

// TestElementSymbol tests the Z-to-symbol mapping including fallbacks.
func TestElementSymbol(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		z        float64
		expected string
	}{
		{1, "H"},
		{14, "Si"},
		{79, "Au"},
		{103, "Lr"},
		{0, "Z0"},
		{104, "Z104"},
		{13.5, "Z13.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if got := ElementSymbol(tc.z); got != tc.expected {
				t.Errorf("ElementSymbol(%g) = %q, expected %q", tc.z, got, tc.expected)
			}
		})
	}
}
