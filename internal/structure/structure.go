package structure

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Geometry validation errors returned by FromAbivars.
var (
	// ErrBadTypat is returned when a typat entry does not index into znucl.
	ErrBadTypat = errors.New("typat entry out of range: must be in 1..ntypat")

	// ErrLengthMismatch is returned when typat and xred disagree on the
	// number of atoms.
	ErrLengthMismatch = errors.New("typat and xred must have the same length")

	// ErrSingularLattice is returned when the lattice vectors do not span a
	// positive volume.
	ErrSingularLattice = errors.New("lattice vectors are singular or left-handed")

	// ErrNoAtoms is returned for an empty atom list.
	ErrNoAtoms = errors.New("structure must contain at least one atom")

	// ErrNoTypes is returned for an empty znucl list.
	ErrNoTypes = errors.New("structure must declare at least one atom type")
)

// Lattice holds the three primitive translations as rows, in Bohr.
type Lattice [3][3]float64

// Site is one atom of the structure.
type Site struct {
	// Element is the chemical symbol derived from the site's nuclear charge.
	Element string

	// Znucl is the nuclear charge of the site's atom type.
	Znucl float64

	// Xred holds the position in reduced (fractional) coordinates. Values are
	// kept exactly as given; the package never wraps them into [0,1).
	Xred [3]float64
}

// Structure is an immutable crystal geometry in engine variable conventions.
type Structure struct {
	// Lattice rows are the primitive translations, rprim rows scaled by the
	// matching acell entry.
	Lattice Lattice

	// Sites lists the atoms in typat order.
	Sites []Site

	// Znucl is the nuclear charge per atom type, as given in the deck.
	Znucl []float64

	// Typat is the 1-based type index per atom, as given in the deck.
	Typat []int
}

// FromAbivars assembles a Structure from the engine's geometry variables and
// validates their mutual consistency: typat and xred must agree on the atom
// count, every typat entry must index into znucl, and the scaled lattice must
// span a positive volume.
func FromAbivars(acell [3]float64, rprim [3][3]float64, znucl []float64, typat []int, xred [][3]float64) (*Structure, error) {
	if len(znucl) == 0 {
		return nil, ErrNoTypes
	}
	if len(typat) == 0 {
		return nil, ErrNoAtoms
	}
	if len(typat) != len(xred) {
		return nil, fmt.Errorf("%w: len(typat)=%d, len(xred)=%d", ErrLengthMismatch, len(typat), len(xred))
	}

	var lat Lattice
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			lat[i][j] = rprim[i][j] * acell[i]
		}
	}

	s := &Structure{
		Lattice: lat,
		Sites:   make([]Site, len(typat)),
		Znucl:   append([]float64(nil), znucl...),
		Typat:   append([]int(nil), typat...),
	}

	for i, t := range typat {
		if t < 1 || t > len(znucl) {
			return nil, fmt.Errorf("%w: typat[%d]=%d, ntypat=%d", ErrBadTypat, i, t, len(znucl))
		}
		z := znucl[t-1]
		s.Sites[i] = Site{
			Element: ElementSymbol(z),
			Znucl:   z,
			Xred:    xred[i],
		}
	}

	if s.Volume() <= 0 {
		return nil, ErrSingularLattice
	}
	return s, nil
}

// NumAtoms returns the number of atoms in the cell.
func (s *Structure) NumAtoms() int { return len(s.Sites) }

// NumTypes returns the number of atom types.
func (s *Structure) NumTypes() int { return len(s.Znucl) }

// Formula returns the chemical formula with element counts, elements ordered
// by first appearance in the site list, e.g. "Si2" or "Mg1O1".
func (s *Structure) Formula() string {
	counts := make(map[string]int, len(s.Znucl))
	var order []string
	for _, site := range s.Sites {
		if counts[site.Element] == 0 {
			order = append(order, site.Element)
		}
		counts[site.Element]++
	}

	var sb strings.Builder
	for _, el := range order {
		fmt.Fprintf(&sb, "%s%d", el, counts[el])
	}
	return sb.String()
}

// Volume returns the cell volume in Bohr^3 as the triple product of the
// lattice rows. A non-positive volume means the vectors are linearly
// dependent or left-handed.
func (s *Structure) Volume() float64 {
	a, b, c := s.Lattice[0], s.Lattice[1], s.Lattice[2]
	return a[0]*(b[1]*c[2]-b[2]*c[1]) +
		a[1]*(b[2]*c[0]-b[0]*c[2]) +
		a[2]*(b[0]*c[1]-b[1]*c[0])
}

// ReciprocalLattice returns the reciprocal lattice rows in the physics
// convention (factor 2π included), in 1/Bohr.
func (s *Structure) ReciprocalLattice() [3][3]float64 {
	vol := s.Volume()
	a, b, c := s.Lattice[0], s.Lattice[1], s.Lattice[2]

	cross := func(u, v [3]float64) [3]float64 {
		return [3]float64{
			u[1]*v[2] - u[2]*v[1],
			u[2]*v[0] - u[0]*v[2],
			u[0]*v[1] - u[1]*v[0],
		}
	}

	var rec [3][3]float64
	for i, cr := range [3][3]float64{cross(b, c), cross(c, a), cross(a, b)} {
		for j := 0; j < 3; j++ {
			rec[i][j] = 2 * math.Pi * cr[j] / vol
		}
	}
	return rec
}

// String returns a short human-readable description, e.g.
// "Si2 (2 atoms, 1 type, volume 266.63 Bohr^3)".
func (s *Structure) String() string {
	return fmt.Sprintf("%s (%d atoms, %d types, volume %.2f Bohr^3)",
		s.Formula(), s.NumAtoms(), s.NumTypes(), s.Volume())
}
