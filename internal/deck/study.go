package deck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Olivier7017/abiconv/internal/input"
	"github.com/Olivier7017/abiconv/internal/structure"
)

// Study is a parsed convergence-study definition.
type Study struct {
	// Name is the study label from the block header, used for the flow
	// directory name.
	Name string

	// Description is free text shown in reports.
	Description string

	// PseudoDir is the pseudopotential directory, home-expanded.
	PseudoDir string

	// Pseudos lists the pseudopotential files, one per atom type.
	Pseudos []string

	// Structure is the crystal geometry shared by every task.
	Structure *structure.Structure

	// Variables are the fixed physics variables applied to every deck.
	Variables map[string]any

	// Ngkpt is the mesh sweep, ordered as written in the deck.
	Ngkpt [][3]int

	// Shiftk is the shift list applied to every mesh.
	Shiftk [][3]float64

	// Kptopt is the k-point generation mode (1 uses the full symmetry).
	Kptopt int

	// Tolerance is the convergence threshold in meV per atom.
	Tolerance float64
}

// density returns the number of grid points, the measure the sweep must
// strictly increase.
func density(ngkpt [3]int) int {
	return ngkpt[0] * ngkpt[1] * ngkpt[2]
}

// Validate checks the study.
func (s *Study) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty study name", ErrNoStudy)
	}
	if len(s.Pseudos) == 0 {
		return ErrNoPseudos
	}
	if len(s.Ngkpt) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewMeshes, len(s.Ngkpt))
	}

	for i, mesh := range s.Ngkpt {
		for _, n := range mesh {
			if n <= 0 {
				return fmt.Errorf("%w: mesh %d is %v", ErrBadMesh, i, mesh)
			}
		}
		if i > 0 && density(mesh) <= density(s.Ngkpt[i-1]) {
			return fmt.Errorf("%w: mesh %d (%v) does not densify mesh %d (%v)",
				ErrMeshOrder, i, mesh, i-1, s.Ngkpt[i-1])
		}
	}

	if len(s.Shiftk) == 0 {
		return ErrNoShift
	}
	if s.Tolerance <= 0 {
		return fmt.Errorf("%w: got %g", ErrBadTolerance, s.Tolerance)
	}
	return nil
}

// Inputs expands the study into one engine input per mesh, in sweep order.
// Each deck carries the geometry, the pseudopotential paths, the fixed
// variables in sorted order and the mesh's k-point group.
func (s *Study) Inputs() ([]*input.Input, error) {
	inputs := make([]*input.Input, 0, len(s.Ngkpt))

	names := make([]string, 0, len(s.Variables))
	for name := range s.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, mesh := range s.Ngkpt {
		in := input.New(s.Structure)
		in.SetComment(fmt.Sprintf("%s: ngkpt %d %d %d (point %d of %d)",
			s.Name, mesh[0], mesh[1], mesh[2], i+1, len(s.Ngkpt)))

		if err := in.Set("pp_dirpath", s.PseudoDir); err != nil {
			return nil, err
		}
		if err := in.Set("pseudos", strings.Join(s.Pseudos, ", ")); err != nil {
			return nil, err
		}

		for _, name := range names {
			if err := in.Set(name, s.Variables[name]); err != nil {
				return nil, fmt.Errorf("variable %s: %w", name, err)
			}
		}

		if err := in.SetKMesh(mesh, s.Shiftk, s.Kptopt); err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
