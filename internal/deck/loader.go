package deck

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/Olivier7017/abiconv/internal/structure"
)

// fileRoot decodes the top-level blocks of a deck file. No remain body:
// unknown top-level blocks surface as HCL diagnostics with file and line.
type fileRoot struct {
	Studies []*studyBlock `hcl:"study,block"`
}

type studyBlock struct {
	Name        string            `hcl:"name,label"`
	Description string            `hcl:"description,optional"`
	PseudoDir   string            `hcl:"pseudo_dir"`
	Pseudos     []string          `hcl:"pseudos"`
	Structure   *structureBlock   `hcl:"structure,block"`
	Variables   *variablesBlock   `hcl:"variables,block"`
	KMesh       *kmeshBlock       `hcl:"kmesh,block"`
	Convergence *convergenceBlock `hcl:"convergence,block"`
}

type structureBlock struct {
	Acell []float64   `hcl:"acell"`
	Rprim [][]float64 `hcl:"rprim"`
	Znucl []float64   `hcl:"znucl"`
	Typat []int       `hcl:"typat"`
	Xred  [][]float64 `hcl:"xred"`
}

// variablesBlock keeps its attributes undecoded: variable names are free
// form, so they are translated through cty values instead of struct tags.
type variablesBlock struct {
	Remain hcl.Body `hcl:",remain"`
}

type kmeshBlock struct {
	Ngkpt  [][]int     `hcl:"ngkpt"`
	Shiftk [][]float64 `hcl:"shiftk,optional"`
	Kptopt *int        `hcl:"kptopt,optional"`
}

type convergenceBlock struct {
	Tolerance float64 `hcl:"tolerance_mev_per_atom"`
}

// Load reads and parses a study deck from path.
func Load(path string) (*Study, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse deck %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse parses a study deck from memory. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Study, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse deck %s: %w", filename, diags)
	}
	return decode(file, filename)
}

// decode translates a parsed HCL file into a validated Study.
func decode(file *hcl.File, filename string) (*Study, error) {
	var root fileRoot
	diags := gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode deck %s: %w", filename, diags)
	}

	if len(root.Studies) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoStudy, filename)
	}
	if len(root.Studies) > 1 {
		return nil, fmt.Errorf("%w in %s: found %d", ErrMultipleStudies, filename, len(root.Studies))
	}

	study, err := translate(root.Studies[0])
	if err != nil {
		return nil, fmt.Errorf("deck %s: %w", filename, err)
	}
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("deck %s: %w", filename, err)
	}
	return study, nil
}

// translate converts the wire blocks into a Study, building the structure
// and applying defaults (shiftk, kptopt).
func translate(b *studyBlock) (*Study, error) {
	if b.Structure == nil {
		return nil, fmt.Errorf("study %q: missing structure block", b.Name)
	}
	if b.KMesh == nil {
		return nil, fmt.Errorf("study %q: missing kmesh block", b.Name)
	}
	if b.Convergence == nil {
		return nil, fmt.Errorf("study %q: missing convergence block", b.Name)
	}

	s, err := translateStructure(b.Structure)
	if err != nil {
		return nil, fmt.Errorf("study %q: %w", b.Name, err)
	}

	vars, err := translateVariables(b.Variables)
	if err != nil {
		return nil, fmt.Errorf("study %q: %w", b.Name, err)
	}

	ngkpt, err := triples(b.KMesh.Ngkpt, ErrBadMesh)
	if err != nil {
		return nil, fmt.Errorf("study %q: %w", b.Name, err)
	}

	shiftk := b.KMesh.Shiftk
	if len(shiftk) == 0 {
		// The standard single shift gives the best sampling for most
		// lattices; an explicit [[0, 0, 0]] requests an unshifted grid.
		shiftk = [][]float64{{0.5, 0.5, 0.5}}
	}
	shifts := make([][3]float64, len(shiftk))
	for i, row := range shiftk {
		if len(row) != 3 {
			return nil, fmt.Errorf("study %q: %w: row %d has %d", b.Name, ErrBadShift, i, len(row))
		}
		shifts[i] = [3]float64{row[0], row[1], row[2]}
	}

	kptopt := 1
	if b.KMesh.Kptopt != nil {
		kptopt = *b.KMesh.Kptopt
	}

	pseudoDir, err := expandHome(b.PseudoDir)
	if err != nil {
		return nil, fmt.Errorf("study %q: pseudo_dir: %w", b.Name, err)
	}

	return &Study{
		Name:        b.Name,
		Description: b.Description,
		PseudoDir:   pseudoDir,
		Pseudos:     b.Pseudos,
		Structure:   s,
		Variables:   vars,
		Ngkpt:       ngkpt,
		Shiftk:      shifts,
		Kptopt:      kptopt,
		Tolerance:   b.Convergence.Tolerance,
	}, nil
}

// translateStructure builds the crystal structure from the wire block.
func translateStructure(b *structureBlock) (*structure.Structure, error) {
	if len(b.Acell) != 3 {
		return nil, fmt.Errorf("acell must have 3 components, got %d", len(b.Acell))
	}
	acell := [3]float64{b.Acell[0], b.Acell[1], b.Acell[2]}

	if len(b.Rprim) != 3 {
		return nil, fmt.Errorf("rprim must have 3 rows, got %d", len(b.Rprim))
	}
	var rprim [3][3]float64
	for i, row := range b.Rprim {
		if len(row) != 3 {
			return nil, fmt.Errorf("rprim row %d must have 3 components, got %d", i, len(row))
		}
		rprim[i] = [3]float64{row[0], row[1], row[2]}
	}

	xred := make([][3]float64, len(b.Xred))
	for i, row := range b.Xred {
		if len(row) != 3 {
			return nil, fmt.Errorf("xred row %d must have 3 components, got %d", i, len(row))
		}
		xred[i] = [3]float64{row[0], row[1], row[2]}
	}

	return structure.FromAbivars(acell, rprim, b.Znucl, b.Typat, xred)
}

// translateVariables evaluates the free-form attributes of the variables
// block into Go values. Numbers become int when integral, float64 otherwise;
// lists follow the same rule element-wise.
func translateVariables(b *variablesBlock) (map[string]any, error) {
	vars := make(map[string]any)
	if b == nil {
		return vars, nil
	}

	attrs, diags := b.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("variables block: %w", diags)
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable %s: %w", name, diags)
		}
		goVal, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		vars[name] = goVal
	}
	return vars, nil
}

// ctyToGo converts an evaluated HCL value into the deck value kinds:
// int, float64, string, []int, []float64.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("null value")
	}

	t := v.Type()
	switch {
	case t == cty.Number:
		return numberToGo(v), nil

	case t == cty.String:
		return v.AsString(), nil

	case t == cty.Bool:
		// The engine has no booleans; flags are 0/1 integers.
		if v.True() {
			return 1, nil
		}
		return 0, nil

	case t.IsTupleType() || t.IsListType():
		ints := make([]int, 0, v.LengthInt())
		floats := make([]float64, 0, v.LengthInt())
		allInts := true

		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			if ev.Type() != cty.Number {
				return nil, fmt.Errorf("list elements must be numbers, got %s", ev.Type().FriendlyName())
			}
			switch n := numberToGo(ev).(type) {
			case int:
				ints = append(ints, n)
				floats = append(floats, float64(n))
			case float64:
				allInts = false
				floats = append(floats, n)
			}
		}
		if allInts {
			return ints, nil
		}
		return floats, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", t.FriendlyName())
	}
}

// numberToGo returns an int for integral cty numbers and a float64 otherwise.
func numberToGo(v cty.Value) any {
	bf := v.AsBigFloat()
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return int(i)
		}
	}
	f, _ := bf.Float64()
	return f
}

// triples converts rows of ints into fixed triples, wrapping badRow on a
// row of the wrong length.
func triples(rows [][]int, badRow error) ([][3]int, error) {
	out := make([][3]int, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("%w: row %d has %d", badRow, i, len(row))
		}
		out[i] = [3]int{row[0], row[1], row[2]}
	}
	return out, nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
