package input

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/Olivier7017/abiconv/internal/abivars"
	"github.com/Olivier7017/abiconv/internal/structure"
)

// Errors returned by Set and Validate.
var (
	// ErrNonFiniteValue is returned when a float value is NaN or infinite.
	ErrNonFiniteValue = errors.New("variable value must be finite")

	// ErrUnsupportedType is returned for value types the deck format cannot
	// represent.
	ErrUnsupportedType = errors.New("unsupported variable value type")

	// ErrMissingGeometry is returned by Validate when a mandatory geometry
	// variable is absent.
	ErrMissingGeometry = errors.New("missing mandatory geometry variable")
)

// geometryVars are the variables every deck must carry to define a structure.
var geometryVars = []string{"acell", "rprim", "natom", "ntypat", "typat", "znucl", "xred"}

// entry is one variable assignment. Values are one of: int, float64, string,
// []int, []float64 or [][3]float64.
type entry struct {
	name  string
	value any
}

// Input is an insertion-ordered engine input deck.
//
// Set keeps the first position of a variable even when it is overwritten, so
// a deck built as geometry, physics, k-mesh renders in that order no matter
// how often individual values are tuned afterwards.
type Input struct {
	comment string
	entries []entry
	index   map[string]int
}

// New creates a deck seeded with the geometry group of the given structure:
// acell, rprim, natom, ntypat, typat, znucl and xred. The lattice is written
// with acell 1 1 1 and the scaled vectors as rprim, which is equivalent to
// the original scaling and avoids carrying two coupled variables.
func New(s *structure.Structure) *Input {
	in := &Input{index: make(map[string]int)}

	in.mustSet("acell", []float64{1, 1, 1})
	rprim := make([][3]float64, 3)
	for i := 0; i < 3; i++ {
		rprim[i] = s.Lattice[i]
	}
	in.mustSet("rprim", rprim)
	in.mustSet("natom", s.NumAtoms())
	in.mustSet("ntypat", s.NumTypes())
	in.mustSet("typat", append([]int(nil), s.Typat...))
	in.mustSet("znucl", append([]float64(nil), s.Znucl...))

	xred := make([][3]float64, len(s.Sites))
	for i, site := range s.Sites {
		xred[i] = site.Xred
	}
	in.mustSet("xred", xred)

	return in
}

// Empty creates a deck with no variables. Used by tests and by callers that
// assemble decks from parsed sources rather than a structure.
func Empty() *Input {
	return &Input{index: make(map[string]int)}
}

// SetComment sets the header comment rendered at the top of the deck.
// Newlines split the comment into multiple header lines.
func (in *Input) SetComment(c string) { in.comment = c }

// Comment returns the header comment.
func (in *Input) Comment() string { return in.comment }

// Set assigns a variable. An existing variable is overwritten in place,
// preserving its position in the deck. Float values (scalar or array) must
// be finite.
func (in *Input) Set(name string, value any) error {
	norm, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}

	if pos, ok := in.index[name]; ok {
		in.entries[pos].value = norm
		return nil
	}
	in.index[name] = len(in.entries)
	in.entries = append(in.entries, entry{name: name, value: norm})
	return nil
}

// SetMany assigns several variables. Map iteration order is not stable, so
// names are applied in sorted order to keep rendering deterministic.
func (in *Input) SetMany(vars map[string]any) error {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := in.Set(name, vars[name]); err != nil {
			return err
		}
	}
	return nil
}

// mustSet is Set for values the package itself constructs.
func (in *Input) mustSet(name string, value any) {
	if err := in.Set(name, value); err != nil {
		panic(err)
	}
}

// SetKMesh sets the k-point sampling group: ngkpt, nshiftk, shiftk and
// kptopt. nshiftk is derived from the shift list.
func (in *Input) SetKMesh(ngkpt [3]int, shiftk [][3]float64, kptopt int) error {
	if err := in.Set("ngkpt", []int{ngkpt[0], ngkpt[1], ngkpt[2]}); err != nil {
		return err
	}
	if err := in.Set("nshiftk", len(shiftk)); err != nil {
		return err
	}
	if err := in.Set("shiftk", shiftk); err != nil {
		return err
	}
	return in.Set("kptopt", kptopt)
}

// Get returns the value of a variable and whether it is set.
func (in *Input) Get(name string) (any, bool) {
	pos, ok := in.index[name]
	if !ok {
		return nil, false
	}
	return in.entries[pos].value, true
}

// Has reports whether a variable is set.
func (in *Input) Has(name string) bool {
	_, ok := in.index[name]
	return ok
}

// Del removes a variable. Removing an absent variable is a no-op.
func (in *Input) Del(name string) {
	pos, ok := in.index[name]
	if !ok {
		return
	}
	in.entries = append(in.entries[:pos], in.entries[pos+1:]...)
	delete(in.index, name)
	for n, p := range in.index {
		if p > pos {
			in.index[n] = p - 1
		}
	}
}

// Names returns the variable names in deck order.
func (in *Input) Names() []string {
	names := make([]string, len(in.entries))
	for i, e := range in.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of variables.
func (in *Input) Len() int { return len(in.entries) }

// Validate checks the deck. Unknown variable names are reported as warnings
// (likely typos); a missing mandatory geometry variable is an error.
func (in *Input) Validate() ([]string, error) {
	var warnings []string
	for _, e := range in.entries {
		if !abivars.IsKnown(e.name) {
			warnings = append(warnings, fmt.Sprintf("unknown variable %q", e.name))
		}
	}

	for _, name := range geometryVars {
		if !in.Has(name) {
			return warnings, fmt.Errorf("%w: %s", ErrMissingGeometry, name)
		}
	}
	return warnings, nil
}

// String renders the deck: the comment header, then one variable per group
// in insertion order. The rendering is stable byte-for-byte.
func (in *Input) String() string {
	var sb strings.Builder

	if in.comment != "" {
		for _, line := range strings.Split(in.comment, "\n") {
			sb.WriteString("# ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	for _, e := range in.entries {
		renderEntry(&sb, e)
	}
	return sb.String()
}

// WriteFile renders the deck to path with permissions 0644. Decks carry no
// secrets and the engine may run under a different user on a cluster.
func (in *Input) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(in.String()), 0644); err != nil { //nolint:gosec // Deck must stay group-readable for queue systems
		return fmt.Errorf("failed to write input deck: %w", err)
	}
	return nil
}

// normalize validates a value and converts the accepted aliases (int32/64,
// float32, [3]int, [3]float64) to the canonical types.
func normalize(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return checkFinite(float64(v))
	case float64:
		return checkFinite(v)
	case string:
		return v, nil
	case []int:
		return v, nil
	case [3]int:
		return []int{v[0], v[1], v[2]}, nil
	case []float64:
		for _, f := range v {
			if _, err := checkFinite(f); err != nil {
				return nil, err
			}
		}
		return v, nil
	case [3]float64:
		return normalize(v[:])
	case [][3]float64:
		for _, row := range v {
			for _, f := range row {
				if _, err := checkFinite(f); err != nil {
					return nil, err
				}
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, value)
	}
}

// checkFinite rejects NaN and infinite floats.
func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNonFiniteValue
	}
	return f, nil
}

// renderEntry writes one variable group. Scalars share the line with the
// name; arrays wrap at three numbers per line with a continuation indent.
func renderEntry(sb *strings.Builder, e entry) {
	switch v := e.value.(type) {
	case int:
		fmt.Fprintf(sb, "%s %d\n", e.name, v)
	case float64:
		fmt.Fprintf(sb, "%s %s\n", e.name, formatFloat(v))
	case string:
		fmt.Fprintf(sb, "%s %q\n", e.name, v)
	case []int:
		nums := make([]string, len(v))
		for i, n := range v {
			nums[i] = fmt.Sprintf("%d", n)
		}
		renderNumbers(sb, e.name, nums)
	case []float64:
		nums := make([]string, len(v))
		for i, f := range v {
			nums[i] = formatFloat(f)
		}
		renderNumbers(sb, e.name, nums)
	case [][3]float64:
		sb.WriteString(e.name)
		sb.WriteByte('\n')
		for _, row := range v {
			fmt.Fprintf(sb, "  %s %s %s\n", formatFloat(row[0]), formatFloat(row[1]), formatFloat(row[2]))
		}
	}
}

// renderNumbers writes a flat number list, three per line. Short lists share
// the name's line; longer ones start on the next line, indented.
func renderNumbers(sb *strings.Builder, name string, nums []string) {
	if len(nums) <= 3 {
		fmt.Fprintf(sb, "%s %s\n", name, strings.Join(nums, " "))
		return
	}

	sb.WriteString(name)
	sb.WriteByte('\n')
	for i := 0; i < len(nums); i += 3 {
		end := i + 3
		if end > len(nums) {
			end = len(nums)
		}
		fmt.Fprintf(sb, "  %s\n", strings.Join(nums[i:end], " "))
	}
}

// formatFloat renders integral values compactly and everything else in
// exponent form with full float64 precision. Keeps common values like
// "1 1 1" readable while round-tripping computed cutoffs exactly.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.10E", f)
}
