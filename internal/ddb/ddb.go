// Package ddb reads the derivative database files that response-function
// runs leave next to their outputs. The reader covers the variable header,
// the q-points recorded in the derivative blocks and a few values derived
// from them. The derivative matrices themselves stay with the engine's own
// post-processing tools.
package ddb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Olivier7017/abiconv/internal/structure"
)

// ErrNoVersion is returned when the header carries no version line, which
// means the file is not a derivative database at all.
var ErrNoVersion = errors.New("no version line in DDB header")

// The header key block starts after a fixed banner and ends at one of two
// separator lines, depending on whether the file records pseudopotential
// information.
const (
	bannerLines = 6
	pspsSection = "Description of the potentials (KB energies)"
	pspsMissing = "No information on the potentials yet"
)

// Value is one parsed header entry. Numeric entries carry their numbers in
// Nums, with Int reporting whether every token used integer notation.
// Entries whose tokens do not parse as numbers keep the raw text in Raw.
type Value struct {
	Nums []float64
	Int  bool
	Raw  string
}

// Scalar returns the value of single-number entries.
func (v Value) Scalar() (float64, bool) {
	if len(v.Nums) != 1 {
		return 0, false
	}
	return v.Nums[0], true
}

// File is a parsed derivative database.
type File struct {
	// Version is the format number from the "+DDB, Version number" line.
	Version int

	// Header maps every header key to its parsed value. The geometry and
	// symmetry keys below are additionally lifted into typed fields.
	Header map[string]Value

	// Geometry of the cell the database was computed for.
	Acell [3]float64
	Rprim [3][3]float64
	Typat []int
	Xred  [][3]float64
	Znucl []int

	// Kpt lists the k-points of the underlying ground-state run.
	Kpt [][3]float64

	// Symrel and Tnons are the symmetry operations in reduced coordinates.
	Symrel [][3][3]int
	Tnons  [][3]float64

	// QPoints lists the distinct q-points of the derivative blocks in file
	// order, weights dropped.
	QPoints [][3]float64
}

// Read parses a derivative database stream. The header rows between the
// banner and the pseudopotential separator become Header entries; the rest
// of the file is scanned for the q-point rows of the derivative blocks, so
// one forward pass covers both sections.
func Read(r io.Reader) (*File, error) {
	f := &File{Header: map[string]Value{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	versionFound := false
	inHeader := true
	lastKey := ""
	seen := map[string]bool{}

	for i := 0; scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !inHeader {
			if strings.HasPrefix(line, "qpt") && !seen[line] {
				seen[line] = true
				q, err := parseQpt(line)
				if err != nil {
					return nil, err
				}
				f.QPoints = append(f.QPoints, q)
			}
			continue
		}

		if strings.Contains(line, "Version") {
			fields := strings.Fields(line)
			v, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return nil, fmt.Errorf("malformed version line %q", line)
			}
			f.Version = v
			versionFound = true
		}

		if line == pspsSection || line == pspsMissing {
			inHeader = false
			continue
		}

		if i >= bannerLines {
			lastKey = f.addHeaderLine(line, lastKey)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan DDB: %w", err)
	}

	if !versionFound {
		return nil, ErrNoVersion
	}
	if err := f.reshape(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile parses the derivative database at path.
func ReadFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DDB: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// addHeaderLine folds one header row into the key table and returns the key
// it belongs to. Rows whose first token is numeric continue the previous
// key, matching the engine's wrapped array output.
func (f *File) addHeaderLine(line, lastKey string) string {
	tokens := strings.Fields(normalizeExponents(line))

	if _, err := strconv.ParseFloat(tokens[0], 64); err == nil {
		if lastKey == "" {
			return lastKey
		}
		v := f.Header[lastKey]
		v.extend(tokens)
		f.Header[lastKey] = v
		return lastKey
	}

	key := tokens[0]
	v := Value{Int: true}
	v.extend(tokens[1:])
	f.Header[key] = v
	return key
}

// extend appends one row of value tokens. A token that does not parse
// demotes the whole entry to raw text, so unknown header rows survive the
// parse instead of failing it.
func (v *Value) extend(tokens []string) {
	if len(tokens) == 0 {
		return
	}
	if v.Raw != "" {
		v.Raw += " " + strings.Join(tokens, " ")
		return
	}

	nums := make([]float64, 0, len(tokens))
	isInt := true
	for _, tok := range tokens {
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			v.Nums = nil
			v.Int = false
			v.Raw = strings.Join(tokens, " ")
			return
		}
		if strings.ContainsAny(tok, ".eE") {
			isInt = false
		}
		nums = append(nums, n)
	}

	v.Nums = append(v.Nums, nums...)
	v.Int = v.Int && isInt
}

// parseQpt reads the coordinates of one "qpt" row. The trailing number is
// the point's weight, which the reader drops.
func parseQpt(line string) ([3]float64, error) {
	var q [3]float64
	fields := strings.Fields(normalizeExponents(strings.TrimPrefix(line, "qpt")))
	if len(fields) < 3 {
		return q, fmt.Errorf("malformed qpt line %q", line)
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return q, fmt.Errorf("malformed qpt line %q", line)
		}
		q[i] = v
	}
	return q, nil
}

// normalizeExponents rewrites Fortran D exponents so strconv accepts them.
func normalizeExponents(line string) string {
	line = strings.ReplaceAll(line, "D+", "E+")
	return strings.ReplaceAll(line, "D-", "E-")
}

// reshape lifts the geometry and symmetry keys into typed fields. The row
// counts come from the scalar dimension entries, so a header missing those
// cannot be reshaped.
func (f *File) reshape() error {
	natom, err := f.headerDim("natom")
	if err != nil {
		return err
	}
	nkpt, err := f.headerDim("nkpt")
	if err != nil {
		return err
	}
	nsym, err := f.headerDim("nsym")
	if err != nil {
		return err
	}

	acell, err := f.headerNums("acell", 3)
	if err != nil {
		return err
	}
	copy(f.Acell[:], acell)

	rprim, err := f.headerNums("rprim", 9)
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			f.Rprim[i][j] = rprim[3*i+j]
		}
	}

	kpt, err := f.headerNums("kpt", 3*nkpt)
	if err != nil {
		return err
	}
	f.Kpt = fold3(kpt)

	// The engine writes each symmetry matrix by columns, so the matrices
	// are transposed on the way in.
	symrel, err := f.headerNums("symrel", 9*nsym)
	if err != nil {
		return err
	}
	f.Symrel = make([][3][3]int, nsym)
	for s := 0; s < nsym; s++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				f.Symrel[s][i][j] = int(symrel[9*s+3*j+i])
			}
		}
	}

	tnons, err := f.headerNums("tnons", 3*nsym)
	if err != nil {
		return err
	}
	f.Tnons = fold3(tnons)

	typat, err := f.headerNums("typat", natom)
	if err != nil {
		return err
	}
	f.Typat = make([]int, natom)
	for i, t := range typat {
		f.Typat[i] = int(t)
	}

	xred, err := f.headerNums("xred", 3*natom)
	if err != nil {
		return err
	}
	f.Xred = fold3(xred)

	// znucl is written in float notation but holds nuclear charges, one
	// per atom type.
	znucl, err := f.headerNums("znucl", -1)
	if err != nil {
		return err
	}
	f.Znucl = make([]int, len(znucl))
	for i, z := range znucl {
		f.Znucl[i] = int(z)
	}

	return nil
}

// headerDim returns the value of a scalar integer header entry.
func (f *File) headerDim(key string) (int, error) {
	v, ok := f.Header[key].Scalar()
	if !ok {
		return 0, fmt.Errorf("DDB header missing %q", key)
	}
	return int(v), nil
}

// headerNums returns the numbers of a header entry, checking the count
// unless want is negative.
func (f *File) headerNums(key string, want int) ([]float64, error) {
	v, ok := f.Header[key]
	if !ok || len(v.Nums) == 0 {
		return nil, fmt.Errorf("DDB header missing %q", key)
	}
	if want >= 0 && len(v.Nums) != want {
		return nil, fmt.Errorf("DDB header key %q has %d values, expected %d", key, len(v.Nums), want)
	}
	return v.Nums, nil
}

// fold3 regroups a flat number list into rows of three.
func fold3(nums []float64) [][3]float64 {
	rows := make([][3]float64, len(nums)/3)
	for i := range rows {
		copy(rows[i][:], nums[3*i:3*i+3])
	}
	return rows
}

// Params are the header settings usually tested for convergence.
type Params struct {
	Nkpt   int     `json:"nkpt"`
	Nsppol int     `json:"nsppol"`
	Ecut   float64 `json:"ecut"`
	Tsmear float64 `json:"tsmear"`
	Ixc    int     `json:"ixc"`
}

// Params extracts the convergence-relevant settings. Keys absent from the
// header keep their zero value.
func (f *File) Params() Params {
	var p Params
	if v, ok := f.Header["nkpt"].Scalar(); ok {
		p.Nkpt = int(v)
	}
	if v, ok := f.Header["nsppol"].Scalar(); ok {
		p.Nsppol = int(v)
	}
	if v, ok := f.Header["ecut"].Scalar(); ok {
		p.Ecut = v
	}
	if v, ok := f.Header["tsmear"].Scalar(); ok {
		p.Tsmear = v
	}
	if v, ok := f.Header["ixc"].Scalar(); ok {
		p.Ixc = int(v)
	}
	return p
}

// GuessedNgqpt guesses the q-mesh divisions behind the recorded q-points:
// the smallest nonzero |coordinate| per axis is inverted and rounded. Axes
// where every point sits at zero count one division. The guess can be wrong
// when the file mixes meshes or when the mesh was shifted.
func (f *File) GuessedNgqpt() [3]int {
	smalls := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	for _, q := range f.QPoints {
		for ax, c := range q {
			c = math.Abs(c)
			if c != 0 && c < smalls[ax] {
				smalls[ax] = c
			}
		}
	}

	var ngqpt [3]int
	for ax, small := range smalls {
		if math.IsInf(small, 1) {
			ngqpt[ax] = 1
			continue
		}
		n := int(math.Round(1 / small))
		if n == 0 {
			n = 1
		}
		ngqpt[ax] = n
	}
	return ngqpt
}

// Structure builds the crystal the database was computed for.
func (f *File) Structure() (*structure.Structure, error) {
	znucl := make([]float64, len(f.Znucl))
	for i, z := range f.Znucl {
		znucl[i] = float64(z)
	}
	return structure.FromAbivars(f.Acell, f.Rprim, znucl, f.Typat, f.Xred)
}
