package abivars

import (
	"sort"
	"strings"
)

// Variable documents one engine input variable.
type Variable struct {
	// Name is the variable name as it appears in an input deck.
	Name string

	// Section is the documentation section (varset) the variable belongs to.
	Section string

	// Mnemonics spells out the abbreviation, e.g. "Energy CUToff" for ecut.
	Mnemonics string

	// VarType is the value type: "integer", "real", "integer array",
	// "real array" or "string".
	VarType string

	// Dimensions describes the shape, e.g. "scalar", "[3]" or "(3, nshiftk)".
	Dimensions string

	// Default is the default value as documented, or "no default" for
	// mandatory variables.
	Default string

	// Requires notes a condition under which the variable is relevant,
	// empty when unconditional.
	Requires string

	// Text is the condensed documentation body.
	Text string

	// SeeAlso lists related variable names.
	SeeAlso []string
}

// registry maps lower-cased variable names to their documentation.
// Keep entries alphabetical; the doc command relies on Names() for ordering,
// but reviews are easier when the source is ordered too.
var registry = map[string]Variable{
	"acell": {
		Name: "acell", Section: "basic", Mnemonics: "CELL lattice vector scaling",
		VarType: "real array", Dimensions: "[3]", Default: "no default",
		Text: "Scaling factors of the three primitive translations, in Bohr. " +
			"The lattice vectors handed to the engine are rprim rows multiplied by the matching acell entry.",
		SeeAlso: []string{"rprim", "scalecart"},
	},
	"autoparal": {
		Name: "autoparal", Section: "paral", Mnemonics: "AUTOmatisation of the PARALlelism",
		VarType: "integer", Dimensions: "scalar", Default: "0",
		Text: "When non-zero the engine explores the parallel distribution space on its own and " +
			"selects the processor grid. Leave at 0 for reproducible single-configuration runs.",
		SeeAlso: []string{"paral_kgb"},
	},
	"chksymbreak": {
		Name: "chksymbreak", Section: "gstate", Mnemonics: "CHecK SYMmetry BREAKing",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Governs the check of symmetry breaking by the k-point grid. With the default the engine " +
			"stops when the grid breaks the lattice symmetry; set 0 to downgrade the stop to a warning.",
		SeeAlso: []string{"kptopt", "shiftk"},
	},
	"diemac": {
		Name: "diemac", Section: "gstate", Mnemonics: "model DIElectric MACroscopic constant",
		VarType: "real", Dimensions: "scalar", Default: "1.0e6",
		Text: "Model macroscopic dielectric constant used to precondition the SCF mixing. " +
			"Use a value close to the physical dielectric constant for semiconductors (silicon: about 12); " +
			"keep the huge default only for metals.",
		SeeAlso: []string{"diemix", "nstep"},
	},
	"diemix": {
		Name: "diemix", Section: "gstate", Mnemonics: "model DIElectric MIXing factor",
		VarType: "real", Dimensions: "scalar", Default: "1.0",
		Text: "Mixing factor applied together with the model dielectric preconditioner. " +
			"Lower it when the SCF cycle oscillates instead of converging.",
		SeeAlso: []string{"diemac"},
	},
	"ecut": {
		Name: "ecut", Section: "basic", Mnemonics: "Energy CUToff",
		VarType: "real", Dimensions: "scalar", Default: "no default",
		Text: "Kinetic energy cutoff, in Hartree, that limits the plane-wave basis. " +
			"The single most important convergence parameter besides the k-point mesh; " +
			"converge it in its own study before trusting energy differences.",
		SeeAlso: []string{"pawecutdg", "ecutsm"},
	},
	"ecutsm": {
		Name: "ecutsm", Section: "rlx", Mnemonics: "Energy CUToff SMearing",
		VarType: "real", Dimensions: "scalar", Default: "0.0",
		Text: "Smears the plane-wave kinetic energy near the cutoff so that stresses and cell " +
			"optimizations behave smoothly. Mandatory for variable-cell relaxations.",
		SeeAlso: []string{"ecut"},
	},
	"ionmov": {
		Name: "ionmov", Section: "rlx", Mnemonics: "IONic MOVEs",
		VarType: "integer", Dimensions: "scalar", Default: "0",
		Text: "Selects the ionic relaxation or molecular-dynamics algorithm. 0 keeps the ions " +
			"fixed; 2 is the BFGS structural relaxation.",
		SeeAlso: []string{"ntime"},
	},
	"istwfk": {
		Name: "istwfk", Section: "dev", Mnemonics: "Integer for choice of STorage of WaveFunction at each k point",
		VarType: "integer array", Dimensions: "[nkpt]", Default: "0 (automatic)",
		Text: "Controls the time-reversal storage trick per k point. The automatic default halves the " +
			"storage at suitable points; force 1 everywhere when a downstream code cannot handle the trick.",
	},
	"ixc": {
		Name: "ixc", Section: "basic", Mnemonics: "Index of eXchange-Correlation functional",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Selects the exchange-correlation functional. 1 is the Teter parametrization of LDA; " +
			"11 is PBE. Negative values address functionals through libxc.",
	},
	"kptopt": {
		Name: "kptopt", Section: "basic", Mnemonics: "KPoinTs OPTion",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Chooses how the k-point grid is generated. 1 uses the full symmetry to fold the mesh " +
			"into the irreducible wedge, 0 takes the k points verbatim from the deck, negative values " +
			"generate band-structure segments.",
		SeeAlso: []string{"ngkpt", "shiftk", "kptrlatt"},
	},
	"kptrlatt": {
		Name: "kptrlatt", Section: "gstate", Mnemonics: "K-PoinTs grid: Real space LATTice",
		VarType: "integer array", Dimensions: "(3, 3)", Default: "0",
		Text: "Alternative mesh specification as a super-lattice matrix in real space. " +
			"Mutually exclusive with ngkpt; use it for meshes that are not aligned with the " +
			"primitive translations.",
		SeeAlso: []string{"ngkpt", "kptrlen"},
	},
	"kptrlen": {
		Name: "kptrlen", Section: "gstate", Mnemonics: "K-PoinTs grid: Real space LENgth",
		VarType: "real", Dimensions: "scalar", Default: "30.0",
		Text: "Target length, in Bohr, of the smallest super-lattice vector when the engine picks a " +
			"mesh on its own (kptopt with ngkpt and kptrlatt both absent).",
		SeeAlso: []string{"kptrlatt"},
	},
	"natom": {
		Name: "natom", Section: "basic", Mnemonics: "Number of ATOMs",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Number of atoms in the cell. Governs the length of typat and xred.",
		SeeAlso: []string{"typat", "xred"},
	},
	"nband": {
		Name: "nband", Section: "basic", Mnemonics: "Number of BANDs",
		VarType: "integer", Dimensions: "scalar", Default: "automatic",
		Text: "Number of bands computed at every k point. For insulators a handful above the valence " +
			"count is enough; metals need a buffer wide enough to cover the smearing window.",
		SeeAlso: []string{"nbdbuf", "occopt"},
	},
	"nbdbuf": {
		Name: "nbdbuf", Section: "gstate", Mnemonics: "Number of BanDs for the BUFfer",
		VarType: "integer", Dimensions: "scalar", Default: "0",
		Text: "Highest bands excluded from the convergence test of the wavefunction residuals. " +
			"A buffer of two to four bands avoids chasing the poorly conditioned top states.",
		SeeAlso: []string{"nband", "tolwfr"},
	},
	"ngkpt": {
		Name: "ngkpt", Section: "basic", Mnemonics: "Number of Grid points for K PoinTs generation",
		VarType: "integer array", Dimensions: "[3]", Default: "no default",
		Requires: "kptopt > 0",
		Text: "Divisions of the Monkhorst-Pack mesh along the three reciprocal translations. " +
			"The mesh is combined with every shiftk vector and folded into the irreducible wedge. " +
			"This is the parameter a k-point convergence study sweeps.",
		SeeAlso: []string{"shiftk", "nshiftk", "kptopt", "kptrlatt"},
	},
	"nshiftk": {
		Name: "nshiftk", Section: "basic", Mnemonics: "Number of SHIFTs for K point grids",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Number of shift vectors applied to the homogeneous mesh, between 1 and 8. " +
			"Face-centered lattices commonly use the four-shift set.",
		SeeAlso: []string{"shiftk", "ngkpt"},
	},
	"nsppol": {
		Name: "nsppol", Section: "basic", Mnemonics: "Number of SPin POLarization",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "1 for spin-unpolarized, 2 for collinear spin-polarized calculations.",
	},
	"nstep": {
		Name: "nstep", Section: "basic", Mnemonics: "Number of (non-)self-consistent field STEPS",
		VarType: "integer", Dimensions: "scalar", Default: "30",
		Text: "Upper bound on SCF iterations. When the cycle hits nstep before the tolerance is met " +
			"the engine emits ScfConvergenceWarning and the task is a candidate for restart.",
		SeeAlso: []string{"toldfe", "tolvrs", "tolwfr"},
	},
	"ntime": {
		Name: "ntime", Section: "rlx", Mnemonics: "Number of TIME steps",
		VarType: "integer", Dimensions: "scalar", Default: "0",
		Text: "Maximum number of relaxation or molecular-dynamics steps.",
		SeeAlso: []string{"ionmov"},
	},
	"ntypat": {
		Name: "ntypat", Section: "basic", Mnemonics: "Number of TYPes of AToms",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Number of atom types. Governs the length of znucl; every typat entry indexes into it.",
		SeeAlso: []string{"znucl", "typat"},
	},
	"occopt": {
		Name: "occopt", Section: "basic", Mnemonics: "OCCupation OPTion",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Occupation scheme. 1 fixes semiconductor occupations; 3 to 7 are metallic smearing " +
			"schemes whose width is tsmear. Metals must converge the k-point mesh together with tsmear.",
		SeeAlso: []string{"tsmear", "nband"},
	},
	"paral_kgb": {
		Name: "paral_kgb", Section: "paral", Mnemonics: "activate PARALlelization over K-point, G-vectors and Bands",
		VarType: "integer", Dimensions: "scalar", Default: "0",
		Text: "Activates the combined k-point, G-vector and band distribution of the workload. " +
			"Usually set indirectly through autoparal.",
		SeeAlso: []string{"autoparal"},
	},
	"pawecutdg": {
		Name: "pawecutdg", Section: "paw", Mnemonics: "PAW - Energy CUToff for the Double Grid",
		VarType: "real", Dimensions: "scalar", Default: "-1",
		Requires: "usepaw == 1",
		Text: "Cutoff of the fine PAW grid, in Hartree. Must be at least ecut and is typically " +
			"two to three times larger.",
		SeeAlso: []string{"ecut"},
	},
	"pp_dirpath": {
		Name: "pp_dirpath", Section: "files", Mnemonics: "PseudoPotential DIRectory PATH",
		VarType: "string", Dimensions: "scalar", Default: `""`,
		Text: "Directory prefixed to every entry of pseudos.",
		SeeAlso: []string{"pseudos"},
	},
	"prtden": {
		Name: "prtden", Section: "files", Mnemonics: "PRinT the DENsity",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Writes the density file at the end of the run. Switch off in sweep tasks that only " +
			"need the total energy to keep the task directories small.",
		SeeAlso: []string{"prtwf"},
	},
	"prtwf": {
		Name: "prtwf", Section: "files", Mnemonics: "PRinT the WaveFunction",
		VarType: "integer", Dimensions: "scalar", Default: "1",
		Text: "Writes the wavefunction file at the end of the run. Required for restarts that read " +
			"the previous wavefunctions.",
		SeeAlso: []string{"prtden"},
	},
	"pseudos": {
		Name: "pseudos", Section: "files", Mnemonics: "PSEUDOpotential files",
		VarType: "string", Dimensions: "[ntypat]", Default: "no default",
		Text: "Comma-separated pseudopotential file names, one per atom type, in znucl order.",
		SeeAlso: []string{"pp_dirpath", "znucl"},
	},
	"rprim": {
		Name: "rprim", Section: "basic", Mnemonics: "Real space PRIMitive translations",
		VarType: "real array", Dimensions: "(3, 3)", Default: "identity",
		Text: "Dimensionless primitive translations, one vector per row, each later scaled by acell. " +
			"The rows must be linearly independent.",
		SeeAlso: []string{"acell"},
	},
	"scalecart": {
		Name: "scalecart", Section: "basic", Mnemonics: "SCALE CARTesian coordinates",
		VarType: "real array", Dimensions: "[3]", Default: "1",
		Text: "Scales the three Cartesian directions of the cell. An alternative to acell for " +
			"cells whose rprim vectors are given in Cartesian form.",
		SeeAlso: []string{"acell", "rprim"},
	},
	"shiftk": {
		Name: "shiftk", Section: "basic", Mnemonics: "SHIFT for K points",
		VarType: "real array", Dimensions: "(3, nshiftk)", Default: "0.5 0.5 0.5",
		Text: "Shift vectors of the homogeneous mesh, in reduced coordinates of the reciprocal " +
			"super-lattice. Half-shifts usually sample better than the unshifted Gamma-centered mesh.",
		SeeAlso: []string{"nshiftk", "ngkpt"},
	},
	"toldfe": {
		Name: "toldfe", Section: "basic", Mnemonics: "TOLerance on the DiFference of total Energy",
		VarType: "real", Dimensions: "scalar", Default: "0.0 (inactive)",
		Text: "Stops the SCF cycle when the total energy changes by less than toldfe, in Hartree, " +
			"twice in a row. Exactly one tol* criterion must be active per dataset.",
		SeeAlso: []string{"tolvrs", "tolwfr", "nstep"},
	},
	"tolsym": {
		Name: "tolsym", Section: "geo", Mnemonics: "TOLERANCE for SYMmetries",
		VarType: "real", Dimensions: "scalar", Default: "1.0e-5",
		Text: "Tolerance used when recognizing the symmetry of the input geometry.",
	},
	"tolvrs": {
		Name: "tolvrs", Section: "basic", Mnemonics: "TOLerance on the potential V(R) ReSiduals",
		VarType: "real", Dimensions: "scalar", Default: "0.0 (inactive)",
		Text: "Stops the SCF cycle on the squared residual of the potential. The criterion of choice " +
			"when forces or a density for restarts are needed.",
		SeeAlso: []string{"toldfe", "tolwfr"},
	},
	"tolwfr": {
		Name: "tolwfr", Section: "basic", Mnemonics: "TOLerance on WaveFunction squared Residual",
		VarType: "real", Dimensions: "scalar", Default: "0.0 (inactive)",
		Text: "Stops the cycle when the largest squared wavefunction residual falls below tolwfr. " +
			"The only criterion available to non-self-consistent runs.",
		SeeAlso: []string{"toldfe", "tolvrs", "nbdbuf"},
	},
	"tsmear": {
		Name: "tsmear", Section: "gstate", Mnemonics: "Temperature of SMEARing",
		VarType: "real", Dimensions: "scalar", Default: "0.01",
		Requires: "occopt in 3..7",
		Text: "Broadening width of the metallic occupation schemes, in Hartree. The k-point mesh and " +
			"tsmear converge jointly: smaller smearing demands denser meshes.",
		SeeAlso: []string{"occopt", "ngkpt"},
	},
	"typat": {
		Name: "typat", Section: "basic", Mnemonics: "TYPE of AToms",
		VarType: "integer array", Dimensions: "[natom]", Default: "1",
		Text: "Type index of every atom, pointing into znucl. Values run from 1 to ntypat.",
		SeeAlso: []string{"znucl", "natom"},
	},
	"xred": {
		Name: "xred", Section: "basic", Mnemonics: "vectors (X) of atom positions in REDuced coordinates",
		VarType: "real array", Dimensions: "(3, natom)", Default: "0",
		Text: "Atomic positions as fractions of the primitive translations.",
		SeeAlso: []string{"acell", "rprim"},
	},
	"znucl": {
		Name: "znucl", Section: "basic", Mnemonics: "charge -Z- of the NUCLeus",
		VarType: "real array", Dimensions: "[ntypat]", Default: "no default",
		Text: "Nuclear charge of each atom type, in the order the pseudopotential files are given.",
		SeeAlso: []string{"typat", "pseudos"},
	},
}

// Lookup returns the documentation of a variable by exact, case-insensitive
// name.
func Lookup(name string) (Variable, bool) {
	v, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// IsKnown reports whether the registry documents the given variable name.
// The input builder uses it to flag likely typos in decks.
func IsKnown(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Search returns every variable whose name or mnemonics contains the given
// substring, case-insensitively, sorted by name. An empty query returns the
// whole registry.
func Search(substr string) []Variable {
	needle := strings.ToLower(strings.TrimSpace(substr))

	var out []Variable
	for _, v := range registry {
		if needle == "" ||
			strings.Contains(strings.ToLower(v.Name), needle) ||
			strings.Contains(strings.ToLower(v.Mnemonics), needle) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every documented variable name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of documented variables.
func Count() int { return len(registry) }
