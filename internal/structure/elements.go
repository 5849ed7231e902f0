package structure

import "fmt"

// elementSymbols maps the nuclear charge Z to the element symbol, covering
// hydrogen through lawrencium. Index 0 is unused so that Z indexes directly.
var elementSymbols = [...]string{
	"",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba",
	"La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er",
	"Tm", "Yb", "Lu",
	"Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra",
	"Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm",
	"Md", "No", "Lr",
}

// ElementSymbol returns the chemical symbol for the nuclear charge z.
// The engine stores znucl as a float to allow alchemical mixing; fractional
// charges and charges outside the known table render as "Z<value>" so that
// formulas stay printable.
func ElementSymbol(z float64) string {
	zi := int(z)
	if float64(zi) == z && zi >= 1 && zi < len(elementSymbols) {
		return elementSymbols[zi]
	}
	return fmt.Sprintf("Z%g", z)
}
