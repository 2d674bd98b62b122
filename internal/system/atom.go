package system

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Atom is one nucleus of the simulated system. Index is stable and 1-based,
// matching the engine-reported atom order. Positions are in angstrom,
// velocities in angstrom/fs, forces in amu*angstrom/fs^2.
type Atom struct {
	Index  int
	Z      int
	Symbol string
	Mass   float64
	Pos    r3.Vec
	Vel    r3.Vec
	Force  r3.Vec
	Frozen bool
}

type element struct {
	symbol string
	mass   float64
}

// Standard atomic weights, keyed by atomic number.
var elements = map[int]element{
	1:  {"H", 1.008},
	2:  {"He", 4.0026},
	3:  {"Li", 6.94},
	4:  {"Be", 9.0122},
	5:  {"B", 10.81},
	6:  {"C", 12.011},
	7:  {"N", 14.007},
	8:  {"O", 15.999},
	9:  {"F", 18.998},
	10: {"Ne", 20.180},
	11: {"Na", 22.990},
	12: {"Mg", 24.305},
	14: {"Si", 28.085},
	15: {"P", 30.974},
	16: {"S", 32.06},
	17: {"Cl", 35.45},
	18: {"Ar", 39.948},
	19: {"K", 39.098},
	20: {"Ca", 40.078},
	26: {"Fe", 55.845},
	29: {"Cu", 63.546},
	30: {"Zn", 65.38},
	35: {"Br", 79.904},
	47: {"Ag", 107.87},
	53: {"I", 126.90},
	78: {"Pt", 195.08},
	79: {"Au", 196.97},
}

// AtomicNumber maps an element symbol back to its atomic number.
func AtomicNumber(symbol string) (int, bool) {
	for z, el := range elements {
		if el.symbol == symbol {
			return z, true
		}
	}
	return 0, false
}

// NewAtom builds an atom from its atomic number, deriving symbol and mass.
// Unknown atomic numbers are rejected.
func NewAtom(index, z int, pos r3.Vec) (Atom, error) {
	el, ok := elements[z]
	if !ok {
		return Atom{}, fmt.Errorf("atomic number %d is not supported", z)
	}
	return Atom{
		Index:  index,
		Z:      z,
		Symbol: el.symbol,
		Mass:   el.mass,
		Pos:    pos,
	}, nil
}
