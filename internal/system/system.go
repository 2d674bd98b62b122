// Package system holds the in-memory molecular state of one trajectory:
// the ordered atom list with positions, velocities and forces, plus the
// energy bookkeeping derived from them. Atom count and order are fixed for
// the lifetime of a simulation.
package system

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/units"
)

// System is the full dynamic state of a trajectory at one point in time.
type System struct {
	Atoms        []Atom
	Charge       int
	Multiplicity int
	Step         int
	Time         float64 // elapsed simulated time, fs
}

// FromGeometry builds a fresh system from engine-reported atomic numbers and
// coordinates, in engine order. Velocities and forces start at zero.
func FromGeometry(numbers []int, coords []r3.Vec, charge, multiplicity int) (*System, error) {
	if len(numbers) != len(coords) {
		return nil, fmt.Errorf("geometry mismatch: %d atomic numbers, %d coordinates", len(numbers), len(coords))
	}
	if len(numbers) == 0 {
		return nil, fmt.Errorf("geometry contains no atoms")
	}
	atoms := make([]Atom, len(numbers))
	for i, z := range numbers {
		a, err := NewAtom(i+1, z, coords[i])
		if err != nil {
			return nil, err
		}
		atoms[i] = a
	}
	return &System{Atoms: atoms, Charge: charge, Multiplicity: multiplicity}, nil
}

// ApplyForces stores engine-reported forces (hartree/bohr), converting them
// to working units. The slice must cover every atom.
func (s *System) ApplyForces(forcesAu []r3.Vec) error {
	if len(forcesAu) != len(s.Atoms) {
		return fmt.Errorf("force table has %d rows for %d atoms", len(forcesAu), len(s.Atoms))
	}
	for i, f := range forcesAu {
		s.Atoms[i].Force = r3.Scale(units.HartreePerBohrToWorking, f)
	}
	return nil
}

// Freeze marks the given 1-based atom indices as frozen and zeroes their
// velocities. Indices outside the atom range are rejected.
func (s *System) Freeze(indices []int) error {
	for _, idx := range indices {
		if idx < 1 || idx > len(s.Atoms) {
			return fmt.Errorf("freeze index %d out of range 1..%d", idx, len(s.Atoms))
		}
		a := &s.Atoms[idx-1]
		a.Frozen = true
		a.Vel = r3.Vec{}
	}
	return nil
}

// KineticEnergy returns the total kinetic energy in kJ/mol.
func (s *System) KineticEnergy() float64 {
	sum := 0.0
	for i := range s.Atoms {
		a := &s.Atoms[i]
		sum += 0.5 * a.Mass * r3.Norm2(a.Vel)
	}
	return units.KineticKJMol(sum)
}

// Temperature returns the instantaneous temperature in kelvin.
func (s *System) Temperature() float64 {
	return units.Temperature(s.KineticEnergy(), len(s.Atoms))
}

// Thermalize draws Maxwell-Boltzmann velocities at the given temperature for
// every movable atom, removes center-of-mass drift, and rescales so the
// instantaneous temperature matches the target exactly. Frozen atoms keep
// zero velocity throughout. A zero or negative temperature leaves all
// velocities at zero.
func (s *System) Thermalize(tempK float64, rng *rand.Rand) {
	if tempK <= 0 {
		return
	}
	for i := range s.Atoms {
		a := &s.Atoms[i]
		if a.Frozen {
			continue
		}
		sigma := units.VelocitySigma(tempK, a.Mass)
		a.Vel = r3.Vec{
			X: sigma * rng.NormFloat64(),
			Y: sigma * rng.NormFloat64(),
			Z: sigma * rng.NormFloat64(),
		}
	}
	s.removeDrift()
	cur := s.Temperature()
	if cur <= 0 {
		return
	}
	scale := math.Sqrt(tempK / cur)
	for i := range s.Atoms {
		if !s.Atoms[i].Frozen {
			s.Atoms[i].Vel = r3.Scale(scale, s.Atoms[i].Vel)
		}
	}
}

// removeDrift subtracts the mass-weighted mean velocity of the movable atoms
// so the molecule does not translate as a whole.
func (s *System) removeDrift() {
	var p r3.Vec
	m := 0.0
	for i := range s.Atoms {
		a := &s.Atoms[i]
		if a.Frozen {
			continue
		}
		p = r3.Add(p, r3.Scale(a.Mass, a.Vel))
		m += a.Mass
	}
	if m == 0 {
		return
	}
	drift := r3.Scale(1/m, p)
	for i := range s.Atoms {
		if !s.Atoms[i].Frozen {
			s.Atoms[i].Vel = r3.Sub(s.Atoms[i].Vel, drift)
		}
	}
}

// Clone returns a deep copy of the system.
func (s *System) Clone() *System {
	c := *s
	c.Atoms = make([]Atom, len(s.Atoms))
	copy(c.Atoms, s.Atoms)
	return &c
}
