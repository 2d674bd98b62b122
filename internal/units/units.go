// Package units is the single conversion boundary between the engine's
// native atomic units and the working units of the dynamics loop:
// length in angstrom, time in femtoseconds, mass in amu, energy in kJ/mol.
// Forces in working units are therefore amu*angstrom/fs^2.
package units

import "math"

const (
	// BohrToAngstrom converts the engine's native length unit.
	BohrToAngstrom = 0.529177210903

	// HartreeToKJMol converts the engine's native energy unit.
	HartreeToKJMol = 2625.4996394799

	// KJMolPerAmuAngSqFs2 converts a working-unit energy term
	// (amu*angstrom^2/fs^2) to kJ/mol. Exact up to the molar mass
	// constant: 1 amu * Na = 1 g/mol.
	KJMolPerAmuAngSqFs2 = 10000.0

	// HartreePerBohrToWorking converts an engine force component
	// (hartree/bohr) to working units (amu*angstrom/fs^2).
	HartreePerBohrToWorking = HartreeToKJMol / BohrToAngstrom / KJMolPerAmuAngSqFs2

	// GasConstant in kJ/(mol*K).
	GasConstant = 8.31446261815324e-3
)

// PotentialKJMol converts an engine-reported total energy (hartree) to kJ/mol.
func PotentialKJMol(hartree float64) float64 {
	return hartree * HartreeToKJMol
}

// KineticKJMol converts a working-unit kinetic term (sum of 0.5*m*v^2 in
// amu*angstrom^2/fs^2) to kJ/mol.
func KineticKJMol(working float64) float64 {
	return working * KJMolPerAmuAngSqFs2
}

// Temperature returns the instantaneous temperature in kelvin for a kinetic
// energy in kJ/mol distributed over 3n degrees of freedom.
func Temperature(kineticKJMol float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return 2 * kineticKJMol / (3 * float64(n) * GasConstant)
}

// VelocitySigma returns the standard deviation, in angstrom/fs, of one
// Maxwell-Boltzmann velocity component for an atom of the given mass at the
// given temperature.
func VelocitySigma(tempK, massAmu float64) float64 {
	if tempK <= 0 || massAmu <= 0 {
		return 0
	}
	return math.Sqrt(GasConstant * tempK / (massAmu * KJMolPerAmuAngSqFs2))
}
