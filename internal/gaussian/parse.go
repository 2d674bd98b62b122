// Package gaussian speaks the engine's text formats: it scrapes geometry,
// forces and energy out of output files and renders the next input deck.
package gaussian

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrParse classifies every malformed-output failure, including the
	// consistency checks done by callers. Exit-code mapping keys on it.
	ErrParse = errors.New("gaussian: malformed output")

	// ErrNoCoordinates reports an output with no orientation table at all.
	// An engine run that produced one is unusable and must abort the step.
	ErrNoCoordinates = fmt.Errorf("%w: no coordinate block found", ErrParse)

	// ErrNoForces reports an output that carries geometry but no force
	// table, in a run that needs forces to integrate.
	ErrNoForces = fmt.Errorf("%w: no force block found", ErrParse)
)

// Snapshot is the result of one engine invocation: the converged geometry
// (the last orientation block in the output), optionally the force table and
// the final SCF energy. Coordinates are in angstrom, forces in hartree/bohr,
// energy in hartree.
type Snapshot struct {
	Numbers   []int
	Coords    []r3.Vec
	Forces    []r3.Vec
	Energy    float64
	HasEnergy bool
}

// Parse scans engine output in a single forward pass. Outputs routinely
// contain several orientation tables per run; only the last one reflects the
// final geometry, so each completed block replaces the previous candidate.
// The same holds for force tables and SCF energies.
func Parse(r io.Reader) (*Snapshot, error) {
	var (
		snap       Snapshot
		curNumbers []int
		curCoords  []r3.Vec
		curForces  []r3.Vec
		inCoords   bool
		inForces   bool
	)

	closeCoords := func() {
		if inCoords && len(curNumbers) > 0 {
			snap.Numbers = curNumbers
			snap.Coords = curCoords
		}
		inCoords = false
	}
	closeForces := func() {
		if inForces && len(curForces) > 0 {
			snap.Forces = curForces
		}
		inForces = false
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		switch {
		case strings.Contains(line, "Standard orientation:"),
			strings.Contains(line, "Input orientation:"):
			closeCoords()
			closeForces()
			inCoords = true
			curNumbers = nil
			curCoords = nil
			continue
		case strings.Contains(line, "Forces (Hartrees/Bohr)"):
			closeCoords()
			closeForces()
			inForces = true
			curForces = nil
			continue
		case strings.Contains(line, "SCF Done"):
			if e, ok := scfEnergy(line); ok {
				snap.Energy = e
				snap.HasEnergy = true
			}
		}

		if inCoords {
			if z, v, ok := coordRow(line); ok {
				curNumbers = append(curNumbers, z)
				curCoords = append(curCoords, v)
			} else if len(curNumbers) > 0 {
				// First non-row line after data ends the block; lines
				// between the header and the first row are column labels.
				closeCoords()
			}
		}
		if inForces {
			if v, ok := forceRow(line); ok {
				curForces = append(curForces, v)
			} else if len(curForces) > 0 {
				closeForces()
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	closeCoords()
	closeForces()

	if len(snap.Numbers) == 0 {
		return nil, ErrNoCoordinates
	}
	if snap.Forces != nil && len(snap.Forces) != len(snap.Numbers) {
		return nil, fmt.Errorf("%w: force table has %d rows for %d atoms",
			ErrParse, len(snap.Forces), len(snap.Numbers))
	}
	return &snap, nil
}

// coordRow matches one orientation table row:
// center number, atomic number, atomic type, x, y, z.
func coordRow(line string) (z int, v r3.Vec, ok bool) {
	f := strings.Fields(line)
	if len(f) != 6 {
		return 0, r3.Vec{}, false
	}
	if _, err := strconv.Atoi(f[0]); err != nil {
		return 0, r3.Vec{}, false
	}
	z, err := strconv.Atoi(f[1])
	if err != nil {
		return 0, r3.Vec{}, false
	}
	if _, err := strconv.Atoi(f[2]); err != nil {
		return 0, r3.Vec{}, false
	}
	v, ok = vec3(f[3:])
	return z, v, ok
}

// forceRow matches one force table row: center number, atomic number, fx, fy, fz.
func forceRow(line string) (v r3.Vec, ok bool) {
	f := strings.Fields(line)
	if len(f) != 5 {
		return r3.Vec{}, false
	}
	if _, err := strconv.Atoi(f[0]); err != nil {
		return r3.Vec{}, false
	}
	if _, err := strconv.Atoi(f[1]); err != nil {
		return r3.Vec{}, false
	}
	return vec3(f[2:])
}

func vec3(f []string) (r3.Vec, bool) {
	var v [3]float64
	for i, s := range f[:3] {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r3.Vec{}, false
		}
		v[i] = x
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, true
}

// scfEnergy pulls the energy out of an "SCF Done:  E(...) = -76.408 A.U."
// line: the first token that parses as a float.
func scfEnergy(line string) (float64, bool) {
	for _, f := range strings.Fields(line) {
		if e, err := strconv.ParseFloat(f, 64); err == nil {
			return e, true
		}
	}
	return 0, false
}
