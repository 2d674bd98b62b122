package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/system"
)

// ForceFunc computes the stub force, in hartree/bohr, on the atom with the
// given 1-based index at the given position.
type ForceFunc func(index int, pos r3.Vec) r3.Vec

// ZeroForce is the degenerate engine: every atom feels nothing.
func ZeroForce(int, r3.Vec) r3.Vec { return r3.Vec{} }

// Stub is a deterministic in-memory engine for tests. It reads the atom
// table back out of the deck, applies Force to each atom and renders output
// in the engine's own text format, so a run through the stub exercises the
// real deck writer and the real parser.
type Stub struct {
	Force    ForceFunc
	Energy   float64 // hartree, reported on every run
	FailNext int     // fail this many invocations before succeeding
	Calls    int
}

func (s *Stub) Run(_ context.Context, deckPath string) (string, error) {
	s.Calls++
	if s.FailNext > 0 {
		s.FailNext--
		return "", fmt.Errorf("%w: stub forced failure", ErrFailure)
	}

	symbols, coords, err := readDeckAtoms(deckPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailure, err)
	}

	force := s.Force
	if force == nil {
		force = ZeroForce
	}

	var b strings.Builder
	b.WriteString("                         Standard orientation:\n")
	b.WriteString(" ---------------------------------------------------------------------\n")
	b.WriteString(" Center     Atomic      Atomic             Coordinates (Angstroms)\n")
	b.WriteString(" Number     Number       Type             X           Y           Z\n")
	b.WriteString(" ---------------------------------------------------------------------\n")
	for i, sym := range symbols {
		z, ok := system.AtomicNumber(sym)
		if !ok {
			return "", fmt.Errorf("%w: deck has unknown element %q", ErrFailure, sym)
		}
		fmt.Fprintf(&b, "    %3d        %3d           0    %12.6f%12.6f%12.6f\n",
			i+1, z, coords[i].X, coords[i].Y, coords[i].Z)
	}
	b.WriteString(" ---------------------------------------------------------------------\n")
	fmt.Fprintf(&b, " SCF Done:  E(Stub) = %16.9f     A.U. after    1 cycles\n", s.Energy)
	b.WriteString(" Center     Atomic                   Forces (Hartrees/Bohr)\n")
	b.WriteString(" Number     Number              X              Y              Z\n")
	b.WriteString(" -------------------------------------------------------------------\n")
	for i, sym := range symbols {
		z, _ := system.AtomicNumber(sym)
		f := force(i+1, coords[i])
		fmt.Fprintf(&b, "    %3d      %3d    %15.9f%15.9f%15.9f\n", i+1, z, f.X, f.Y, f.Z)
	}
	b.WriteString(" -------------------------------------------------------------------\n")
	b.WriteString(" Normal termination.\n")
	return b.String(), nil
}

// readDeckAtoms scans a deck for its molecule section: symbol x y z rows
// after the charge/multiplicity line.
func readDeckAtoms(path string) (symbols []string, coords []r3.Vec, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 4 {
			continue
		}
		var v [3]float64
		ok := true
		for i, s := range fields[1:] {
			v[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		symbols = append(symbols, fields[0])
		coords = append(coords, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("deck %s has no atom table", path)
	}
	return symbols, coords, nil
}
