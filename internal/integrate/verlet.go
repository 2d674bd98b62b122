// Package integrate advances the molecular system through time with the
// velocity-Verlet scheme. One simulation step is split in two phases because
// the engine call sits between them: Advance performs the half-kick and
// drift with the current forces, then once the engine has reported forces at
// the new geometry, Complete performs the second half-kick.
package integrate

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/system"
)

// Verlet integrates with a fixed timestep, in femtoseconds.
type Verlet struct {
	Dt float64
}

// New validates the timestep and returns an integrator.
func New(dt float64) (*Verlet, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("timestep must be positive, got %g", dt)
	}
	return &Verlet{Dt: dt}, nil
}

// Check rejects systems that cannot be integrated. A non-positive mass is a
// configuration error and must be caught before the first step, not surface
// as NaN positions halfway through a trajectory.
func (v *Verlet) Check(sys *system.System) error {
	for i := range sys.Atoms {
		if sys.Atoms[i].Mass <= 0 {
			return fmt.Errorf("atom %d (%s) has non-positive mass %g",
				sys.Atoms[i].Index, sys.Atoms[i].Symbol, sys.Atoms[i].Mass)
		}
	}
	return nil
}

// Advance performs the first phase: v(t+dt/2) = v(t) + (dt/2) F(t)/m and
// r(t+dt) = r(t) + dt v(t+dt/2). Frozen atoms keep zero velocity and their
// position, whatever force the engine reported for them.
func (v *Verlet) Advance(sys *system.System) {
	for i := range sys.Atoms {
		a := &sys.Atoms[i]
		if a.Frozen {
			a.Vel = r3.Vec{}
			continue
		}
		a.Vel = r3.Add(a.Vel, r3.Scale(0.5*v.Dt/a.Mass, a.Force))
		a.Pos = r3.Add(a.Pos, r3.Scale(v.Dt, a.Vel))
	}
}

// Complete performs the second phase after the system's forces have been
// replaced with F(t+dt): v(t+dt) = v(t+dt/2) + (dt/2) F(t+dt)/m.
func (v *Verlet) Complete(sys *system.System) {
	for i := range sys.Atoms {
		a := &sys.Atoms[i]
		if a.Frozen {
			a.Vel = r3.Vec{}
			continue
		}
		a.Vel = r3.Add(a.Vel, r3.Scale(0.5*v.Dt/a.Mass, a.Force))
	}
}
