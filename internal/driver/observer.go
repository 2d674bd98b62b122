package driver

import "github.com/acymer/aimd/internal/system"

// Summary describes one completed step. Energies are in kJ/mol; Potential
// is only meaningful when HasPotential is set (the engine may not report an
// energy on every run). Sys points at the driver's live state: observers may
// read it during OnStep but must not retain or mutate it.
type Summary struct {
	Step         int
	Time         float64
	Potential    float64
	Kinetic      float64
	Total        float64
	HasPotential bool
	Sys          *system.System
}

// Observer is notified after every fully completed step, including the
// seeded step 0. Observation is synchronous; slow observers slow the run.
type Observer interface {
	OnStep(s Summary)
}
