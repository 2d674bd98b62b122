// Package metrics accumulates running statistics over a trajectory. Each
// metric is a driver observer; attach it before the run and read it after.
package metrics

import (
	"math"

	"github.com/acymer/aimd/internal/driver"
)

// EnergyDrift tracks how far the total energy wanders from its value at the
// first observed step. For a stable integration the drift stays small; a
// growing drift means the time step is too large for the system.
type EnergyDrift struct {
	initial float64
	maxAbs  float64
	last    float64
	samples int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (d *EnergyDrift) OnStep(s driver.Summary) {
	if !s.HasPotential {
		return
	}
	if d.samples == 0 {
		d.initial = s.Total
	}
	d.samples++
	d.last = s.Total - d.initial
	if a := math.Abs(d.last); a > d.maxAbs {
		d.maxAbs = a
	}
}

// Max returns the largest absolute deviation seen, in kJ/mol.
func (d *EnergyDrift) Max() float64 { return d.maxAbs }

// Last returns the deviation at the most recent step, in kJ/mol.
func (d *EnergyDrift) Last() float64 { return d.last }

func (d *EnergyDrift) Samples() int { return d.samples }

func (d *EnergyDrift) Reset() { *d = EnergyDrift{} }

// TemperatureStats averages the instantaneous temperature over the run.
// Step 0 is skipped when velocities start at zero; a cold start would bias
// the mean downward.
type TemperatureStats struct {
	sum     float64
	min     float64
	max     float64
	samples int
}

func NewTemperatureStats() *TemperatureStats { return &TemperatureStats{} }

func (t *TemperatureStats) OnStep(s driver.Summary) {
	if s.Step == 0 {
		return
	}
	temp := s.Sys.Temperature()
	if t.samples == 0 {
		t.min, t.max = temp, temp
	}
	t.sum += temp
	t.samples++
	if temp < t.min {
		t.min = temp
	}
	if temp > t.max {
		t.max = temp
	}
}

// Mean returns the average temperature in K, or 0 with no samples.
func (t *TemperatureStats) Mean() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *TemperatureStats) Min() float64 { return t.min }

func (t *TemperatureStats) Max() float64 { return t.max }

func (t *TemperatureStats) Samples() int { return t.samples }

func (t *TemperatureStats) Reset() { *t = TemperatureStats{} }
