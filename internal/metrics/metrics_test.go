package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/driver"
	"github.com/acymer/aimd/internal/system"
)

func summary(t *testing.T, step int, total float64, speed float64) driver.Summary {
	t.Helper()
	sys, err := system.FromGeometry([]int{18}, []r3.Vec{{}}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	sys.Atoms[0].Vel = r3.Vec{X: speed}
	sys.Step = step
	return driver.Summary{
		Step:         step,
		Total:        total,
		HasPotential: true,
		Sys:          sys,
	}
}

func TestEnergyDrift(t *testing.T) {
	d := NewEnergyDrift()

	d.OnStep(summary(t, 0, -100.0, 0))
	d.OnStep(summary(t, 1, -100.2, 0))
	d.OnStep(summary(t, 2, -99.9, 0))

	if got := d.Last(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("last drift = %g, want 0.1", got)
	}
	if got := d.Max(); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("max drift = %g, want 0.2", got)
	}
	if d.Samples() != 3 {
		t.Errorf("samples = %d, want 3", d.Samples())
	}

	d.Reset()
	if d.Samples() != 0 || d.Max() != 0 {
		t.Error("reset did not clear the metric")
	}
}

func TestEnergyDriftIgnoresMissingPotential(t *testing.T) {
	d := NewEnergyDrift()
	s := summary(t, 1, -50.0, 0)
	s.HasPotential = false
	d.OnStep(s)
	if d.Samples() != 0 {
		t.Errorf("samples = %d, want 0", d.Samples())
	}
}

func TestTemperatureStatsSkipsSeedStep(t *testing.T) {
	ts := NewTemperatureStats()

	ts.OnStep(summary(t, 0, 0, 0.5)) // seed step, ignored
	ts.OnStep(summary(t, 1, 0, 0.01))
	ts.OnStep(summary(t, 2, 0, 0.02))

	if ts.Samples() != 2 {
		t.Fatalf("samples = %d, want 2", ts.Samples())
	}
	if ts.Min() <= 0 || ts.Max() <= ts.Min() {
		t.Errorf("min/max not ordered: min=%g max=%g", ts.Min(), ts.Max())
	}
	mean := ts.Mean()
	if mean <= ts.Min() || mean >= ts.Max() {
		t.Errorf("mean %g outside [%g, %g]", mean, ts.Min(), ts.Max())
	}
}
