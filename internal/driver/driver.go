// Package driver runs the simulation loop: it seeds or resumes the system,
// then repeatedly writes an input deck, invokes the engine, parses the
// forces, completes the velocity-Verlet step, and checkpoints. Steps are
// strictly sequential; each deck depends on the previous step's parsed
// output.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/acymer/aimd/internal/checkpoint"
	"github.com/acymer/aimd/internal/config"
	"github.com/acymer/aimd/internal/engine"
	"github.com/acymer/aimd/internal/gaussian"
	"github.com/acymer/aimd/internal/integrate"
	"github.com/acymer/aimd/internal/system"
	"github.com/acymer/aimd/internal/units"
)

// Driver owns one trajectory. At most one driver may operate on a given
// simulation directory; the checkpoint file is a single-writer resource.
type Driver struct {
	cfg    *config.Config
	eng    engine.Engine
	ckpt   *checkpoint.Manager
	verlet *integrate.Verlet

	deckPath    string
	fingerprint string

	sys       *system.System
	potential float64 // kJ/mol, from the last engine run that reported one
	hasPot    bool
	observers []Observer
}

// New assembles a driver. The engine implementation is injected; production
// wires the subprocess engine, tests wire a deterministic stub.
func New(cfg *config.Config, eng engine.Engine, ckpt *checkpoint.Manager, deckPath string) (*Driver, error) {
	v, err := integrate.New(cfg.TimeStep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return &Driver{
		cfg:         cfg,
		eng:         eng,
		ckpt:        ckpt,
		verlet:      v,
		deckPath:    deckPath,
		fingerprint: cfg.Fingerprint(),
	}, nil
}

func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

// System exposes the current state, for inspection after a run.
func (d *Driver) System() *system.System { return d.sys }

// Init prepares the starting system: from the checkpoint when restarting,
// otherwise from the user-supplied seed output file. All failures here are
// fatal before any trajectory work happens.
func (d *Driver) Init(ctx context.Context, seedPath string) error {
	if d.cfg.Restart {
		return d.loadCheckpoint()
	}
	return d.parseSeed(ctx, seedPath)
}

func (d *Driver) loadCheckpoint() error {
	ck, err := d.ckpt.Load()
	if err != nil {
		return &StepError{State: StateLoadCheckpoint, Err: err}
	}
	sys, err := ck.Restore()
	if err != nil {
		return &StepError{State: StateLoadCheckpoint, Err: err}
	}
	if err := d.ckpt.Validate(ck, len(sys.Atoms), d.fingerprint); err != nil {
		return &StepError{State: StateLoadCheckpoint, Err: err}
	}
	if err := d.verlet.Check(sys); err != nil {
		return &StepError{State: StateLoadCheckpoint, Err: fmt.Errorf("%w: %v", config.ErrInvalid, err)}
	}
	d.sys = sys
	return nil
}

func (d *Driver) parseSeed(ctx context.Context, seedPath string) error {
	fail := func(err error) error {
		return &StepError{State: StateParseSeed, Err: err}
	}

	f, err := os.Open(seedPath)
	if err != nil {
		return fail(err)
	}
	snap, err := gaussian.Parse(f)
	f.Close()
	if err != nil {
		return fail(fmt.Errorf("%s: %w", seedPath, err))
	}

	sys, err := system.FromGeometry(snap.Numbers, snap.Coords, d.cfg.Charge, d.cfg.Multiplicity)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", config.ErrInvalid, err))
	}
	if err := sys.Freeze(d.cfg.Freeze); err != nil {
		return fail(fmt.Errorf("%w: %v", config.ErrInvalid, err))
	}
	if err := d.verlet.Check(sys); err != nil {
		return fail(fmt.Errorf("%w: %v", config.ErrInvalid, err))
	}

	// Velocities start at zero unless a thermal start was asked for.
	if d.cfg.InitTempK > 0 {
		sys.Thermalize(d.cfg.InitTempK, rand.New(rand.NewSource(d.cfg.Seed)))
	}
	d.sys = sys

	if snap.Forces != nil {
		if err := sys.ApplyForces(snap.Forces); err != nil {
			return fail(err)
		}
		d.recordEnergy(snap)
		return nil
	}
	// The seed file carried no forces; one bootstrap engine call at the
	// seed geometry provides F(0).
	if err := d.evaluateForces(ctx); err != nil {
		return err
	}
	return nil
}

// Run executes the loop until the configured step count is reached, the
// context is cancelled, or a step fails. Cancellation is honored only at
// step boundaries: an in-flight engine call and its checkpoint always
// complete, so the on-disk checkpoint reflects a fully finished step.
func (d *Driver) Run(ctx context.Context) error {
	if d.sys == nil {
		return &StepError{State: StateInit, Err: errors.New("driver not initialized")}
	}

	if d.sys.Step == 0 {
		// Persist and report the seeded state before any dynamics, so a
		// crash during step 1 can restart from the very beginning.
		if err := d.ckpt.Save(d.sys, d.fingerprint); err != nil {
			return &StepError{Step: 0, State: StateCheckpoint, Err: err}
		}
		d.notify()
	}

	for d.sys.Step < d.cfg.NumSteps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.step(ctx); err != nil {
			return err
		}
		d.notify()
	}
	return nil
}

// step advances the trajectory by exactly one velocity-Verlet step.
func (d *Driver) step(ctx context.Context) error {
	stepNum := d.sys.Step + 1
	fail := func(state State, err error) error {
		return &StepError{Step: stepNum, State: state, Err: err}
	}

	d.verlet.Advance(d.sys)

	if err := d.evaluateForces(ctx); err != nil {
		// Tag with this step's index; evaluateForces reports state.
		var se *StepError
		if errors.As(err, &se) {
			se.Step = stepNum
		}
		return err
	}

	d.verlet.Complete(d.sys)
	d.sys.Step = stepNum
	d.sys.Time += d.cfg.TimeStep

	if err := d.ckpt.Save(d.sys, d.fingerprint); err != nil {
		return fail(StateCheckpoint, err)
	}
	return nil
}

// evaluateForces writes the deck for the current geometry, runs the engine
// (with bounded retries on engine failure), parses the output and applies
// the forces to the system.
func (d *Driver) evaluateForces(ctx context.Context) error {
	if err := gaussian.WriteDeckFile(d.deckPath, d.sys, d.cfg); err != nil {
		return &StepError{Step: d.sys.Step, State: StateWriteInput, Err: err}
	}

	out, err := d.runEngine(ctx)
	if err != nil {
		return &StepError{Step: d.sys.Step, State: StateRunEngine, Err: err}
	}

	snap, err := gaussian.Parse(strings.NewReader(out))
	if err != nil {
		return &StepError{Step: d.sys.Step, State: StateParseOutput, Err: err}
	}
	if len(snap.Numbers) != len(d.sys.Atoms) {
		return &StepError{Step: d.sys.Step, State: StateParseOutput,
			Err: fmt.Errorf("%w: engine reported %d atoms, system has %d",
				gaussian.ErrParse, len(snap.Numbers), len(d.sys.Atoms))}
	}
	if snap.Forces == nil {
		return &StepError{Step: d.sys.Step, State: StateParseOutput, Err: gaussian.ErrNoForces}
	}
	if err := d.sys.ApplyForces(snap.Forces); err != nil {
		return &StepError{Step: d.sys.Step, State: StateParseOutput, Err: err}
	}
	d.recordEnergy(snap)
	return nil
}

// runEngine invokes the engine, retrying on engine failure with the same
// deck: the deck describes a pure function of the geometry, so re-running it
// is safe. The engine call is shielded from outer cancellation; the per-call
// timeout inside the engine still applies.
func (d *Driver) runEngine(ctx context.Context) (string, error) {
	engCtx := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		out, err := d.eng.Run(engCtx, d.deckPath)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, engine.ErrFailure) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("retries exhausted after %d attempts: %w", d.cfg.MaxRetries+1, lastErr)
}

func (d *Driver) recordEnergy(snap *gaussian.Snapshot) {
	if snap.HasEnergy {
		d.potential = units.PotentialKJMol(snap.Energy)
		d.hasPot = true
	}
}

func (d *Driver) notify() {
	kin := d.sys.KineticEnergy()
	s := Summary{
		Step:         d.sys.Step,
		Time:         d.sys.Time,
		Potential:    d.potential,
		Kinetic:      kin,
		Total:        d.potential + kin,
		HasPotential: d.hasPot,
		Sys:          d.sys,
	}
	if !d.hasPot {
		s.Total = kin
	}
	for _, o := range d.observers {
		o.OnStep(s)
	}
}
