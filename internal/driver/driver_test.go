package driver_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/checkpoint"
	"github.com/acymer/aimd/internal/config"
	"github.com/acymer/aimd/internal/driver"
	"github.com/acymer/aimd/internal/engine"
	"github.com/acymer/aimd/internal/gaussian"
	"github.com/acymer/aimd/internal/system"
)

// writeSeed renders a plausible engine output file for a three-atom water
// system, optionally with a force table, to seed a fresh trajectory.
func writeSeed(dir string, withForces bool) string {
	coords := [][3]float64{
		{0, 0, 0.11779},
		{0, 0.75545, -0.47116},
		{0, -0.75545, -0.47116},
	}
	numbers := []int{8, 1, 1}

	out := "                         Standard orientation:\n"
	out += " ---------------------------------------------------------------------\n"
	out += " Center     Atomic      Atomic             Coordinates (Angstroms)\n"
	out += " Number     Number       Type             X           Y           Z\n"
	out += " ---------------------------------------------------------------------\n"
	for i, c := range coords {
		out += fmt.Sprintf("    %3d        %3d           0    %12.6f%12.6f%12.6f\n",
			i+1, numbers[i], c[0], c[1], c[2])
	}
	out += " ---------------------------------------------------------------------\n"
	out += " SCF Done:  E(RB3LYP) =  -76.4089879     A.U. after    7 cycles\n"
	if withForces {
		out += " Center     Atomic                   Forces (Hartrees/Bohr)\n"
		out += " Number     Number              X              Y              Z\n"
		out += " -------------------------------------------------------------------\n"
		for i, n := range numbers {
			out += fmt.Sprintf("    %3d      %3d    %15.9f%15.9f%15.9f\n", i+1, n, 0.0, 0.0, 0.0)
		}
		out += " -------------------------------------------------------------------\n"
	}

	path := filepath.Join(dir, "seed.out")
	Expect(os.WriteFile(path, []byte(out), 0644)).To(Succeed())
	return path
}

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.KeyWords = "#P B3LYP/6-31G(d) Force"
	cfg.Title = "suite"
	cfg.TimeStep = 0.5
	cfg.NumSteps = 4
	return cfg
}

// garbageEngine succeeds but emits output with no coordinate block.
type garbageEngine struct{}

func (garbageEngine) Run(context.Context, string) (string, error) {
	return " Entering Gaussian System\n Error termination via Lnk1e\n", nil
}

func newDriver(dir string, cfg *config.Config, eng engine.Engine) *driver.Driver {
	mgr := checkpoint.NewManager(filepath.Join(dir, "save.json"))
	d, err := driver.New(cfg, eng, mgr, filepath.Join(dir, "input.com"))
	Expect(err).NotTo(HaveOccurred())
	return d
}

func atomStates(sys *system.System) []r3.Vec {
	out := make([]r3.Vec, 0, 2*len(sys.Atoms))
	for _, a := range sys.Atoms {
		out = append(out, a.Pos, a.Vel)
	}
	return out
}

var _ = Describe("Driver", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Describe("zero-force dynamics", func() {
		It("leaves every atom untouched with zero initial velocities", func() {
			cfg := baseConfig()
			frozen, err := config.ParseRanges("1-2")
			Expect(err).NotTo(HaveOccurred())
			cfg.Freeze = frozen
			d := newDriver(dir, cfg, &engine.Stub{Force: engine.ZeroForce, Energy: -76.4})

			seed := writeSeed(dir, true)
			Expect(d.Init(context.Background(), seed)).To(Succeed())
			before := atomStates(d.System())

			Expect(d.Run(context.Background())).To(Succeed())

			sys := d.System()
			Expect(sys.Step).To(Equal(4))
			after := atomStates(sys)
			for i := range before {
				Expect(after[i].X).To(BeNumerically("~", before[i].X, 1e-12))
				Expect(after[i].Y).To(BeNumerically("~", before[i].Y, 1e-12))
				Expect(after[i].Z).To(BeNumerically("~", before[i].Z, 1e-12))
			}
		})
	})

	Describe("freeze invariant", func() {
		It("keeps frozen atoms fixed under a strong constant force", func() {
			cfg := baseConfig()
			cfg.Freeze = []int{1}
			push := func(int, r3.Vec) r3.Vec { return r3.Vec{X: 0.05} }
			d := newDriver(dir, cfg, &engine.Stub{Force: push})

			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())
			frozenPos := d.System().Atoms[0].Pos

			Expect(d.Run(context.Background())).To(Succeed())

			sys := d.System()
			Expect(sys.Atoms[0].Pos).To(Equal(frozenPos))
			Expect(sys.Atoms[0].Vel).To(Equal(r3.Vec{}))
			// The movable atoms must have been pushed.
			Expect(sys.Atoms[1].Pos.X).To(BeNumerically(">", 0))
		})
	})

	Describe("determinism", func() {
		It("reproduces the trajectory bit for bit across runs", func() {
			harmonic := func(_ int, pos r3.Vec) r3.Vec { return r3.Scale(-0.01, pos) }

			run := func(runDir string) []r3.Vec {
				cfg := baseConfig()
				cfg.NumSteps = 6
				d := newDriver(runDir, cfg, &engine.Stub{Force: harmonic, Energy: -76.0})
				Expect(d.Init(context.Background(), writeSeed(runDir, true))).To(Succeed())
				Expect(d.Run(context.Background())).To(Succeed())
				return atomStates(d.System())
			}

			a := run(GinkgoT().TempDir())
			b := run(GinkgoT().TempDir())
			Expect(a).To(Equal(b))
		})
	})

	Describe("restart", func() {
		harmonic := func(_ int, pos r3.Vec) r3.Vec { return r3.Scale(-0.01, pos) }

		It("continues a trajectory exactly where it stopped", func() {
			// Uninterrupted reference: 6 steps in one go.
			refDir := GinkgoT().TempDir()
			refCfg := baseConfig()
			refCfg.NumSteps = 6
			ref := newDriver(refDir, refCfg, &engine.Stub{Force: harmonic})
			Expect(ref.Init(context.Background(), writeSeed(refDir, true))).To(Succeed())
			Expect(ref.Run(context.Background())).To(Succeed())

			// Split run: 3 steps, then resume from the checkpoint to 6.
			cfg := baseConfig()
			cfg.NumSteps = 3
			first := newDriver(dir, cfg, &engine.Stub{Force: harmonic})
			Expect(first.Init(context.Background(), writeSeed(dir, true))).To(Succeed())
			Expect(first.Run(context.Background())).To(Succeed())

			cfg2 := baseConfig()
			cfg2.NumSteps = 6
			cfg2.Restart = true
			second := newDriver(dir, cfg2, &engine.Stub{Force: harmonic})
			Expect(second.Init(context.Background(), "")).To(Succeed())
			Expect(second.System().Step).To(Equal(3))
			Expect(second.Run(context.Background())).To(Succeed())

			want := atomStates(ref.System())
			got := atomStates(second.System())
			for i := range want {
				Expect(got[i].X).To(BeNumerically("~", want[i].X, 1e-12))
				Expect(got[i].Y).To(BeNumerically("~", want[i].Y, 1e-12))
				Expect(got[i].Z).To(BeNumerically("~", want[i].Z, 1e-12))
			}
		})

		It("rejects resuming with a structurally different configuration", func() {
			cfg := baseConfig()
			d := newDriver(dir, cfg, &engine.Stub{})
			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())
			Expect(d.Run(context.Background())).To(Succeed())

			cfg2 := baseConfig()
			cfg2.TimeStep = 0.25 // changes the fingerprint
			cfg2.Restart = true
			d2 := newDriver(dir, cfg2, &engine.Stub{})
			err := d2.Init(context.Background(), "")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, checkpoint.ErrIncompatible)).To(BeTrue())
		})
	})

	Describe("engine failure", func() {
		It("retries with the same deck and then succeeds", func() {
			cfg := baseConfig()
			cfg.NumSteps = 1
			cfg.MaxRetries = 2
			stub := &engine.Stub{FailNext: 2}
			d := newDriver(dir, cfg, stub)
			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())
			Expect(d.Run(context.Background())).To(Succeed())
			Expect(stub.Calls).To(Equal(3))
		})

		It("escalates to fatal once retries are exhausted, preserving the checkpoint", func() {
			cfg := baseConfig()
			cfg.NumSteps = 3
			cfg.MaxRetries = 1
			// Step 1 succeeds, then the engine dies for good.
			stub := &engine.Stub{}
			d := newDriver(dir, cfg, stub)
			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())

			d.AddObserver(observerFunc(func(s driver.Summary) {
				if s.Step == 1 {
					stub.FailNext = 1 << 30
				}
			}))

			err := d.Run(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, engine.ErrFailure)).To(BeTrue())

			var se *driver.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(2))
			Expect(se.State).To(Equal(driver.StateRunEngine))

			// The checkpoint still holds the last good step.
			ck, loadErr := checkpoint.NewManager(filepath.Join(dir, "save.json")).Load()
			Expect(loadErr).NotTo(HaveOccurred())
			Expect(ck.Step).To(Equal(1))
		})
	})

	Describe("parse failure", func() {
		It("aborts when the output has no coordinate block", func() {
			cfg := baseConfig()
			d := newDriver(dir, cfg, garbageEngine{})
			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())

			err := d.Run(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, gaussian.ErrNoCoordinates)).To(BeTrue())
		})

		It("fails on the seed file before invoking the engine", func() {
			seed := filepath.Join(dir, "seed.out")
			Expect(os.WriteFile(seed, []byte("nothing useful\n"), 0644)).To(Succeed())

			stub := &engine.Stub{}
			d := newDriver(dir, baseConfig(), stub)
			err := d.Init(context.Background(), seed)
			Expect(errors.Is(err, gaussian.ErrNoCoordinates)).To(BeTrue())
			Expect(stub.Calls).To(BeZero())
		})
	})

	Describe("seeding", func() {
		It("bootstraps initial forces when the seed file has none", func() {
			stub := &engine.Stub{Force: engine.ZeroForce, Energy: -76.4}
			d := newDriver(dir, baseConfig(), stub)
			Expect(d.Init(context.Background(), writeSeed(dir, false))).To(Succeed())
			Expect(stub.Calls).To(Equal(1))
		})

		It("draws reproducible thermal velocities when asked", func() {
			velocities := func(runDir string) []r3.Vec {
				cfg := baseConfig()
				cfg.InitTempK = 300
				cfg.Seed = 1234
				d := newDriver(runDir, cfg, &engine.Stub{})
				Expect(d.Init(context.Background(), writeSeed(runDir, true))).To(Succeed())
				out := make([]r3.Vec, 0)
				for _, a := range d.System().Atoms {
					out = append(out, a.Vel)
				}
				return out
			}

			a := velocities(GinkgoT().TempDir())
			b := velocities(GinkgoT().TempDir())
			Expect(a).To(Equal(b))
			Expect(a[0]).NotTo(Equal(r3.Vec{}))
		})
	})

	Describe("cancellation", func() {
		It("stops at a step boundary with a complete checkpoint on disk", func() {
			cfg := baseConfig()
			cfg.NumSteps = 100
			d := newDriver(dir, cfg, &engine.Stub{})
			Expect(d.Init(context.Background(), writeSeed(dir, true))).To(Succeed())

			ctx, cancel := context.WithCancel(context.Background())
			d.AddObserver(observerFunc(func(s driver.Summary) {
				if s.Step == 2 {
					cancel()
				}
			}))

			err := d.Run(ctx)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			ck, loadErr := checkpoint.NewManager(filepath.Join(dir, "save.json")).Load()
			Expect(loadErr).NotTo(HaveOccurred())
			Expect(ck.Step).To(Equal(2))
		})
	})
})

type observerFunc func(driver.Summary)

func (f observerFunc) OnStep(s driver.Summary) { f(s) }
