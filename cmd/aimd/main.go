package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/acymer/aimd/internal/checkpoint"
	"github.com/acymer/aimd/internal/config"
	"github.com/acymer/aimd/internal/driver"
	"github.com/acymer/aimd/internal/engine"
	"github.com/acymer/aimd/internal/gaussian"
	"github.com/acymer/aimd/internal/metrics"
	"github.com/acymer/aimd/internal/report"
	"github.com/acymer/aimd/internal/tui"
)

// Distinct exit codes per failure class, so schedulers and wrapper scripts
// can tell a bad config from a dead engine.
const (
	exitConfig  = 2
	exitParse   = 3
	exitEngine  = 4
	exitRestart = 5
)

var (
	configFile string
	workDir    string
	timeStep   float64
	numSteps   int
	freezeSpec string
	restart    bool
	live       bool
	plotWidth  int
	plotHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "aimd",
		Short:         "ab initio molecular dynamics driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", ".", "simulation directory")

	runCmd := &cobra.Command{
		Use:   "run [seed-output-file]",
		Short: "run a trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTrajectory,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Float64Var(&timeStep, "time-step", config.DefaultTimeStep, "integration time step (fs)")
	runCmd.Flags().IntVar(&numSteps, "num-steps", config.DefaultNumSteps, "number of steps to run")
	runCmd.Flags().StringVar(&freezeSpec, "freeze", "", "1-based atom ranges to freeze, e.g. 1-10,90-100")
	runCmd.Flags().BoolVar(&restart, "restart", false, "resume from the checkpoint in the simulation directory")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live terminal view")

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "plot the energy log of a simulation directory",
		Args:  cobra.NoArgs,
		RunE:  plotEnergy,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 72, "chart width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 14, "chart height")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "summarize the checkpoint of a simulation directory",
		Args:  cobra.NoArgs,
		RunE:  inspectCheckpoint,
	}

	rootCmd.AddCommand(runCmd, plotCmd, inspectCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "aimd: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, checkpoint.ErrIncompatible):
		return exitRestart
	case errors.Is(err, engine.ErrFailure):
		return exitEngine
	case errors.Is(err, gaussian.ErrParse):
		return exitParse
	}
	return 1
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
	}

	cfg.TimeStep = timeStep
	cfg.NumSteps = numSteps
	cfg.Restart = restart
	if freezeSpec != "" {
		frozen, err := config.ParseRanges(freezeSpec)
		if err != nil {
			return nil, err
		}
		cfg.Freeze = frozen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTrajectory(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seedPath := ""
	if len(args) == 1 {
		seedPath = args[0]
	}
	if !cfg.Restart && seedPath == "" {
		return fmt.Errorf("%w: a seed output file is required unless --restart is set", config.ErrInvalid)
	}

	eng := &engine.Exec{
		Command:    cfg.Command,
		OutputPath: filepath.Join(workDir, "output.log"),
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
	}
	ckpt := checkpoint.NewManager(filepath.Join(workDir, "checkpoint.json"))

	d, err := driver.New(cfg, eng, ckpt, filepath.Join(workDir, "input.com"))
	if err != nil {
		return err
	}
	if err := d.Init(cmd.Context(), seedPath); err != nil {
		return err
	}

	trajPath := filepath.Join(workDir, "trajectory.xyz")
	if cfg.Compress {
		trajPath += ".gz"
	}
	traj, err := report.OpenTrajectory(trajPath, cfg.Compress)
	if err != nil {
		return err
	}
	// Close is where a failed trajectory or energy write surfaces (the
	// observers cannot return errors mid-run); a full disk must not pass
	// for a clean exit.
	defer func() {
		if cerr := traj.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("trajectory: %w", cerr)
		}
	}()
	d.AddObserver(traj)

	elog, err := report.OpenEnergyLog(filepath.Join(workDir, "energy.dat"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := elog.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("energy log: %w", cerr)
		}
	}()
	d.AddObserver(elog)

	drift := metrics.NewEnergyDrift()
	temps := metrics.NewTemperatureStats()
	d.AddObserver(drift)
	d.AddObserver(temps)

	if live {
		return runLive(cmd.Context(), d, cfg.NumSteps)
	}

	d.AddObserver(progressPrinter{})
	if err := d.Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("trajectory complete: %d steps, %.3f fs\n", d.System().Step, d.System().Time)
	if drift.Samples() > 0 {
		fmt.Printf("energy drift: %.6f kJ/mol (max %.6f)\n", drift.Last(), drift.Max())
	}
	if temps.Samples() > 0 {
		fmt.Printf("temperature: mean %.1f K (min %.1f, max %.1f)\n", temps.Mean(), temps.Min(), temps.Max())
	}
	return nil
}

// runLive drives the simulation in a goroutine while bubbletea owns the
// terminal. Quitting the view detaches it; the run itself finishes (or is
// interrupted by the signal context) independently.
func runLive(ctx context.Context, d *driver.Driver, numSteps int) error {
	prog := tea.NewProgram(tui.NewModel(numSteps))
	feeder := tui.NewFeeder(prog)
	d.AddObserver(feeder)

	runErr := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		feeder.Done(err)
		runErr <- err
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("live view: %w", err)
	}
	return <-runErr
}

type progressPrinter struct{}

func (progressPrinter) OnStep(s driver.Summary) {
	if s.HasPotential {
		fmt.Printf("step %6d  t= %10.3f fs  E= %16.6f kJ/mol\n", s.Step, s.Time, s.Total)
		return
	}
	fmt.Printf("step %6d  t= %10.3f fs\n", s.Step, s.Time)
}

func plotEnergy(cmd *cobra.Command, args []string) error {
	es, err := report.ReadEnergySeries(filepath.Join(workDir, "energy.dat"))
	if err != nil {
		return err
	}
	fmt.Println(report.PlotEnergy(es, plotWidth, plotHeight))
	return nil
}

func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	ck, err := checkpoint.NewManager(filepath.Join(workDir, "checkpoint.json")).Load()
	if err != nil {
		return err
	}

	frozen := 0
	for _, a := range ck.Atoms {
		if a.Frozen {
			frozen++
		}
	}
	fmt.Printf("step:          %d\n", ck.Step)
	fmt.Printf("time:          %.3f fs\n", ck.Time)
	fmt.Printf("atoms:         %d (%d frozen)\n", len(ck.Atoms), frozen)
	fmt.Printf("charge:        %d\n", ck.Charge)
	fmt.Printf("multiplicity:  %d\n", ck.Multiplicity)
	fmt.Printf("saved:         %s\n", ck.SavedAt.Format(time.RFC3339))
	fmt.Printf("fingerprint:   %s\n", ck.Fingerprint)
	return nil
}
