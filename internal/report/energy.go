package report

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/acymer/aimd/internal/driver"
)

// EnergyLog appends one line per step: step index, time in fs, then
// potential, kinetic and total energy in kJ/mol. The header is written only
// when the file is empty, so restarts keep a single header.
type EnergyLog struct {
	f   *os.File
	w   *bufio.Writer
	err error
}

func OpenEnergyLog(path string) (*EnergyLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l := &EnergyLog{f: f, w: bufio.NewWriter(f)}
	if st, err := f.Stat(); err == nil && st.Size() == 0 {
		fmt.Fprintln(l.w, "# step      time_fs       potential         kinetic           total")
	}
	return l, nil
}

func (l *EnergyLog) OnStep(s driver.Summary) {
	if l.err != nil {
		return
	}
	if s.HasPotential {
		fmt.Fprintf(l.w, "%6d %12.3f %15.6f %15.6f %15.6f\n",
			s.Step, s.Time, s.Potential, s.Kinetic, s.Total)
	} else {
		fmt.Fprintf(l.w, "%6d %12.3f %15s %15.6f %15.6f\n",
			s.Step, s.Time, "n/a", s.Kinetic, s.Kinetic)
	}
	l.err = l.w.Flush()
}

func (l *EnergyLog) Close() error {
	flushErr := l.w.Flush()
	if err := l.f.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if l.err != nil {
		return l.err
	}
	return flushErr
}

// EnergySeries holds the columns of an energy log, for plotting.
type EnergySeries struct {
	Steps     []int
	Potential []float64
	Kinetic   []float64
	Total     []float64
}

// ReadEnergySeries parses an energy log written by EnergyLog. Rows whose
// potential column is "n/a" contribute to the kinetic series only.
func ReadEnergySeries(path string) (*EnergySeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	es := &EnergySeries{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("energy log %s: malformed row %q", path, line)
		}
		step, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("energy log %s: bad step in %q", path, line)
		}
		kin, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("energy log %s: bad kinetic in %q", path, line)
		}
		es.Steps = append(es.Steps, step)
		es.Kinetic = append(es.Kinetic, kin)
		if fields[2] != "n/a" {
			pot, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("energy log %s: bad potential in %q", path, line)
			}
			tot, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				return nil, fmt.Errorf("energy log %s: bad total in %q", path, line)
			}
			es.Potential = append(es.Potential, pot)
			es.Total = append(es.Total, tot)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return es, nil
}

// PlotEnergy renders the total (or, lacking potentials, kinetic) energy as
// an ASCII chart sized for a terminal.
func PlotEnergy(es *EnergySeries, width, height int) string {
	series := es.Total
	caption := "total energy (kJ/mol)"
	if len(series) == 0 {
		series = es.Kinetic
		caption = "kinetic energy (kJ/mol)"
	}
	if len(series) < 2 {
		return "not enough data to plot"
	}
	return asciigraph.Plot(series,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	)
}
