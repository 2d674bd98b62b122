// Package tui renders a live terminal view of a running trajectory:
// per-step energies, temperature and an energy chart. The view is strictly
// an observer; quitting it never stops the simulation.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/acymer/aimd/internal/driver"
)

const (
	graphWidth      = 64
	graphHeight     = 12
	historyCapacity = 600
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg carries one completed step into the UI.
type StepMsg driver.Summary

// DoneMsg signals that the run finished; Err is nil on success.
type DoneMsg struct{ Err error }

// Model is the bubbletea model for the live view. Feed it through a Feeder
// attached to the driver.
type Model struct {
	numSteps int
	last     driver.Summary
	have     bool
	history  []float64
	done     bool
	err      error
}

func NewModel(numSteps int) Model {
	return Model{
		numSteps: numSteps,
		history:  make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case StepMsg:
		m.last = driver.Summary(msg)
		m.have = true
		m.history = append(m.history, m.last.Total)
		if len(m.history) > historyCapacity {
			m.history = m.history[len(m.history)-historyCapacity:]
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("aimd trajectory"))
	b.WriteString("\n")

	if !m.have {
		b.WriteString(valueStyle.Render("waiting for the first step..."))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q: detach (run continues)"))
		return b.String()
	}

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("step", fmt.Sprintf("%d / %d", m.last.Step, m.numSteps))
	row("time", fmt.Sprintf("%.3f fs", m.last.Time))
	if m.last.HasPotential {
		row("potential", fmt.Sprintf("%.4f kJ/mol", m.last.Potential))
	}
	row("kinetic", fmt.Sprintf("%.4f kJ/mol", m.last.Kinetic))
	row("total", fmt.Sprintf("%.4f kJ/mol", m.last.Total))
	row("temperature", fmt.Sprintf("%.1f K", m.last.Sys.Temperature()))

	if len(m.history) >= 2 {
		b.WriteString(graphStyle.Render(asciigraph.Plot(m.history,
			asciigraph.Width(graphWidth),
			asciigraph.Height(graphHeight),
			asciigraph.Caption("total energy (kJ/mol)"),
		)))
		b.WriteString("\n")
	}

	if m.done {
		if m.err != nil {
			b.WriteString(doneStyle.Render(fmt.Sprintf("run failed: %v", m.err)))
		} else {
			b.WriteString(doneStyle.Render("run complete"))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q: detach (run continues)"))
	return b.String()
}

// Feeder forwards driver summaries into a running bubbletea program. It is
// safe to leave attached after the program exits; Send on a finished
// program is a no-op.
type Feeder struct {
	prog *tea.Program
}

func NewFeeder(prog *tea.Program) *Feeder { return &Feeder{prog: prog} }

func (f *Feeder) OnStep(s driver.Summary) {
	// The view must not retain the live system; snapshot what it renders.
	s.Sys = s.Sys.Clone()
	f.prog.Send(StepMsg(s))
}

// Done tells the view the run is over.
func (f *Feeder) Done(err error) { f.prog.Send(DoneMsg{Err: err}) }
