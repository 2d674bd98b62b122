// Package checkpoint persists the full trajectory state so a run can resume
// exactly where it stopped. A checkpoint file is written atomically and
// never edited afterwards: resuming reads it, and the next completed step
// replaces it with a new one.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/acymer/aimd/internal/system"
)

// ErrIncompatible reports a checkpoint that structurally mismatches the
// current configuration. Resuming such a run is rejected outright.
var ErrIncompatible = errors.New("checkpoint incompatible with current configuration")

// AtomRecord is the persisted form of one atom. Forces are part of the
// record because the next integration phase needs F(t) immediately after a
// resume.
type AtomRecord struct {
	Symbol string  `json:"symbol"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	VZ     float64 `json:"vz"`
	FX     float64 `json:"fx"`
	FY     float64 `json:"fy"`
	FZ     float64 `json:"fz"`
	Frozen bool    `json:"frozen"`
}

// Checkpoint is one fully completed step of a trajectory.
type Checkpoint struct {
	Step         int          `json:"step"`
	Time         float64      `json:"time_fs"`
	Charge       int          `json:"charge"`
	Multiplicity int          `json:"multiplicity"`
	Atoms        []AtomRecord `json:"atoms"`
	Fingerprint  string       `json:"configFingerprint"`
	SavedAt      time.Time    `json:"timestamp"`
}

// Manager owns a single checkpoint path. The design assumes one driver per
// simulation directory; nothing else writes this file.
type Manager struct {
	Path string
}

func NewManager(path string) *Manager {
	return &Manager{Path: path}
}

// Save persists the system atomically: the record is written to a temporary
// file in the same directory, synced, then renamed over the previous
// checkpoint. A crash mid-write leaves the old checkpoint intact.
func (m *Manager) Save(sys *system.System, fingerprint string) error {
	ck := fromSystem(sys, fingerprint)

	dir := filepath.Dir(m.Path)
	tmp, err := os.CreateTemp(dir, ".ckpt-*")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ck); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.Path); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint back.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", m.Path, err)
	}
	return &ck, nil
}

// Validate rejects resuming when the persisted atom count or configuration
// fingerprint does not match the current run.
func (m *Manager) Validate(ck *Checkpoint, natoms int, fingerprint string) error {
	if len(ck.Atoms) != natoms {
		return fmt.Errorf("%w: checkpoint has %d atoms, configuration expects %d",
			ErrIncompatible, len(ck.Atoms), natoms)
	}
	if ck.Fingerprint != fingerprint {
		return fmt.Errorf("%w: fingerprint mismatch", ErrIncompatible)
	}
	return nil
}

// Restore rebuilds the in-memory system from a checkpoint.
func (ck *Checkpoint) Restore() (*system.System, error) {
	atoms := make([]system.Atom, len(ck.Atoms))
	for i, rec := range ck.Atoms {
		z, ok := system.AtomicNumber(rec.Symbol)
		if !ok {
			return nil, fmt.Errorf("checkpoint: unknown element %q", rec.Symbol)
		}
		a, err := system.NewAtom(i+1, z, r3.Vec{X: rec.X, Y: rec.Y, Z: rec.Z})
		if err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		a.Frozen = rec.Frozen
		if !rec.Frozen {
			a.Vel = r3.Vec{X: rec.VX, Y: rec.VY, Z: rec.VZ}
		}
		a.Force = r3.Vec{X: rec.FX, Y: rec.FY, Z: rec.FZ}
		atoms[i] = a
	}
	if len(atoms) == 0 {
		return nil, fmt.Errorf("checkpoint: no atoms")
	}
	return &system.System{
		Atoms:        atoms,
		Charge:       ck.Charge,
		Multiplicity: ck.Multiplicity,
		Step:         ck.Step,
		Time:         ck.Time,
	}, nil
}

func fromSystem(sys *system.System, fingerprint string) *Checkpoint {
	atoms := make([]AtomRecord, len(sys.Atoms))
	for i := range sys.Atoms {
		a := &sys.Atoms[i]
		atoms[i] = AtomRecord{
			Symbol: a.Symbol,
			X:      a.Pos.X, Y: a.Pos.Y, Z: a.Pos.Z,
			VX: a.Vel.X, VY: a.Vel.Y, VZ: a.Vel.Z,
			FX: a.Force.X, FY: a.Force.Y, FZ: a.Force.Z,
			Frozen: a.Frozen,
		}
	}
	return &Checkpoint{
		Step:         sys.Step,
		Time:         sys.Time,
		Charge:       sys.Charge,
		Multiplicity: sys.Multiplicity,
		Atoms:        atoms,
		Fingerprint:  fingerprint,
		SavedAt:      time.Now().UTC(),
	}
}
