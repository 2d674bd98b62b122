// Package report persists per-step output: an XYZ trajectory and a
// plain-text energy log. Both are driver observers and both open their
// files in append mode, so a restarted run continues the same files.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/acymer/aimd/internal/driver"
)

// Trajectory appends one XYZ frame per completed step. With compression
// enabled each run contributes one gzip member; readers that handle
// multi-member streams (gunzip, zcat) see a single concatenated file.
type Trajectory struct {
	f   *os.File
	gz  *gzip.Writer
	w   *bufio.Writer
	err error
}

func OpenTrajectory(path string, compress bool) (*Trajectory, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	t := &Trajectory{f: f}
	if compress {
		t.gz = gzip.NewWriter(f)
		t.w = bufio.NewWriter(t.gz)
	} else {
		t.w = bufio.NewWriter(f)
	}
	return t, nil
}

func (t *Trajectory) OnStep(s driver.Summary) {
	if t.err != nil {
		return
	}
	fmt.Fprintf(t.w, "%d\n", len(s.Sys.Atoms))
	if s.HasPotential {
		fmt.Fprintf(t.w, "step %d  t= %.3f fs  E= %.6f kJ/mol\n", s.Step, s.Time, s.Total)
	} else {
		fmt.Fprintf(t.w, "step %d  t= %.3f fs\n", s.Step, s.Time)
	}
	for _, a := range s.Sys.Atoms {
		fmt.Fprintf(t.w, "%-2s %14.8f %14.8f %14.8f\n", a.Symbol, a.Pos.X, a.Pos.Y, a.Pos.Z)
	}
	t.err = t.w.Flush()
}

// Close flushes buffered frames and closes the file. The first write error
// during the run, if any, is reported here.
func (t *Trajectory) Close() error {
	flushErr := t.w.Flush()
	if t.gz != nil {
		if err := t.gz.Close(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	if err := t.f.Close(); err != nil && flushErr == nil {
		flushErr = err
	}
	if t.err != nil {
		return t.err
	}
	return flushErr
}

// OpenTrajectoryReader opens a trajectory for reading, transparently
// decompressing when the file starts with a gzip magic number.
func OpenTrajectoryReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		gr.Multistream(true)
		return &trajReader{Reader: gr, closers: []io.Closer{gr, f}}, nil
	}
	return &trajReader{Reader: br, closers: []io.Closer{f}}, nil
}

type trajReader struct {
	io.Reader
	closers []io.Closer
}

func (r *trajReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
