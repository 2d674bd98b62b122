package gaussian

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/acymer/aimd/internal/config"
	"github.com/acymer/aimd/internal/system"
)

// WriteDeck renders the next input deck: resource directives, the keyword
// line verbatim from the configuration, title, charge/multiplicity and the
// atom table in system order. Frozen atoms are written like any other; the
// engine always computes forces for every atom and freezing stays a
// driver-side constraint.
func WriteDeck(w io.Writer, sys *system.System, cfg *config.Config) error {
	bw := bufio.NewWriter(w)

	if cfg.Mem != "" {
		fmt.Fprintf(bw, "%%Mem=%s\n", cfg.Mem)
	}
	if cfg.CPU != "" {
		fmt.Fprintf(bw, "%%CPU=%s\n", cfg.CPU)
	}
	if cfg.GPU != "" {
		fmt.Fprintf(bw, "%%GPUCPU=%s\n", cfg.GPU)
	}
	if cfg.Checkpoint != "" {
		fmt.Fprintf(bw, "%%Chk=%s\n", cfg.Checkpoint)
	}
	fmt.Fprintf(bw, "%s\n\n", cfg.KeyWords)
	fmt.Fprintf(bw, "%s\n\n", cfg.Title)
	fmt.Fprintf(bw, "%d %d\n", sys.Charge, sys.Multiplicity)
	for i := range sys.Atoms {
		a := &sys.Atoms[i]
		fmt.Fprintf(bw, "%s %.5f %.5f %.5f\n", a.Symbol, a.Pos.X, a.Pos.Y, a.Pos.Z)
	}
	// Gaussian requires a trailing blank line after the molecule section.
	fmt.Fprintln(bw)

	return bw.Flush()
}

// WriteDeckFile writes the deck to path, truncating any previous step's deck.
func WriteDeckFile(path string, sys *system.System, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDeck(f, sys, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
