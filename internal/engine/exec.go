package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Exec runs the engine as a subprocess, feeding it the deck on stdin and
// capturing stdout into OutputPath, which is how Gaussian-style engines are
// conventionally driven.
type Exec struct {
	Command    string
	OutputPath string
	Timeout    time.Duration
}

func (e *Exec) Run(ctx context.Context, deckPath string) (string, error) {
	cctx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	deck, err := os.Open(deckPath)
	if err != nil {
		return "", fmt.Errorf("%w: opening deck: %v", ErrFailure, err)
	}
	defer deck.Close()

	out, err := os.Create(e.OutputPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating output file: %v", ErrFailure, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, e.Command)
	cmd.Stdin = deck
	cmd.Stdout = out
	cmd.Stderr = &stderr

	// The engine command is typically a launcher that forks workers. Those
	// children inherit the stderr pipe, so killing only the direct child
	// leaves Run blocked on the pipe until the workers exit. Put the tree in
	// its own process group, cancel by killing the group, and cap the wait
	// for stragglers still holding the pipe.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	runErr := cmd.Run()
	closeErr := out.Close()

	if cctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: timed out after %v", ErrFailure, e.Timeout)
	}
	if runErr != nil {
		return "", fmt.Errorf("%w: %v%s", ErrFailure, runErr, stderrTail(&stderr))
	}
	if closeErr != nil {
		return "", fmt.Errorf("%w: writing output: %v", ErrFailure, closeErr)
	}

	text, err := os.ReadFile(e.OutputPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading output: %v", ErrFailure, err)
	}
	if len(text) == 0 {
		return "", fmt.Errorf("%w: engine produced no output", ErrFailure)
	}
	return string(text), nil
}

func stderrTail(b *bytes.Buffer) string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return ": " + strings.Join(lines, " | ")
}
