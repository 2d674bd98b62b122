// Package engine runs the external quantum-chemistry program. It knows
// nothing about the content of the output it returns; interpreting it is the
// parser's job.
package engine

import (
	"context"
	"errors"
)

// ErrFailure is wrapped by every failed engine invocation: crash, non-zero
// exit, missing output or timeout. The driver retries on it with the same
// deck, since the deck describes a pure function of the geometry.
var ErrFailure = errors.New("engine failure")

// Engine executes one calculation described by the input deck at deckPath
// and returns the raw output text.
type Engine interface {
	Run(ctx context.Context, deckPath string) (string, error)
}
