package driver

import "fmt"

// State names one node of the driver's step machine. A failing operation is
// reported with the state it failed in, so a dead run says which component
// gave up and at which step.
type State int

const (
	StateInit State = iota
	StateLoadCheckpoint
	StateParseSeed
	StateIntegrate
	StateWriteInput
	StateRunEngine
	StateParseOutput
	StateCheckpoint
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:           "init",
	StateLoadCheckpoint: "load-checkpoint",
	StateParseSeed:      "parse-seed",
	StateIntegrate:      "integrate",
	StateWriteInput:     "write-input",
	StateRunEngine:      "run-engine",
	StateParseOutput:    "parse-output",
	StateCheckpoint:     "checkpoint",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError wraps a failure with the step index and state it occurred in.
type StepError struct {
	Step  int
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.State, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
