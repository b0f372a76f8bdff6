package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStep indicates a Goto or bungee destination referenced
	// a step id that was never registered. Always fatal, never retried.
	ErrUnknownStep = errors.New("workflow: unknown step id")

	// ErrRetryBudgetExceeded indicates a step failed more times than
	// its retry budget allows. Fatal for the whole run.
	ErrRetryBudgetExceeded = errors.New("workflow: retry budget exceeded")

	// ErrUnrecoverableValidation indicates a structured response failed
	// schema validation even after one repair round-trip. The run loop
	// maps this to a retry of the step, charged against the same
	// budget as transport errors.
	ErrUnrecoverableValidation = errors.New("workflow: unrecoverable validation failure")

	// ErrNoProvider indicates a generative step ran on a runner with
	// no completion provider configured.
	ErrNoProvider = errors.New("workflow: no completion provider configured")
)

// StepError wraps an error from a step's execution.
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workflow: step %q failed: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PlanError wraps a bungee worker failure that escalated to a fatal
// run failure.
type PlanError struct {
	PlanID string
	Anchor string
	Err    error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("workflow: bungee plan %s (anchor %q) failed: %v", e.PlanID, e.Anchor, e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}
