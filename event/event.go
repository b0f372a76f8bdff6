// Package event provides the step-lifecycle event system used by the
// workflow runner as its observability sink. Delivery is fire-and-forget:
// Emit never blocks, and engine correctness never depends on a consumer
// draining the channel.
package event

import (
	"time"

	ai "github.com/spetersoncode/wizard"
)

// Type identifies the kind of event.
type Type string

// Run lifecycle events
const (
	// RunStart fires when a workflow run begins.
	RunStart Type = "run_start"

	// RunEnd fires when a workflow run completes.
	RunEnd Type = "run_end"

	// RunError fires when an unrecoverable error halts the run.
	RunError Type = "run_error"
)

// Step lifecycle events
const (
	// StepStart fires when a step begins executing.
	StepStart Type = "step_start"

	// StepDelta fires for each raw streamed model chunk during a
	// generative step.
	StepDelta Type = "step_delta"

	// StepEnd fires when a step completes successfully.
	StepEnd Type = "step_end"

	// StepRetry fires when a step failed and will be attempted again.
	StepRetry Type = "step_retry"

	// StepFail fires when a step exhausted its retry budget.
	StepFail Type = "step_fail"
)

// Fan-out events
const (
	// PlanStart fires when a bungee plan begins dispatching workers.
	PlanStart Type = "plan_start"

	// PlanEnd fires when all of a plan's workers have finished.
	PlanEnd Type = "plan_end"

	// WorkerStart fires when a bungee worker begins.
	WorkerStart Type = "worker_start"

	// WorkerEnd fires when a bungee worker finishes (success or failure).
	WorkerEnd Type = "worker_end"

	// Reentry fires when an anchor step is re-executed after fan-in.
	Reentry Type = "reentry"
)

// Debug events
const (
	// Paused fires when single-step mode suspends the runner between slots.
	Paused Type = "paused"

	// Resumed fires when the runner continues after an external resume.
	Resumed Type = "resumed"
)

// Event represents an observable occurrence during a workflow run.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// StepID identifies the step for step and worker events.
	StepID string

	// PlanID identifies the bungee plan for plan and worker events.
	PlanID string

	// Delta contains streamed content for StepDelta events.
	Delta string

	// Result contains the step result for StepEnd events.
	Result any

	// Snapshot contains a copy of the shared state for StepEnd and
	// RunEnd events.
	Snapshot map[string]any

	// Attempt is the attempt number (1-indexed) for StepRetry events.
	Attempt int

	// Usage reports the step's cumulative token usage on StepEnd
	// events, covering every model call the step made, retries and
	// repair round-trips included.
	Usage ai.Usage

	// Error contains the error for RunError, StepRetry, StepFail and
	// failed WorkerEnd events.
	Error error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emit sends an event with timestamp to the channel (non-blocking).
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
		// Channel full - don't block
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}
