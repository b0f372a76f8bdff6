package workflow

// SignalKind discriminates the flow-control signal union.
type SignalKind string

const (
	// SignalNext advances to the following slot.
	SignalNext SignalKind = "next"

	// SignalStop ends the run gracefully.
	SignalStop SignalKind = "stop"

	// SignalRetry re-executes the current slot.
	SignalRetry SignalKind = "retry"

	// SignalWait sleeps for the runner's wait interval, then advances.
	SignalWait SignalKind = "wait"

	// SignalGoto jumps to the slot holding the target step.
	SignalGoto SignalKind = "goto"

	// SignalBungee hands a fan-out plan to the bungee executor.
	SignalBungee SignalKind = "bungee"

	// signalFail halts the run with an error. Synthesized internally,
	// never returned by update functions.
	signalFail SignalKind = "fail"
)

// Signal is the tagged value a step's update function returns to
// direct the run loop. Construct signals through the bound Actions or
// the package-level constructors.
type Signal struct {
	Kind   SignalKind
	Target string // Goto target step id
	Plan   *Plan  // Bungee plan
	err    error  // fail cause
}

// Next returns a signal advancing to the following slot.
func Next() Signal { return Signal{Kind: SignalNext} }

// Stop returns a signal ending the run gracefully.
func Stop() Signal { return Signal{Kind: SignalStop} }

// Retry returns a signal re-executing the current slot.
func Retry() Signal { return Signal{Kind: SignalRetry} }

// Wait returns a signal that sleeps for the wait interval, then advances.
func Wait() Signal { return Signal{Kind: SignalWait} }

// Goto returns a signal jumping to the named step. An unknown target
// is fatal for the whole run.
func Goto(stepID string) Signal { return Signal{Kind: SignalGoto, Target: stepID} }

// Jump returns a signal handing the plan to the bungee executor.
func Jump(plan *Plan) Signal { return Signal{Kind: SignalBungee, Plan: plan} }

func failSignal(err error) Signal { return Signal{Kind: signalFail, err: err} }
