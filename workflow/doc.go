// Package workflow implements the step flow-control state machine, the
// bungee fan-out/fan-in executor, and the structured-generation
// pipeline that ties them to the tagged-field parser.
//
// A Runner holds steps in registration order. Each step's update
// function returns a Signal directing the loop: Next advances, Stop
// ends the run, Retry re-executes the slot, Wait sleeps then advances,
// Goto jumps by step id, and Jump hands a bungee Plan to the executor.
//
// # Bungee plans
//
// An anchor step's update function builds a plan through its bound
// actions and returns the launch signal:
//
//	func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
//	    if state.GetString("chapter_0") != "" {
//	        return act.Goto("assemble") // reentry: workers already ran
//	    }
//	    b := act.Bungee().Concurrency(2)
//	    for i := 0; i < 5; i++ {
//	        b.To("write_chapter", map[string]any{"index": i})
//	    }
//	    return b.Launch()
//	}
//
// The executor runs one worker per destination under the concurrency
// cap, each against a telescoped view of shared state. After fan-in
// the anchor is re-executed ("reentry"), which is why anchors check
// state for worker results: on first reach they dispatch, on reentry
// they collect.
//
// # Concurrency
//
// Shared state is the only shared mutable resource. Every merge is one
// atomic operation; concurrent workers writing the same key race
// last-write-wins with no conflict detection. Stop prevents new work
// from starting but does not cancel workers already in flight.
package workflow
