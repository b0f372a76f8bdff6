package workflow

// Actions is the bound set of control actions handed to a step's
// update function: the signal constructors, UpdateState, and a bungee
// plan builder scoped to this step as anchor.
//
// Bungee workers receive a restricted Actions: UpdateState still
// merges into the shared state, but flow control is disabled: the
// executor ignores a worker's returned signal, and a worker's plan
// builder launches nothing. A worker may only signal completion of its
// own unit of work.
type Actions struct {
	stepID string
	state  *State
	worker bool
}

func newActions(stepID string, state *State) *Actions {
	return &Actions{stepID: stepID, state: state}
}

func newWorkerActions(stepID string, state *State) *Actions {
	return &Actions{stepID: stepID, state: state, worker: true}
}

// UpdateState shallow-merges values into the shared state as one
// atomic operation. Concurrent workers writing the same key race
// last-write-wins; the state never holds a mix of two writes.
func (a *Actions) UpdateState(values map[string]any) {
	a.state.Merge(values)
}

// Next advances to the following slot.
func (a *Actions) Next() Signal { return Next() }

// Stop ends the run gracefully.
func (a *Actions) Stop() Signal { return Stop() }

// Retry re-executes the current slot.
func (a *Actions) Retry() Signal { return Retry() }

// Wait sleeps for the runner's wait interval, then advances.
func (a *Actions) Wait() Signal { return Wait() }

// Goto jumps to the named step.
func (a *Actions) Goto(stepID string) Signal { return Goto(stepID) }

// Bungee returns a plan builder anchored at this step. Call To for
// each destination, then Launch to obtain the signal to return.
func (a *Actions) Bungee() *PlanBuilder {
	return newPlanBuilder(a.stepID, a.worker)
}
