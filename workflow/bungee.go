package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spetersoncode/wizard/event"
)

// Destination is one parallel worker of a bungee plan: a target step
// plus per-worker overrides layered onto the shared state.
type Destination struct {
	StepID    string
	Overrides map[string]any
}

// Plan is a fan-out/fan-in concurrency unit: one anchor step, many
// parallel worker destinations, a concurrency cap. Plans are built by
// an anchor step's update function via Actions.Bungee and consumed
// once by the executor.
type Plan struct {
	// ID uniquely identifies the plan. Worker failures are recorded in
	// state under keys derived from it.
	ID string

	// Anchor is the step whose update function launched the plan.
	Anchor string

	// Destinations are the workers to launch.
	Destinations []Destination

	// Concurrency caps the number of workers in flight at once.
	// Zero means unlimited.
	Concurrency int

	// Optimistic launches the workers without awaiting completion; the
	// run loop continues immediately.
	Optimistic bool

	// ReturnToAnchor re-invokes the anchor step after all workers
	// finish. Defaults to true.
	ReturnToAnchor bool

	// FailOnError escalates a worker failure to a fatal run failure.
	// Defaults to true; when false, failures are visible only in state.
	FailOnError bool

	// OnComplete, when set, runs after all workers finish and its
	// return value becomes the plan's effective signal, replacing the
	// anchor reentry.
	OnComplete func(view View) Signal
}

// PlanBuilder assembles a Plan fluently.
type PlanBuilder struct {
	plan     *Plan
	disabled bool
}

func newPlanBuilder(anchor string, disabled bool) *PlanBuilder {
	return &PlanBuilder{
		plan: &Plan{
			ID:             uuid.New().String(),
			Anchor:         anchor,
			ReturnToAnchor: true,
			FailOnError:    true,
		},
		disabled: disabled,
	}
}

// To adds a destination targeting the given step with per-worker
// overrides (may be nil).
func (b *PlanBuilder) To(stepID string, overrides map[string]any) *PlanBuilder {
	b.plan.Destinations = append(b.plan.Destinations, Destination{StepID: stepID, Overrides: overrides})
	return b
}

// Concurrency caps the number of workers in flight at once.
func (b *PlanBuilder) Concurrency(n int) *PlanBuilder {
	b.plan.Concurrency = n
	return b
}

// Optimistic launches workers without awaiting their completion.
func (b *PlanBuilder) Optimistic() *PlanBuilder {
	b.plan.Optimistic = true
	return b
}

// NoReturn disables the anchor reentry; the run loop advances past the
// anchor once the workers finish.
func (b *PlanBuilder) NoReturn() *PlanBuilder {
	b.plan.ReturnToAnchor = false
	return b
}

// ContinueOnFailure keeps the run alive when a worker fails; the
// failure stays visible only in state.
func (b *PlanBuilder) ContinueOnFailure() *PlanBuilder {
	b.plan.FailOnError = false
	return b
}

// OnComplete sets a callback whose return value becomes the plan's
// effective signal.
func (b *PlanBuilder) OnComplete(fn func(view View) Signal) *PlanBuilder {
	b.plan.OnComplete = fn
	return b
}

// Launch returns the signal that hands the plan to the executor.
// From a worker's restricted actions Launch is inert: workers cannot
// launch nested plans.
func (b *PlanBuilder) Launch() Signal {
	if b.disabled {
		return Next()
	}
	return Jump(b.plan)
}

// executePlan runs a plan's workers and determines the plan's effective
// signal. The second return reports whether a signal was produced; when
// false the run loop either waits for the queued anchor reentry
// (ReturnToAnchor) or simply advances.
func (r *Runner) executePlan(ctx context.Context, plan *Plan) (Signal, bool, error) {
	event.Emit(r.events, event.Event{Type: event.PlanStart, PlanID: plan.ID, StepID: plan.Anchor})
	r.log.Info("bungee plan start",
		zap.String("plan", plan.ID),
		zap.String("anchor", plan.Anchor),
		zap.Int("destinations", len(plan.Destinations)),
		zap.Int("concurrency", plan.Concurrency))

	if plan.Optimistic {
		// Fire and forget: workers run to completion on their own and
		// the reentry, if any, is picked up at a later slot boundary.
		// An OnComplete signal has no slot to apply to and is discarded.
		go func() {
			err := r.runPlanWorkers(ctx, plan)
			r.finishPlan(plan, err)
			if err == nil || !plan.FailOnError {
				if plan.OnComplete != nil {
					plan.OnComplete(r.state)
				} else if plan.ReturnToAnchor {
					r.queueReentry(plan.Anchor)
				}
			}
		}()
		return Signal{}, false, nil
	}

	err := r.runPlanWorkers(ctx, plan)
	r.finishPlan(plan, err)
	if err != nil && plan.FailOnError {
		return Signal{}, false, &PlanError{PlanID: plan.ID, Anchor: plan.Anchor, Err: err}
	}

	if plan.OnComplete != nil {
		return plan.OnComplete(r.state), true, nil
	}
	if plan.ReturnToAnchor {
		r.queueReentry(plan.Anchor)
		return Signal{}, false, nil
	}
	return Signal{}, false, nil
}

// runPlanWorkers launches one worker per destination under the plan's
// concurrency cap and waits for all of them. The first worker error is
// returned; every worker error is also recorded in state under a
// unique per-worker key.
func (r *Runner) runPlanWorkers(ctx context.Context, plan *Plan) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	// Semaphore for concurrency limiting
	var sem chan struct{}
	if plan.Concurrency > 0 {
		sem = make(chan struct{}, plan.Concurrency)
	}

	for i, dest := range plan.Destinations {
		wg.Add(1)
		go func(i int, dest Destination) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			err := r.runWorker(ctx, plan, i, dest)
			if err != nil {
				r.state.Set(workerErrorKey(plan, i, dest), err.Error())
				r.log.Warn("bungee worker failed",
					zap.String("plan", plan.ID),
					zap.String("step", dest.StepID),
					zap.Int("worker", i),
					zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i, dest)
	}

	wg.Wait()
	return firstErr
}

// runWorker executes one destination: telescoped view, the target
// step's full model-or-compute logic, then the update function with
// worker-restricted actions. The worker's returned signal is ignored.
func (r *Runner) runWorker(ctx context.Context, plan *Plan, i int, dest Destination) error {
	event.Emit(r.events, event.Event{Type: event.WorkerStart, PlanID: plan.ID, StepID: dest.StepID})

	step, ok := r.byID[dest.StepID]
	if !ok {
		err := fmt.Errorf("%w: bungee destination %q", ErrUnknownStep, dest.StepID)
		event.Emit(r.events, event.Event{Type: event.WorkerEnd, PlanID: plan.ID, StepID: dest.StepID, Error: err})
		return err
	}

	view := r.state.Telescope(dest.Overrides)
	result, err := r.runStepLogic(ctx, step, view)
	if err != nil {
		event.Emit(r.events, event.Event{Type: event.WorkerEnd, PlanID: plan.ID, StepID: dest.StepID, Error: err})
		return &StepError{StepID: dest.StepID, Err: err}
	}

	if upd := step.config().update; upd != nil {
		// Flow control from workers is disabled; only UpdateState takes
		// effect.
		_ = upd(result, view, newWorkerActions(dest.StepID, r.state))
	}

	event.Emit(r.events, event.Event{Type: event.WorkerEnd, PlanID: plan.ID, StepID: dest.StepID})
	return nil
}

func (r *Runner) finishPlan(plan *Plan, err error) {
	event.Emit(r.events, event.Event{Type: event.PlanEnd, PlanID: plan.ID, StepID: plan.Anchor, Error: err})
	r.log.Info("bungee plan end", zap.String("plan", plan.ID), zap.Error(err))
}

// workerErrorKey derives the unique state key recording one worker's
// failure.
func workerErrorKey(plan *Plan, i int, dest Destination) string {
	return fmt.Sprintf("bungee_%s_%s_%d_error", plan.ID[:8], dest.StepID, i)
}
