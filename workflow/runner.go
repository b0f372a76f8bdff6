package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	ai "github.com/spetersoncode/wizard"
	"github.com/spetersoncode/wizard/event"
	"github.com/spetersoncode/wizard/model"
	"github.com/spetersoncode/wizard/parser"
	"github.com/spetersoncode/wizard/retry"
)

// defaultWaitInterval is how long a Wait signal sleeps.
const defaultWaitInterval = 10 * time.Second

// TerminationReason indicates why a run stopped.
type TerminationReason string

const (
	// TerminationComplete indicates the run finished: either the step
	// list was exhausted or a step returned Stop.
	TerminationComplete TerminationReason = "complete"

	// TerminationError indicates a fatal error halted the run.
	TerminationError TerminationReason = "error"

	// TerminationCancelled indicates context cancellation.
	TerminationCancelled TerminationReason = "cancelled"
)

// Result is the final outcome of a run. On error the state is left
// intact with the last recorded step errors for diagnosis.
type Result struct {
	State       *State
	Usage       ai.Usage
	Termination TerminationReason
	Err         error
}

// slot is one position in the run loop: a single step, or a parallel
// group executed together.
type slot []Step

// Runner owns the ordered step list and drives the flow-control loop.
// Register steps in execution order, then call Run. A Runner drives
// one run at a time.
type Runner struct {
	provider ai.CompletionProvider

	slots     []slot
	slotIndex map[string]int
	byID      map[string]Step

	log          *zap.Logger
	events       chan<- event.Event
	retryCfg     retry.Config
	waitInterval time.Duration
	defaultModel string
	container    string
	singleStep   bool

	state   *State
	running bool
	resume  chan struct{}

	reMu      sync.Mutex
	reentries []string

	usageMu   sync.Mutex
	usage     ai.Usage
	stepUsage map[string]ai.Usage
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEvents sets the channel step-lifecycle events are emitted to.
// Emission is non-blocking; a full channel drops events.
func WithEvents(ch chan<- event.Event) RunnerOption {
	return func(r *Runner) {
		r.events = ch
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// WithRetry sets the per-step retry budget and backoff schedule.
func WithRetry(cfg retry.Config) RunnerOption {
	return func(r *Runner) {
		r.retryCfg = cfg
	}
}

// WithWaitInterval sets how long a Wait signal sleeps (default 10s).
func WithWaitInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.waitInterval = d
	}
}

// WithDefaultModel sets the model used by generative steps that do not
// set their own.
func WithDefaultModel(m model.ChatModel) RunnerOption {
	return func(r *Runner) {
		r.defaultModel = m.String()
	}
}

// WithContainer sets the tagged-field container tag (default "response").
func WithContainer(tag string) RunnerOption {
	return func(r *Runner) {
		r.container = tag
	}
}

// WithSingleStep enables debug mode: after each slot the runner emits
// a Paused event and blocks until Resume is called.
func WithSingleStep() RunnerOption {
	return func(r *Runner) {
		r.singleStep = true
	}
}

// NewRunner creates a runner backed by the given completion provider.
// The provider may be nil for workflows of compute steps only.
func NewRunner(provider ai.CompletionProvider, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider:     provider,
		slotIndex:    make(map[string]int),
		byID:         make(map[string]Step),
		log:          zap.NewNop(),
		retryCfg:     retry.DefaultConfig(),
		waitInterval: defaultWaitInterval,
		container:    parser.DefaultContainer,
		resume:       make(chan struct{}, 1),
		stepUsage:    make(map[string]ai.Usage),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends steps, each occupying its own run-loop slot.
// Insertion order defines default sequential advancement; ids are also
// addressable by Goto and bungee destinations. Register panics on a
// duplicate id.
func (r *Runner) Register(steps ...Step) {
	for _, s := range steps {
		r.addStep(s, len(r.slots))
		r.slots = append(r.slots, slot{s})
	}
}

// RegisterParallel appends a parallel group: a fixed set of steps
// executed together, collapsing into one run-loop slot.
func (r *Runner) RegisterParallel(steps ...Step) {
	idx := len(r.slots)
	for _, s := range steps {
		r.addStep(s, idx)
	}
	r.slots = append(r.slots, slot(steps))
}

func (r *Runner) addStep(s Step, slotIdx int) {
	id := s.ID()
	if _, dup := r.byID[id]; dup {
		panic(fmt.Sprintf("workflow: duplicate step id %q", id))
	}
	r.byID[id] = s
	r.slotIndex[id] = slotIdx
}

// Resume continues a runner paused by single-step mode. Safe to call
// from any goroutine; a resume with no pending pause is remembered for
// the next one.
func (r *Runner) Resume() {
	select {
	case r.resume <- struct{}{}:
	default:
	}
}

// Run executes the workflow from the first slot. A nil state starts
// empty. The returned Result always carries the final state, even on
// failure, so the last recorded errors stay inspectable.
func (r *Runner) Run(ctx context.Context, state *State) (*Result, error) {
	if state == nil {
		state = NewState()
	}
	r.state = state
	r.running = true

	event.Emit(r.events, event.Event{Type: event.RunStart})
	r.log.Info("run start", zap.Int("slots", len(r.slots)))

	var runErr error
	idx := 0
	for idx < len(r.slots) && r.running {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		current := r.slots[idx]
		var sig Signal
		if len(current) == 1 {
			sig = r.executeStep(ctx, current[0], false)
		} else {
			sig = r.executeGroup(ctx, current)
		}

		next, err := r.applySignal(ctx, sig, idx)
		if err != nil {
			runErr = err
			break
		}
		idx = next

		if err := r.pauseIfDebug(ctx); err != nil {
			runErr = err
			break
		}

		if r.running {
			next, err = r.drainReentries(ctx, idx)
			if err != nil {
				runErr = err
				break
			}
			idx = next
		}
	}

	result := &Result{State: state, Usage: r.usageTotal()}
	if runErr != nil {
		result.Err = runErr
		result.Termination = TerminationError
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			result.Termination = TerminationCancelled
		}
		event.Emit(r.events, event.Event{Type: event.RunError, Error: runErr})
		r.log.Error("run failed", zap.Error(runErr))
		return result, runErr
	}

	result.Termination = TerminationComplete
	event.Emit(r.events, event.Event{Type: event.RunEnd, Snapshot: state.Snapshot()})
	r.log.Info("run complete", zap.Int("keys", state.Len()))
	return result, nil
}

// executeStep runs one orchestrated step: model-or-compute logic, then
// the update function with full control actions. Errors are charged
// against the step's retry budget; validation-repair failures share
// the same budget as thrown errors.
func (r *Runner) executeStep(ctx context.Context, step Step, reentry bool) Signal {
	id := step.ID()
	if reentry {
		event.Emit(r.events, event.Event{Type: event.Reentry, StepID: id})
		r.log.Info("anchor reentry", zap.String("step", id))
	}
	event.Emit(r.events, event.Event{Type: event.StepStart, StepID: id})
	r.log.Info("step start", zap.String("step", id))

	result, err := r.runStepLogic(ctx, step, r.state)
	if err != nil {
		return r.recordFailure(ctx, id, err)
	}

	// Success clears the step's failure side-channel.
	r.state.Delete(errorKey(id))
	r.state.Delete(retryKey(id))

	sig := Next()
	if upd := step.config().update; upd != nil {
		sig = upd(result, r.state, newActions(id, r.state))
	}

	event.Emit(r.events, event.Event{Type: event.StepEnd, StepID: id, Result: result, Snapshot: r.state.Snapshot(), Usage: r.usageFor(id)})
	r.log.Info("step end", zap.String("step", id), zap.String("signal", string(sig.Kind)))
	return sig
}

// recordFailure books an attempt against the step's retry budget and
// decides between retrying and failing the run. Errors categorized as
// permanent, a rejected API key for instance, fail immediately instead
// of burning the remaining budget on identical outcomes.
func (r *Runner) recordFailure(ctx context.Context, id string, err error) Signal {
	r.state.Set(errorKey(id), err.Error())
	attempts := r.state.GetInt(retryKey(id)) + 1
	r.state.Set(retryKey(id), attempts)

	if !ai.IsTransient(err) {
		event.Emit(r.events, event.Event{Type: event.StepFail, StepID: id, Attempt: attempts, Error: err})
		r.log.Error("step failed", zap.String("step", id), zap.Int("attempts", attempts), zap.Error(err))
		return failSignal(fmt.Errorf("step %q: permanent failure: %w", id, err))
	}

	if attempts >= r.retryCfg.MaxAttempts {
		event.Emit(r.events, event.Event{Type: event.StepFail, StepID: id, Attempt: attempts, Error: err})
		r.log.Error("step failed", zap.String("step", id), zap.Int("attempts", attempts), zap.Error(err))
		return failSignal(fmt.Errorf("step %q: %w after %d attempts: %w", id, ErrRetryBudgetExceeded, attempts, err))
	}

	event.Emit(r.events, event.Event{Type: event.StepRetry, StepID: id, Attempt: attempts, Error: err})
	r.log.Warn("step retry", zap.String("step", id), zap.Int("attempt", attempts), zap.Error(err))

	// Backoff before the next attempt. A server-provided Retry-After
	// hint wins when it exceeds the computed delay.
	delay := r.retryCfg.Delay(attempts - 1)
	if server := ai.RetryAfterOf(err); server > delay {
		delay = server
	}
	_ = sleepCtx(ctx, delay)
	return Retry()
}

// executeGroup runs a parallel group's members concurrently and
// reconciles their signals by priority: a fatal failure first, then
// Stop, then the first Goto in member order, then Retry, else Next.
// Wait and bungee signals from group members are not supported and
// count as Next.
func (r *Runner) executeGroup(ctx context.Context, steps []Step) Signal {
	sigs := make([]Signal, len(steps))
	var wg sync.WaitGroup
	for i, s := range steps {
		wg.Add(1)
		go func(i int, s Step) {
			defer wg.Done()
			sigs[i] = r.executeStep(ctx, s, false)
		}(i, s)
	}
	wg.Wait()

	for _, s := range sigs {
		if s.Kind == signalFail {
			return s
		}
	}
	for _, s := range sigs {
		if s.Kind == SignalStop {
			return s
		}
	}
	for _, s := range sigs {
		if s.Kind == SignalGoto {
			return s
		}
	}
	for _, s := range sigs {
		if s.Kind == SignalRetry {
			return s
		}
	}
	return Next()
}

// applySignal translates a signal produced at slot idx into the next
// slot index. A bungee plan's own effective signal is interpreted
// recursively.
func (r *Runner) applySignal(ctx context.Context, sig Signal, idx int) (int, error) {
	switch sig.Kind {
	case SignalNext:
		return idx + 1, nil
	case SignalStop:
		r.running = false
		return idx, nil
	case SignalRetry:
		return idx, nil
	case SignalWait:
		if err := sleepCtx(ctx, r.waitInterval); err != nil {
			return idx, err
		}
		return idx + 1, nil
	case SignalGoto:
		j, ok := r.slotIndex[sig.Target]
		if !ok {
			return idx, fmt.Errorf("%w: goto %q", ErrUnknownStep, sig.Target)
		}
		return j, nil
	case SignalBungee:
		if sig.Plan == nil {
			return idx + 1, nil
		}
		planSig, ok, err := r.executePlan(ctx, sig.Plan)
		if err != nil {
			return idx, err
		}
		if ok {
			return r.applySignal(ctx, planSig, idx)
		}
		if sig.Plan.ReturnToAnchor && !sig.Plan.Optimistic {
			// The reentry is already queued; the drain following this
			// slot repositions the loop from the anchor's signal.
			return idx, nil
		}
		return idx + 1, nil
	case signalFail:
		return idx, sig.err
	default:
		return idx + 1, nil
	}
}

// queueReentry records an anchor step id for re-execution at the next
// slot boundary.
func (r *Runner) queueReentry(anchor string) {
	r.reMu.Lock()
	r.reentries = append(r.reentries, anchor)
	r.reMu.Unlock()
}

// drainReentries re-executes queued anchor steps in FIFO order. Each
// anchor runs as if freshly reached and its signal repositions the
// loop relative to the anchor's own slot.
func (r *Runner) drainReentries(ctx context.Context, idx int) (int, error) {
	for r.running {
		r.reMu.Lock()
		if len(r.reentries) == 0 {
			r.reMu.Unlock()
			return idx, nil
		}
		anchor := r.reentries[0]
		r.reentries = r.reentries[1:]
		r.reMu.Unlock()

		slotIdx, ok := r.slotIndex[anchor]
		if !ok {
			return idx, fmt.Errorf("%w: reentry anchor %q", ErrUnknownStep, anchor)
		}

		sig := r.executeStep(ctx, r.byID[anchor], true)
		next, err := r.applySignal(ctx, sig, slotIdx)
		if err != nil {
			return idx, err
		}
		idx = next
	}
	return idx, nil
}

// pauseIfDebug suspends the loop between slots in single-step mode
// until Resume is called or the context ends.
func (r *Runner) pauseIfDebug(ctx context.Context) error {
	if !r.singleStep || !r.running {
		return nil
	}
	event.Emit(r.events, event.Event{Type: event.Paused})
	r.log.Info("paused")
	select {
	case <-r.resume:
		event.Emit(r.events, event.Event{Type: event.Resumed})
		r.log.Info("resumed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addUsage books a model call's token usage against both the run total
// and the step's own tally.
func (r *Runner) addUsage(id string, u ai.Usage) {
	r.usageMu.Lock()
	r.usage.Add(u)
	su := r.stepUsage[id]
	su.Add(u)
	r.stepUsage[id] = su
	r.usageMu.Unlock()
}

func (r *Runner) usageTotal() ai.Usage {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	return r.usage
}

func (r *Runner) usageFor(id string) ai.Usage {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	return r.stepUsage[id]
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
