package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/wizard/retry"
)

// fanOutAnchor builds the usual dispatch-then-collect anchor: on first
// reach it launches n workers against the "worker" step, on reentry it
// stops the run so the worker's own slot is never reached sequentially.
func fanOutAnchor(n, concurrency int, shape func(*PlanBuilder)) Step {
	return NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
		if _, ok := state.Get("dispatched"); ok {
			return act.Stop()
		}
		act.UpdateState(map[string]any{"dispatched": true})
		b := act.Bungee().Concurrency(concurrency)
		for i := 0; i < n; i++ {
			b.To("worker", map[string]any{"index": i})
		}
		if shape != nil {
			shape(b)
		}
		return b.Launch()
	})
}

// indexOf reads the per-worker override.
func indexOf(view View) int {
	v, _ := view.Get("index")
	i, _ := v.(int)
	return i
}

func TestBungee_FanOutCollectsResults(t *testing.T) {
	anchorRuns := 0
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
			anchorRuns++
			if anchorRuns > 1 {
				return act.Stop()
			}
			b := act.Bungee().Concurrency(2)
			for i := 0; i < 5; i++ {
				b.To("worker", map[string]any{"index": i})
			}
			return b.Launch()
		}),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			i := indexOf(state)
			act.UpdateState(map[string]any{
				fmt.Sprintf("result_%d", i): fmt.Sprintf("done_%d", i),
			})
			return act.Next()
		}),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, anchorRuns, "anchor runs once to dispatch, once on reentry")
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("done_%d", i), res.State.GetString(fmt.Sprintf("result_%d", i)))
	}
}

func TestBungee_ConcurrencyCap(t *testing.T) {
	var inFlight, peak int64
	r := NewRunner(nil)
	r.Register(
		fanOutAnchor(8, 2, nil),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return act.Next()
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2), "never more workers in flight than the cap")
}

func TestBungee_TelescopeOverridesStayPrivate(t *testing.T) {
	r := NewRunner(nil)
	r.Register(
		fanOutAnchor(3, 0, nil),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			i := indexOf(state)
			// The shared key is visible through the telescope.
			act.UpdateState(map[string]any{
				fmt.Sprintf("saw_shared_%d", i): state.GetString("shared"),
			})
			return act.Next()
		}),
	)

	state := NewState()
	state.Set("shared", "yes")
	res, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "yes", res.State.GetString(fmt.Sprintf("saw_shared_%d", i)))
	}
	assert.False(t, res.State.Has("index"), "overrides never leak into shared state")
}

func TestBungee_LastWriteWins(t *testing.T) {
	r := NewRunner(nil)
	r.Register(
		fanOutAnchor(4, 0, nil),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			act.UpdateState(map[string]any{"contested": indexOf(state)})
			return act.Next()
		}),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	v, ok := res.State.Get("contested")
	require.True(t, ok)
	assert.Contains(t, []any{0, 1, 2, 3}, v, "state holds exactly one worker's write")
}

func TestBungee_WorkerFlowSignalsIgnored(t *testing.T) {
	var after bool
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
			if _, ok := state.Get("dispatched"); ok {
				return act.Goto("tail")
			}
			act.UpdateState(map[string]any{"dispatched": true})
			return act.Bungee().
				To("worker", nil).
				To("worker", nil).
				Launch()
		}),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			// A worker trying to stop the run or launch a nested plan
			// has no effect on flow.
			act.Bungee().To("worker", nil).Launch()
			return act.Stop()
		}),
		NewComputeStep("tail", func(result any, state View, act *Actions) Signal {
			after = true
			return act.Stop()
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, after, "run continues past worker stop signals")
}

func TestBungee_FailOnError(t *testing.T) {
	r := NewRunner(nil, WithRetry(retry.Disabled()))
	r.Register(
		fanOutAnchor(3, 0, nil),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			return act.Next()
		}, WithBefore(func(ctx context.Context, view View) error {
			if indexOf(view) == 1 {
				return fmt.Errorf("worker exploded")
			}
			return nil
		})),
	)

	res, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	var perr *PlanError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "anchor", perr.Anchor)
	assert.Equal(t, TerminationError, res.Termination)
}

func TestBungee_ContinueOnFailure(t *testing.T) {
	r := NewRunner(nil)
	r.Register(
		fanOutAnchor(3, 0, func(b *PlanBuilder) { b.ContinueOnFailure() }),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			i := indexOf(state)
			act.UpdateState(map[string]any{fmt.Sprintf("result_%d", i): true})
			return act.Next()
		}, WithBefore(func(ctx context.Context, view View) error {
			if indexOf(view) == 1 {
				return fmt.Errorf("worker exploded")
			}
			return nil
		})),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err, "plan failures stay out of flow control")
	assert.True(t, res.State.Has("result_0"))
	assert.False(t, res.State.Has("result_1"))
	assert.True(t, res.State.Has("result_2"))

	found := false
	for _, k := range res.State.Keys() {
		if strings.HasPrefix(k, "bungee_") && strings.HasSuffix(k, "_error") {
			found = true
			assert.Contains(t, res.State.GetString(k), "worker exploded")
		}
	}
	assert.True(t, found, "the failure is recorded in state")
}

func TestBungee_NoReturn(t *testing.T) {
	anchorRuns := 0
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
			anchorRuns++
			return act.Bungee().NoReturn().To("worker", nil).Launch()
		}),
		NewComputeStep("tail", func(result any, state View, act *Actions) Signal {
			return act.Stop()
		}),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			act.UpdateState(map[string]any{"worked": true})
			return act.Next()
		}),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, anchorRuns, "no reentry without return-to-anchor")
	assert.True(t, res.State.Has("worked"))
}

func TestBungee_OnComplete(t *testing.T) {
	anchorRuns := 0
	tailRuns := 0
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
			anchorRuns++
			return act.Bungee().
				To("worker", nil).
				OnComplete(func(view View) Signal {
					return Goto("tail")
				}).
				Launch()
		}),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			return act.Next()
		}),
		NewComputeStep("tail", func(result any, state View, act *Actions) Signal {
			tailRuns++
			return act.Stop()
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, anchorRuns, "OnComplete replaces the anchor reentry")
	assert.Equal(t, 1, tailRuns)
}

func TestBungee_UnknownDestination(t *testing.T) {
	r := NewRunner(nil)
	r.Register(NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
		return act.Bungee().To("nowhere", nil).Launch()
	}))

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestBungee_Optimistic(t *testing.T) {
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("anchor", func(result any, state View, act *Actions) Signal {
			return act.Bungee().Optimistic().NoReturn().To("worker", nil).Launch()
		}),
		NewComputeStep("await", func(result any, state View, act *Actions) Signal {
			if _, ok := state.Get("worked"); !ok {
				time.Sleep(time.Millisecond)
				return act.Retry()
			}
			return act.Stop()
		}),
		NewComputeStep("worker", func(result any, state View, act *Actions) Signal {
			act.UpdateState(map[string]any{"worked": true})
			return act.Next()
		}),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.State.Has("worked"), "optimistic workers finish in the background")
}
