package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/spetersoncode/wizard"
	"github.com/spetersoncode/wizard/event"
	"github.com/spetersoncode/wizard/retry"
)

// mockProvider scripts completions by call index. CompleteStream splits
// the scripted text into small chunks so streaming paths see realistic
// chunk boundaries.
type mockProvider struct {
	mu      sync.Mutex
	prompts []string
	respond func(call int, prompt string) (string, error)
}

func staticProvider(text string) *mockProvider {
	return &mockProvider{respond: func(int, string) (string, error) {
		return text, nil
	}}
}

func (m *mockProvider) record(prompt string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return len(m.prompts) - 1
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockProvider) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

func (m *mockProvider) Complete(ctx context.Context, prompt string, opts ...ai.Option) (*ai.Response, error) {
	call := m.record(prompt)
	text, err := m.respond(call, prompt)
	if err != nil {
		return nil, err
	}
	return &ai.Response{
		Content:      text,
		FinishReason: "stop",
		Usage:        ai.Usage{InputTokens: 1, OutputTokens: 1},
	}, nil
}

func (m *mockProvider) CompleteStream(ctx context.Context, prompt string, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	resp, err := m.Complete(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}

	ch := make(chan ai.StreamEvent)
	go func() {
		defer close(ch)
		text := resp.Content
		for len(text) > 0 {
			n := 5
			if n > len(text) {
				n = len(text)
			}
			ch <- ai.StreamEvent{Delta: text[:n]}
			text = text[n:]
		}
		ch <- ai.StreamEvent{Done: true, Response: resp}
	}()
	return ch, nil
}

var _ ai.CompletionProvider = (*mockProvider)(nil)

// fastRetry is a zero-delay budget for tests.
func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts}
}

func TestRun_Sequential(t *testing.T) {
	var order []string
	step := func(id string) Step {
		return NewComputeStep(id, func(result any, state View, act *Actions) Signal {
			order = append(order, id)
			return act.Next()
		})
	}

	r := NewRunner(nil)
	r.Register(step("a"), step("b"), step("c"))

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, TerminationComplete, res.Termination)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRun_Stop(t *testing.T) {
	var ran []string
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("a", func(result any, state View, act *Actions) Signal {
			ran = append(ran, "a")
			return act.Next()
		}),
		NewComputeStep("b", func(result any, state View, act *Actions) Signal {
			ran = append(ran, "b")
			return act.Stop()
		}),
		NewComputeStep("c", func(result any, state View, act *Actions) Signal {
			ran = append(ran, "c")
			return act.Next()
		}),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, TerminationComplete, res.Termination)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestRun_GotoLoop(t *testing.T) {
	counter := 0
	r := NewRunner(nil)
	r.Register(
		NewComputeStep("inc", func(result any, state View, act *Actions) Signal {
			counter++
			return act.Next()
		}),
		NewComputeStep("check", func(result any, state View, act *Actions) Signal {
			if counter < 3 {
				return act.Goto("inc")
			}
			return act.Next()
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, counter)
}

func TestRun_GotoUnknownIsFatal(t *testing.T) {
	r := NewRunner(nil)
	r.Register(NewComputeStep("a", func(result any, state View, act *Actions) Signal {
		return act.Goto("missing")
	}))

	res, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStep)
	assert.Equal(t, TerminationError, res.Termination)
}

func TestRun_UserRetrySignal(t *testing.T) {
	attempts := 0
	r := NewRunner(nil)
	r.Register(NewComputeStep("poll", func(result any, state View, act *Actions) Signal {
		attempts++
		if attempts < 3 {
			return act.Retry()
		}
		return act.Stop()
	}))

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRun_Wait(t *testing.T) {
	var ran []string
	r := NewRunner(nil, WithWaitInterval(time.Millisecond))
	r.Register(
		NewComputeStep("a", func(result any, state View, act *Actions) Signal {
			ran = append(ran, "a")
			return act.Wait()
		}),
		NewComputeStep("b", func(result any, state View, act *Actions) Signal {
			ran = append(ran, "b")
			return act.Next()
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ran, "wait advances after sleeping")
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	provider := &mockProvider{respond: func(int, string) (string, error) {
		return "", fmt.Errorf("boom")
	}}
	r := NewRunner(provider, WithRetry(fastRetry(3)))
	r.Register(NewTextStep("gen", "write something", nil))

	res, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryBudgetExceeded)
	assert.Equal(t, 3, provider.calls(), "budget is total attempts")
	assert.Equal(t, "boom", res.State.GetString("gen_error"))
	assert.Equal(t, 3, res.State.GetInt("gen_retryCount"))
}

func TestRun_PermanentErrorFailsFast(t *testing.T) {
	provider := &mockProvider{respond: func(int, string) (string, error) {
		return "", ai.NewPermanentError("invalid api key", 401, nil)
	}}
	r := NewRunner(provider, WithRetry(fastRetry(4)))
	r.Register(NewTextStep("gen", "write something", nil))

	res, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, ai.IsTransient(err), "the categorized cause stays inspectable")
	assert.NotErrorIs(t, err, ErrRetryBudgetExceeded)
	assert.Equal(t, 1, provider.calls(), "permanent errors are not retried")
	assert.Equal(t, 1, res.State.GetInt("gen_retryCount"))
}

func TestRun_RetryAfterExtendsBackoff(t *testing.T) {
	serverDelay := 50 * time.Millisecond
	provider := &mockProvider{respond: func(call int, _ string) (string, error) {
		if call == 0 {
			return "", ai.NewTransientErrorWithRetry("rate limited", 429, serverDelay, nil)
		}
		return "ok", nil
	}}
	r := NewRunner(provider, WithRetry(fastRetry(3)))
	r.Register(NewTextStep("gen", "write something", nil))

	start := time.Now()
	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
	assert.GreaterOrEqual(t, time.Since(start), serverDelay,
		"server retry hint outlasts the zero-delay test schedule")
}

func TestRun_RetryThenSuccessClearsSideChannel(t *testing.T) {
	provider := &mockProvider{respond: func(call int, _ string) (string, error) {
		if call < 2 {
			return "", fmt.Errorf("transient")
		}
		return "done", nil
	}}
	r := NewRunner(provider, WithRetry(fastRetry(4)))

	var got any
	r.Register(NewTextStep("gen", "write something", func(result any, state View, act *Actions) Signal {
		got = result
		return act.Next()
	}))

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 3, provider.calls())
	assert.False(t, res.State.Has("gen_error"), "success clears the error key")
	assert.False(t, res.State.Has("gen_retryCount"))
}

func TestRun_ParallelGroup(t *testing.T) {
	state := NewState()
	step := func(id string) Step {
		return NewComputeStep(id, func(result any, view View, act *Actions) Signal {
			act.UpdateState(map[string]any{id: true})
			return act.Next()
		})
	}

	r := NewRunner(nil)
	r.RegisterParallel(step("x"), step("y"), step("z"))

	res, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	for _, id := range []string{"x", "y", "z"} {
		assert.True(t, res.State.Has(id), "member %s ran", id)
	}
}

func TestRun_ParallelGroupStopWins(t *testing.T) {
	var after bool
	r := NewRunner(nil)
	r.RegisterParallel(
		NewComputeStep("stopper", func(result any, state View, act *Actions) Signal {
			return act.Stop()
		}),
		NewComputeStep("jumper", func(result any, state View, act *Actions) Signal {
			return act.Goto("tail")
		}),
	)
	r.Register(NewComputeStep("tail", func(result any, state View, act *Actions) Signal {
		after = true
		return act.Next()
	}))

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, TerminationComplete, res.Termination)
	assert.False(t, after, "stop takes priority over goto")
}

func TestRun_ParallelGroupGotoBeatsNext(t *testing.T) {
	hits := 0
	r := NewRunner(nil)
	r.Register(NewComputeStep("target", func(result any, state View, act *Actions) Signal {
		hits++
		if hits > 1 {
			return act.Stop()
		}
		return act.Next()
	}))
	r.RegisterParallel(
		NewComputeStep("plain", func(result any, state View, act *Actions) Signal {
			return act.Next()
		}),
		NewComputeStep("jumper", func(result any, state View, act *Actions) Signal {
			return act.Goto("target")
		}),
	)

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hits, "goto from a group member repositions the loop")
}

func TestRun_SingleStepPauses(t *testing.T) {
	events := event.NewChannel()
	r := NewRunner(nil, WithEvents(events), WithSingleStep())

	var ran []string
	step := func(id string) Step {
		return NewComputeStep(id, func(result any, state View, act *Actions) Signal {
			ran = append(ran, id)
			return act.Next()
		})
	}
	r.Register(step("a"), step("b"))

	paused := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Type == event.Paused {
				paused++
				r.Resume()
			}
		}
	}()

	_, err := r.Run(context.Background(), nil)
	close(events)
	<-done

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, 2, paused, "one pause per slot")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil)
	r.Register(NewComputeStep("a", func(result any, state View, act *Actions) Signal {
		return act.Next()
	}))

	res, err := r.Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, TerminationCancelled, res.Termination)
}

func TestRegister_DuplicateIDPanics(t *testing.T) {
	r := NewRunner(nil)
	r.Register(NewComputeStep("dup", nil))
	assert.Panics(t, func() {
		r.Register(NewComputeStep("dup", nil))
	})
}

func TestRun_NoProvider(t *testing.T) {
	r := NewRunner(nil, WithRetry(retry.Disabled()))
	r.Register(NewTextStep("gen", "prompt", nil))

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	events := event.NewChannel()
	r := NewRunner(staticProvider("hello"), WithEvents(events))
	r.Register(NewTextStep("gen", "prompt", nil))

	_, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	close(events)

	seen := map[event.Type]bool{}
	deltas := ""
	for ev := range events {
		seen[ev.Type] = true
		if ev.Type == event.StepDelta {
			deltas += ev.Delta
		}
	}
	assert.True(t, seen[event.RunStart])
	assert.True(t, seen[event.StepStart])
	assert.True(t, seen[event.StepEnd])
	assert.True(t, seen[event.RunEnd])
	assert.Equal(t, "hello", deltas)
}

func TestRun_StepEndReportsUsage(t *testing.T) {
	events := event.NewChannel()
	r := NewRunner(staticProvider("hello"), WithEvents(events))
	r.Register(
		NewTextStep("first", "prompt one", nil),
		NewTextStep("second", "prompt two", nil),
	)

	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	close(events)

	perStep := map[string]ai.Usage{}
	for ev := range events {
		if ev.Type == event.StepEnd {
			perStep[ev.StepID] = ev.Usage
		}
	}

	// Each mock call costs one input and one output token.
	one := ai.Usage{InputTokens: 1, OutputTokens: 1}
	assert.Equal(t, one, perStep["first"])
	assert.Equal(t, one, perStep["second"])
	assert.Equal(t, ai.Usage{InputTokens: 2, OutputTokens: 2}, res.Usage,
		"run usage is the sum of the per-step tallies")
}
