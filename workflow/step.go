package workflow

import (
	"context"

	ai "github.com/spetersoncode/wizard"
	"github.com/spetersoncode/wizard/model"
	"github.com/spetersoncode/wizard/schema"
)

// InjectMode controls how projected context reaches a generative
// step's prompt.
type InjectMode int

const (
	// InjectTemplate substitutes {key} placeholders in the instruction.
	InjectTemplate InjectMode = iota

	// InjectTagged appends the projected context rendered as tagged
	// fields after the instruction.
	InjectTagged

	// InjectBoth applies template substitution and appends the tagged
	// context block.
	InjectBoth
)

// ProjectFunc narrows shared state to the keys a step should see.
// When nil, the step sees the full snapshot.
type ProjectFunc func(view View) map[string]any

// UpdateFunc is a step's reducer: it receives the step's result, a
// read view of shared state, and the bound control actions, and
// returns the flow-control signal that drives the run loop. A nil
// update function is treated as returning Next.
//
// The result is nil for compute steps, the raw completion string for
// text steps, and the parsed field map for structured steps.
type UpdateFunc func(result any, view View, act *Actions) Signal

// HookFunc runs before or after a step's main logic. A hook error is
// treated exactly like a step execution error.
type HookFunc func(ctx context.Context, view View) error

// Step is a named unit of work. The three kinds are
// [StructuredStep] (model call with an output schema), [TextStep]
// (model call, raw text result) and [ComputeStep] (no model call).
type Step interface {
	// ID returns the step's unique identifier.
	ID() string

	config() *stepConfig
}

// stepConfig carries the settings shared by all step kinds.
type stepConfig struct {
	id          string
	instruction string
	model       string
	schema      *schema.Schema
	project     ProjectFunc
	update      UpdateFunc
	before      HookFunc
	after       HookFunc
	inject      InjectMode
	chatOpts    []ai.Option
}

// StepOption configures a step.
type StepOption func(*stepConfig)

// WithProjection sets the step's context-projection function.
func WithProjection(fn ProjectFunc) StepOption {
	return func(c *stepConfig) {
		c.project = fn
	}
}

// WithModel sets the model for this step's completions, overriding the
// runner default.
func WithModel(m model.ChatModel) StepOption {
	return func(c *stepConfig) {
		c.model = m.String()
	}
}

// WithModelID sets the model by raw identifier.
func WithModelID(id string) StepOption {
	return func(c *stepConfig) {
		c.model = id
	}
}

// WithInjection sets how projected context reaches the prompt.
// The default is InjectTemplate.
func WithInjection(mode InjectMode) StepOption {
	return func(c *stepConfig) {
		c.inject = mode
	}
}

// WithBefore sets a hook that runs before the step's main logic.
func WithBefore(fn HookFunc) StepOption {
	return func(c *stepConfig) {
		c.before = fn
	}
}

// WithAfter sets a hook that runs after the step's main logic
// succeeds, before the update function.
func WithAfter(fn HookFunc) StepOption {
	return func(c *stepConfig) {
		c.after = fn
	}
}

// WithCompletionOptions passes extra options to this step's model calls.
func WithCompletionOptions(opts ...ai.Option) StepOption {
	return func(c *stepConfig) {
		c.chatOpts = append(c.chatOpts, opts...)
	}
}

func newStepConfig(id, instruction string, update UpdateFunc, opts []StepOption) stepConfig {
	cfg := stepConfig{id: id, instruction: instruction, update: update}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// StructuredStep calls the model and parses the streamed response into
// typed fields validated against its schema.
type StructuredStep struct {
	cfg stepConfig
}

// NewStructuredStep creates a generative step with an output schema.
func NewStructuredStep(id, instruction string, s *schema.Schema, update UpdateFunc, opts ...StepOption) *StructuredStep {
	cfg := newStepConfig(id, instruction, update, opts)
	cfg.schema = s
	return &StructuredStep{cfg: cfg}
}

// ID returns the step id.
func (s *StructuredStep) ID() string { return s.cfg.id }

func (s *StructuredStep) config() *stepConfig { return &s.cfg }

// TextStep calls the model and hands the raw completion text to its
// update function.
type TextStep struct {
	cfg stepConfig
}

// NewTextStep creates a generative step without a schema.
func NewTextStep(id, instruction string, update UpdateFunc, opts ...StepOption) *TextStep {
	return &TextStep{cfg: newStepConfig(id, instruction, update, opts)}
}

// ID returns the step id.
func (s *TextStep) ID() string { return s.cfg.id }

func (s *TextStep) config() *stepConfig { return &s.cfg }

// ComputeStep runs pure logic in its update function; no model call is
// made and the result passed to update is nil.
type ComputeStep struct {
	cfg stepConfig
}

// NewComputeStep creates a computation step.
func NewComputeStep(id string, update UpdateFunc, opts ...StepOption) *ComputeStep {
	return &ComputeStep{cfg: newStepConfig(id, "", update, opts)}
}

// ID returns the step id.
func (s *ComputeStep) ID() string { return s.cfg.id }

func (s *ComputeStep) config() *stepConfig { return &s.cfg }
