package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	ai "github.com/spetersoncode/wizard"
	"github.com/spetersoncode/wizard/event"
	"github.com/spetersoncode/wizard/parser"
	"github.com/spetersoncode/wizard/schema"
)

// runStepLogic executes a step's hooks, projection, and model-or-compute
// logic against the given view, which is the authoritative state for
// orchestrated steps and a telescoped view for bungee workers. The
// update function is not called here; orchestrator and worker paths
// bind different actions.
func (r *Runner) runStepLogic(ctx context.Context, step Step, view View) (any, error) {
	cfg := step.config()

	if cfg.before != nil {
		if err := cfg.before(ctx, view); err != nil {
			return nil, err
		}
	}

	var result any
	switch step.(type) {
	case *ComputeStep:
		// Pure logic lives in the update function; no model call.
	case *TextStep:
		text, err := r.completeText(ctx, cfg, r.buildPrompt(cfg, projectView(cfg, view)))
		if err != nil {
			return nil, err
		}
		result = text
	case *StructuredStep:
		fields, err := r.completeStructured(ctx, cfg, r.buildPrompt(cfg, projectView(cfg, view)))
		if err != nil {
			return nil, err
		}
		result = fields
	default:
		return nil, fmt.Errorf("workflow: unknown step kind %T", step)
	}

	if cfg.after != nil {
		if err := cfg.after(ctx, view); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// projectView narrows state through the step's projection function,
// defaulting to the full snapshot.
func projectView(cfg *stepConfig, view View) map[string]any {
	if cfg.project != nil {
		return cfg.project(view)
	}
	return view.Snapshot()
}

// buildPrompt renders the step's instruction with projected context
// per the step's injection mode, and appends the schema description
// for structured steps.
func (r *Runner) buildPrompt(cfg *stepConfig, projected map[string]any) string {
	prompt := cfg.instruction
	if cfg.inject == InjectTemplate || cfg.inject == InjectBoth {
		prompt = ai.Render(prompt, projected)
	}
	if cfg.inject == InjectTagged || cfg.inject == InjectBoth {
		if block := renderTagged(projected); block != "" {
			prompt += "\n\nContext:\n" + block
		}
	}
	if cfg.schema != nil {
		prompt += "\n\n" + cfg.schema.Describe(r.container)
	}
	return prompt
}

// renderTagged serializes projected context as tagged fields, keys
// sorted for stable prompts.
func renderTagged(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := vars[k]
		fmt.Fprintf(&b, "<%s type=%q>%s\n", k, tagType(v), tagValue(v))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func tagType(v any) string {
	switch v.(type) {
	case nil:
		return parser.TypeNull
	case bool:
		return parser.TypeBoolean
	case int, int64, float64:
		return parser.TypeNumber
	case string:
		return parser.TypeString
	case map[string]any:
		return parser.TypeObject
	default:
		return parser.TypeArray
	}
}

func tagValue(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string, bool, int, int64, float64:
		return fmt.Sprint(v)
	default:
		// Arrays and objects as single-line JSON literals.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// completionOpts assembles the options for a step's model calls.
func (r *Runner) completionOpts(cfg *stepConfig) []ai.Option {
	opts := make([]ai.Option, 0, len(cfg.chatOpts)+1)
	m := cfg.model
	if m == "" {
		m = r.defaultModel
	}
	if m != "" {
		opts = append(opts, ai.WithModel(m))
	}
	return append(opts, cfg.chatOpts...)
}

// completeText streams a completion, emitting StepDelta events, and
// returns the full text.
func (r *Runner) completeText(ctx context.Context, cfg *stepConfig, prompt string) (string, error) {
	if r.provider == nil {
		return "", ErrNoProvider
	}
	stream, err := r.provider.CompleteStream(ctx, prompt, r.completionOpts(cfg)...)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for ev := range stream {
		if ev.Err != nil {
			return "", ev.Err
		}
		if ev.Delta != "" {
			content.WriteString(ev.Delta)
			event.Emit(r.events, event.Event{Type: event.StepDelta, StepID: cfg.id, Delta: ev.Delta})
		}
		if ev.Done && ev.Response != nil {
			r.addUsage(cfg.id, ev.Response.Usage)
			if content.Len() == 0 && ev.Response.Content != "" {
				return ev.Response.Content, nil
			}
		}
	}
	return content.String(), nil
}

// completeStructured streams a completion through the incremental
// parser, validates the parsed fields against the step's schema, and
// runs one repair round-trip on validation failure. A response that
// still fails after repair yields ErrUnrecoverableValidation.
func (r *Runner) completeStructured(ctx context.Context, cfg *stepConfig, prompt string) (map[string]any, error) {
	if r.provider == nil {
		return nil, ErrNoProvider
	}
	stream, err := r.provider.CompleteStream(ctx, prompt, r.completionOpts(cfg)...)
	if err != nil {
		return nil, err
	}

	p := parser.New(parser.WithContainer(r.container))
	var res *parser.Result
	var final string
	streamed := false
	for ev := range stream {
		if ev.Err != nil {
			return nil, ev.Err
		}
		if ev.Delta != "" {
			streamed = true
			event.Emit(r.events, event.Event{Type: event.StepDelta, StepID: cfg.id, Delta: ev.Delta})
			res = p.Push(ev.Delta)
		}
		if ev.Done && ev.Response != nil {
			r.addUsage(cfg.id, ev.Response.Usage)
			final = ev.Response.Content
		}
	}

	var fields map[string]any
	switch {
	case res != nil && res.Done:
		fields = res.Fields
	case streamed:
		fields = p.Finish().Fields
	default:
		// Provider returned the whole response as one blob.
		fields = parser.Parse(final, parser.WithContainer(r.container))
	}

	if err := cfg.schema.Validate(fields); err != nil {
		repaired, rErr := r.repair(ctx, cfg, fields, err)
		if rErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecoverableValidation, rErr)
		}
		return repaired, nil
	}
	return fields, nil
}

// repair asks the model to re-emit a corrected response in the same
// grammar, embedding the invalid data, the validation error, and the
// expected field descriptions.
func (r *Runner) repair(ctx context.Context, cfg *stepConfig, invalid map[string]any, verr error) (map[string]any, error) {
	resp, err := r.provider.Complete(ctx, repairPrompt(cfg.schema, r.container, invalid, verr), r.completionOpts(cfg)...)
	if err != nil {
		return nil, err
	}
	r.addUsage(cfg.id, resp.Usage)

	fields := parser.Parse(resp.Content, parser.WithContainer(r.container))
	if err := cfg.schema.Validate(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func repairPrompt(s *schema.Schema, container string, invalid map[string]any, verr error) string {
	data, err := json.MarshalIndent(invalid, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprint(invalid))
	}

	var b strings.Builder
	b.WriteString("Your previous response did not match the expected format.\n\n")
	b.WriteString("Parsed data:\n")
	b.Write(data)
	b.WriteString("\n\nValidation error: ")
	b.WriteString(verr.Error())
	b.WriteString("\n\n")
	b.WriteString(s.Describe(container))
	b.WriteString("\n\nRe-emit the complete corrected response in exactly this format.")
	return b.String()
}
