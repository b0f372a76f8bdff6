// Package wizard provides an in-process workflow engine for driving
// sequences of named steps, where a step may call a generative text
// model, run local computation, or fan out into bounded-concurrency
// parallel sub-executions.
//
// The root package defines the provider-agnostic completion contract
// and shared primitives. The engine itself lives in the
// [github.com/spetersoncode/wizard/workflow] package:
//
//   - workflow.Runner owns the ordered step list and the flow-control
//     loop. Each step's update function returns a Signal (next, stop,
//     retry, wait, goto, bungee) that drives advancement.
//   - A "bungee" plan launches N parallel worker executions of target
//     steps under a concurrency cap and merges their results back into
//     shared state, optionally re-invoking the anchor step afterwards.
//   - Generative steps stream their model output through the
//     [github.com/spetersoncode/wizard/parser] tagged-field parser and
//     the [github.com/spetersoncode/wizard/schema] validation/repair
//     pipeline.
//
// # Providers
//
// A model backend implements [CompletionProvider]. Wrappers for
// Anthropic, OpenAI and Google live under provider/:
//
//	p := openai.New(os.Getenv("OPENAI_API_KEY"))
//	resp, err := p.Complete(ctx, "Say hello.", wizard.WithModel(model.GPT5Mini.String()))
//
// # A minimal wizard
//
//	r := workflow.NewRunner(p)
//	r.Register(workflow.NewTextStep("greet", "Write a greeting for {name}.",
//	    func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
//	        act.UpdateState(map[string]any{"greeting": result})
//	        return act.Next()
//	    }))
//	res, err := r.Run(ctx, workflow.NewStateFrom(map[string]any{"name": "Ada"}))
package wizard
