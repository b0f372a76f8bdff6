// Demo runs a small story-outline workflow against a real provider:
// a structured outline step fans out one worker per chapter through a
// bungee plan, then the anchor collects the chapters on reentry.
//
// Set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY (checked in
// that order), directly or via a .env file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spetersoncode/wizard"
	"github.com/spetersoncode/wizard/event"
	"github.com/spetersoncode/wizard/logging"
	"github.com/spetersoncode/wizard/provider/anthropic"
	"github.com/spetersoncode/wizard/provider/google"
	"github.com/spetersoncode/wizard/provider/openai"
	"github.com/spetersoncode/wizard/schema"
	"github.com/spetersoncode/wizard/workflow"
)

const chapters = 3

func main() {
	godotenv.Load()
	ctx := context.Background()

	provider, err := pickProvider(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	events := event.NewChannel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case event.StepStart:
				fmt.Printf("\n--- %s ---\n", ev.StepID)
			case event.StepDelta:
				fmt.Print(ev.Delta)
			case event.PlanStart:
				fmt.Printf("\n[fan-out: %s]\n", ev.PlanID)
			case event.WorkerEnd:
				fmt.Printf("\n[worker done: %s]\n", ev.StepID)
			case event.RunError:
				fmt.Fprintf(os.Stderr, "\nrun error: %v\n", ev.Error)
			}
		}
	}()

	runner := workflow.NewRunner(provider,
		workflow.WithEvents(events),
		workflow.WithLogger(logging.New("demo.log")),
	)

	outlineSchema := schema.New().
		String("title", "Story title").
		Array("chapters", fmt.Sprintf("Exactly %d one-sentence chapter summaries", chapters)).
		Build()

	runner.Register(workflow.NewStructuredStep("outline",
		"Outline a very short story about a lighthouse keeper in {genre} style.",
		outlineSchema,
		func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
			fields := result.(map[string]any)
			act.UpdateState(fields)
			return act.Next()
		},
	))

	runner.Register(workflow.NewComputeStep("fan_out",
		func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
			if state.GetString("chapter_0") != "" {
				return act.Goto("assemble") // reentry: chapters are in
			}
			summaries, _ := state.Get("chapters")
			list, _ := summaries.([]any)
			b := act.Bungee().Concurrency(2)
			for i := 0; i < chapters && i < len(list); i++ {
				b.To("write_chapter", map[string]any{
					"index":   i,
					"summary": list[i],
				})
			}
			return b.Launch()
		},
	))

	runner.Register(workflow.NewTextStep("write_chapter",
		"Write a two-paragraph chapter of the story \"{title}\". Chapter summary: {summary}",
		func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
			idx, _ := state.Get("index")
			act.UpdateState(map[string]any{
				fmt.Sprintf("chapter_%v", idx): result,
			})
			return act.Next()
		},
	))

	runner.Register(workflow.NewComputeStep("assemble",
		func(result any, state workflow.View, act *workflow.Actions) workflow.Signal {
			story := state.GetString("title")
			for i := 0; i < chapters; i++ {
				story += "\n\n" + state.GetString(fmt.Sprintf("chapter_%d", i))
			}
			act.UpdateState(map[string]any{"story": story})
			return act.Stop()
		},
	))

	state := workflow.NewState()
	state.Set("genre", "noir")

	res, err := runner.Run(ctx, state)
	close(events)
	<-done

	if err != nil {
		fmt.Fprintf(os.Stderr, "workflow failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n\n========\n%s\n", res.State.GetString("story"))
	fmt.Printf("\n[tokens: %d in, %d out]\n", res.Usage.InputTokens, res.Usage.OutputTokens)
}

// pickProvider selects a completion provider from whichever API key is
// set.
func pickProvider(ctx context.Context) (wizard.CompletionProvider, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return anthropic.New(key), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return openai.New(key), nil
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return google.New(ctx, key)
	}
	return nil, fmt.Errorf("no API key set: need ANTHROPIC_API_KEY, OPENAI_API_KEY, or GOOGLE_API_KEY")
}
