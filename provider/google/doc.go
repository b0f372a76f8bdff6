// Package google provides a Google Gemini API client implementing wizard.CompletionProvider.
//
// This package wraps the Google GenAI SDK to drive wizard steps with
// Gemini models.
//
// # Usage
//
//	client, err := google.New(ctx, os.Getenv("GEMINI_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runner := workflow.NewRunner(client)
package google
