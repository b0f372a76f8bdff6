// Package openai provides an OpenAI API client implementing wizard.CompletionProvider.
//
// This package wraps the official OpenAI Go SDK to drive wizard steps
// with GPT models.
//
// # Usage
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"), openai.WithModel("gpt-5"))
//	runner := workflow.NewRunner(client)
package openai
