package google

import (
	"context"
	"fmt"

	"github.com/spetersoncode/wizard"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Client wraps the Google GenAI SDK to implement wizard.CompletionProvider.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClientOption configures the Google client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func (c *Client) request(prompt string, opts []wizard.Option) (string, []*genai.Content, *genai.GenerateContentConfig) {
	options := wizard.ApplyOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		config.Temperature = &temp
	}
	return model, contents, config
}

// Complete sends a prompt and returns the complete response.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...wizard.Option) (*wizard.Response, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	model, contents, config := c.request(prompt, opts)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}

	content := ""
	finishReason := ""
	if len(resp.Candidates) > 0 {
		if resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					content += part.Text
				}
			}
		}
		finishReason = string(resp.Candidates[0].FinishReason)
	}

	usage := wizard.Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &wizard.Response{
		Content:      content,
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}

// CompleteStream sends a prompt and returns a channel of streaming events.
func (c *Client) CompleteStream(ctx context.Context, prompt string, opts ...wizard.Option) (<-chan wizard.StreamEvent, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	model, contents, config := c.request(prompt, opts)

	ch := make(chan wizard.StreamEvent)

	go func() {
		defer close(ch)

		var fullContent string
		var finishReason string
		var usage wizard.Usage

		for resp := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
				for _, part := range resp.Candidates[0].Content.Parts {
					if part.Text != "" {
						ch <- wizard.StreamEvent{Delta: part.Text}
						fullContent += part.Text
					}
				}
				finishReason = string(resp.Candidates[0].FinishReason)
			}

			if resp.UsageMetadata != nil {
				usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
		}

		ch <- wizard.StreamEvent{
			Done: true,
			Response: &wizard.Response{
				Content:      fullContent,
				FinishReason: finishReason,
				Usage:        usage,
			},
		}
	}()

	return ch, nil
}

var _ wizard.CompletionProvider = (*Client)(nil)
