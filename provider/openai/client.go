package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spetersoncode/wizard"
)

const DefaultModel = "gpt-5-mini"

// Client wraps the OpenAI SDK to implement wizard.CompletionProvider.
type Client struct {
	client *openai.Client
	model  string
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func (c *Client) params(prompt string, opts []wizard.Option) openai.ChatCompletionNewParams {
	options := wizard.ApplyOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(options.MaxTokens))
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(*options.Temperature)
	}
	return params
}

// Complete sends a prompt and returns the complete response.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...wizard.Option) (*wizard.Response, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt, opts))
	if err != nil {
		return nil, wrapError(err)
	}

	return &wizard.Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: wizard.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// CompleteStream sends a prompt and returns a channel of streaming events.
func (c *Client) CompleteStream(ctx context.Context, prompt string, opts ...wizard.Option) (<-chan wizard.StreamEvent, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	params := c.params(prompt, opts)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan wizard.StreamEvent)

	go func() {
		defer close(ch)
		var acc openai.ChatCompletionAccumulator

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ch <- wizard.StreamEvent{
					Delta: chunk.Choices[0].Delta.Content,
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- wizard.StreamEvent{Err: wrapError(err)}
			return
		}

		// Send final event with complete response
		completion := acc.Choices[0]
		ch <- wizard.StreamEvent{
			Done: true,
			Response: &wizard.Response{
				Content:      completion.Message.Content,
				FinishReason: string(completion.FinishReason),
				Usage: wizard.Usage{
					InputTokens:  int(acc.Usage.PromptTokens),
					OutputTokens: int(acc.Usage.CompletionTokens),
				},
			},
		}
	}()

	return ch, nil
}

var _ wizard.CompletionProvider = (*Client)(nil)
