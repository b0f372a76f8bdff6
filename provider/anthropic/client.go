package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spetersoncode/wizard"
)

const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic SDK to implement wizard.CompletionProvider.
type Client struct {
	client *anthropic.Client
	model  string
}

// New creates a new Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the Anthropic client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

func (c *Client) params(prompt string, opts []wizard.Option) anthropic.MessageNewParams {
	options := wizard.ApplyOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	maxTokens := int64(4096)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	return params
}

// Complete sends a prompt and returns the complete response.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...wizard.Option) (*wizard.Response, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	resp, err := c.client.Messages.New(ctx, c.params(prompt, opts))
	if err != nil {
		return nil, wrapError(err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &wizard.Response{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage: wizard.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// CompleteStream sends a prompt and returns a channel of streaming events.
func (c *Client) CompleteStream(ctx context.Context, prompt string, opts ...wizard.Option) (<-chan wizard.StreamEvent, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: a prompt is required", wizard.ErrEmptyPrompt)
	}

	stream := c.client.Messages.NewStreaming(ctx, c.params(prompt, opts))
	ch := make(chan wizard.StreamEvent)

	go func() {
		defer close(ch)
		var acc anthropic.Message

		for stream.Next() {
			event := stream.Current()
			acc.Accumulate(event)

			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta()
				if textDelta := delta.Delta.AsTextDelta(); textDelta.Type == "text_delta" {
					ch <- wizard.StreamEvent{
						Delta: textDelta.Text,
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- wizard.StreamEvent{Err: wrapError(err)}
			return
		}

		// Send final event with complete response
		content := ""
		for _, block := range acc.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}

		ch <- wizard.StreamEvent{
			Done: true,
			Response: &wizard.Response{
				Content:      content,
				FinishReason: string(acc.StopReason),
				Usage: wizard.Usage{
					InputTokens:  int(acc.Usage.InputTokens),
					OutputTokens: int(acc.Usage.OutputTokens),
				},
			},
		}
	}()

	return ch, nil
}

var _ wizard.CompletionProvider = (*Client)(nil)
