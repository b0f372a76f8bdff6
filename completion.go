package wizard

import "context"

// Provider identifies an AI provider.
type Provider string

// String returns the provider identifier.
func (p Provider) String() string { return string(p) }

// Supported providers.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// CompletionProvider is the contract a model backend must satisfy.
// The engine only ever needs a prompt in and a completion out; provider
// request/response shapes stay behind this interface.
type CompletionProvider interface {
	// Complete sends a prompt and returns the full completion.
	Complete(ctx context.Context, prompt string, opts ...Option) (*Response, error)

	// CompleteStream sends a prompt and returns a channel of streaming
	// events. The channel is closed when the stream is complete or an
	// error occurs. Callers should check StreamEvent.Err for errors.
	CompleteStream(ctx context.Context, prompt string, opts ...Option) (<-chan StreamEvent, error)
}

// Response represents a complete response from a completion provider.
type Response struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Usage contains token usage information for a request.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Add accumulates usage from another request.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	// Delta contains the incremental content for this event.
	Delta string
	// Done indicates if this is the final event in the stream.
	Done bool
	// Response contains the final response data when Done is true.
	Response *Response
	// Err contains any error that occurred during streaming.
	Err error
}
