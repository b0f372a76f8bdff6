package model

import ai "github.com/spetersoncode/wizard"

// ChatModel represents a completion model from any provider.
type ChatModel struct {
	id       string
	provider ai.Provider
}

// String returns the API identifier for this model.
func (m ChatModel) String() string { return m.id }

// Provider returns which provider this model belongs to.
func (m ChatModel) Provider() ai.Provider { return m.provider }

// Anthropic Claude models.
var (
	ClaudeOpus45   = ChatModel{id: "claude-opus-4-5", provider: ai.ProviderAnthropic}
	ClaudeSonnet45 = ChatModel{id: "claude-sonnet-4-5", provider: ai.ProviderAnthropic}
	ClaudeHaiku45  = ChatModel{id: "claude-haiku-4-5", provider: ai.ProviderAnthropic}

	// DefaultClaudeModel is the recommended default Anthropic model.
	DefaultClaudeModel = ClaudeSonnet45
)

// OpenAI models.
var (
	GPT5     = ChatModel{id: "gpt-5", provider: ai.ProviderOpenAI}
	GPT5Mini = ChatModel{id: "gpt-5-mini", provider: ai.ProviderOpenAI}
	GPT5Nano = ChatModel{id: "gpt-5-nano", provider: ai.ProviderOpenAI}

	// DefaultGPTModel is the recommended default OpenAI model.
	DefaultGPTModel = GPT5Mini
)

// Google Gemini models.
var (
	Gemini25Pro   = ChatModel{id: "gemini-2.5-pro", provider: ai.ProviderGoogle}
	Gemini25Flash = ChatModel{id: "gemini-2.5-flash", provider: ai.ProviderGoogle}

	// DefaultGeminiModel is the recommended default Google model.
	DefaultGeminiModel = Gemini25Flash
)
