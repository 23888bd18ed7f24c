package llm

import (
	"fmt"
	"strings"

	"agribot/internal/agent/ports"
	agriberrors "agribot/internal/errors"
)

// Config holds provider connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    int // seconds
	MaxRetries int
	Headers    map[string]string
}

// NewClient constructs an LLM client for the named provider. "openai" covers
// every OpenAI-compatible chat-completions endpoint, including Gemini's
// compatibility surface; "ollama" speaks the native Ollama chat API.
func NewClient(provider, model string, config Config) (ports.LLMClient, error) {
	switch strings.ToLower(provider) {
	case "openai":
		if config.APIKey == "" {
			return nil, agriberrors.NewConfigError("LLM_API_KEY")
		}
		return NewOpenAIClient(model, config)
	case "ollama":
		return NewOllamaClient(model, config)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}

// EnsureStreaming guarantees the returned client implements
// StreamingLLMClient by wrapping non-streaming implementations with a
// synthesizing adapter.
func EnsureStreaming(client ports.LLMClient) ports.StreamingLLMClient {
	if client == nil {
		return nil
	}
	if streaming, ok := client.(ports.StreamingLLMClient); ok {
		return streaming
	}
	return &streamingAdapter{base: client}
}
