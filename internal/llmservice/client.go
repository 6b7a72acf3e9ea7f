package llmservice

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"casevise/internal/config"
)

// NewClient builds the chat model used by the answer composer. "openai" covers
// any OpenAI-compatible endpoint (OpenRouter, Groq) via base_url.
func NewClient(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai", "":
		return openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
