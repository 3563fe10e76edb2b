package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/adapters/llm"
	"github.com/satriahrh/voiceassist/domain/repositories"
	"github.com/satriahrh/voiceassist/internal/config"
)

// NewLLM builds the generation backend named by cfg.Provider
func NewLLM(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.Provider {
	case "ollama":
		return llm.NewOllamaLLM(llm.OllamaConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout(),
		}, logger.Named("ollama"))
	case "openai":
		return llm.NewOpenAILLM(llm.OpenAIConfig{
			BaseURL: cfg.Endpoint,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout(),
		}, logger.Named("openai"))
	case "gemini":
		return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout(),
		}, logger.Named("gemini"))
	case "echo":
		return llm.NewEchoLLM(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
