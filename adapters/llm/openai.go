package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/repositories"
)

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint such as
// a llama.cpp server, LM Studio or Ollama's /v1 API
type OpenAIConfig struct {
	BaseURL string        // Required: e.g. http://localhost:8080/v1
	APIKey  string        // Optional: local servers usually ignore it
	Model   string        // Required
	Timeout time.Duration // Optional: bound on a single generation request
}

// OpenAILLM sends prompts as a single-message chat completion
type OpenAILLM struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates a new OpenAI-compatible adapter
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("openai base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAILLM{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   config.Model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name implements repositories.LargeLanguageModel
func (o *OpenAILLM) Name() string { return "openai" }

// Generate implements repositories.LargeLanguageModel. A single attempt is made.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		upstream := &domain.UpstreamError{Provider: o.Name(), Err: err}
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			upstream.StatusCode = apiErr.HTTPStatusCode
		case errors.As(err, &reqErr):
			upstream.StatusCode = reqErr.HTTPStatusCode
		}
		return "", upstream
	}

	if len(resp.Choices) == 0 {
		o.logger.Warn("No choices in completion", zap.String("model", o.model))
		return domain.NoReply, nil
	}
	return replyOrFallback(resp.Choices[0].Message.Content), nil
}
