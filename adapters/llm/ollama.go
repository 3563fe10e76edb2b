package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voiceassist/domain"
	"github.com/satriahrh/voiceassist/domain/repositories"
)

const (
	DefaultOllamaEndpoint = "http://localhost:11434/api/generate"
	DefaultOllamaModel    = "gemma3:4b"
	DefaultTimeout        = 120 * time.Second
)

// OllamaConfig holds configuration for the OllamaLLM adapter
type OllamaConfig struct {
	Endpoint string        // Optional: full URL of the generate endpoint
	Model    string        // Optional: model name known to the Ollama server
	Timeout  time.Duration // Optional: bound on a single generation request
}

// OllamaLLM sends prompts to a local Ollama server, one non-streaming request each
type OllamaLLM struct {
	endpoint   string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure OllamaLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*OllamaLLM)(nil)

// generateRequest is the body of POST /api/generate
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the part of the Ollama reply we use. Response is a
// pointer so an absent field can be told apart from a present one.
type generateResponse struct {
	Response *string `json:"response"`
}

// NewOllamaLLM creates a new Ollama adapter
func NewOllamaLLM(config OllamaConfig, logger *zap.Logger) (*OllamaLLM, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
		logger.Info("Using default Ollama endpoint", zap.String("endpoint", endpoint))
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama endpoint %q", endpoint)
	}

	model := config.Model
	if model == "" {
		model = DefaultOllamaModel
		logger.Info("Using default Ollama model", zap.String("model", model))
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OllamaLLM{
		endpoint:   endpoint,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Name implements repositories.LargeLanguageModel
func (o *OllamaLLM) Name() string { return "ollama" }

// Generate implements repositories.LargeLanguageModel with the configured model and timeout
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return o.Query(ctx, prompt, o.model, o.timeout)
}

// Query sends a single generation request and extracts the reply text.
// There is no retry. A reachable server that returns no text yields domain.NoReply.
func (o *OllamaLLM) Query(ctx context.Context, prompt, model string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = o.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	o.logger.Debug("Sending generate request",
		zap.String("model", model),
		zap.Int("promptLength", len(prompt)))

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.UpstreamError{Provider: o.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{
			Provider:   o.Name(),
			StatusCode: resp.StatusCode,
			Detail:     readErrorBody(resp.Body),
		}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &domain.UpstreamError{
			Provider:   o.Name(),
			StatusCode: resp.StatusCode,
			Detail:     "undecodable response body",
			Err:        err,
		}
	}

	o.logger.Info("Generate request completed",
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("hasReply", result.Response != nil && *result.Response != ""))

	if result.Response == nil {
		return domain.NoReply, nil
	}
	return replyOrFallback(*result.Response), nil
}
