package llm

import (
	"context"

	"github.com/satriahrh/voiceassist/domain/repositories"
)

// EchoLLM answers every prompt with the prompt itself. It lets the server run
// without any generation backend during local development.
type EchoLLM struct{}

// NewEchoLLM creates a new echo backend
func NewEchoLLM() repositories.LargeLanguageModel {
	return &EchoLLM{}
}

// Name implements repositories.LargeLanguageModel
func (e *EchoLLM) Name() string { return "echo" }

// Generate implements repositories.LargeLanguageModel
func (e *EchoLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Echo: " + prompt, nil
}
